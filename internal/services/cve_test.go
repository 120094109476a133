package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yungbote/cvetrack-backend/internal/data/repos"
	"github.com/yungbote/cvetrack-backend/internal/data/repos/testutil"
	types "github.com/yungbote/cvetrack-backend/internal/domain"
	"github.com/yungbote/cvetrack-backend/internal/pkg/dbctx"
	cveerrors "github.com/yungbote/cvetrack-backend/internal/pkg/errors"
)

func newCVEService(t *testing.T) (CVEService, dbctx.Context) {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	return NewCVEService(db, log, repos.NewCVERecordRepo(db, log)), dbctx.New(context.Background())
}

func at(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestCVEServiceCreateGet(t *testing.T) {
	svc, dbc := newCVEService(t)

	rec, err := svc.Create(dbc, CreateCVEInput{
		CVEID:            " CVE-2024-0001 ",
		PublishedDate:    at(1),
		LastModifiedDate: at(2),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.CVEID != "CVE-2024-0001" || rec.Title != types.DefaultCVETitle || rec.Description != types.DefaultCVEDescription {
		t.Fatalf("Create: unexpected record %+v", rec)
	}

	_, err = svc.Create(dbc, CreateCVEInput{CVEID: "CVE-2024-0001", PublishedDate: at(1), LastModifiedDate: at(1), Title: "again"})
	if !errors.Is(err, cveerrors.ErrAlreadyExists) {
		t.Fatalf("Create duplicate: expected ErrAlreadyExists, got %v", err)
	}

	got, err := svc.Get(dbc, "CVE-2024-0001")
	if err != nil || got.Title != types.DefaultCVETitle {
		t.Fatalf("Get: got=%+v err=%v", got, err)
	}
	if _, err := svc.Get(dbc, "CVE-1999-0001"); !errors.Is(err, cveerrors.ErrNotFound) {
		t.Fatalf("Get missing: expected ErrNotFound, got %v", err)
	}
}

func TestCVEServiceCreateValidates(t *testing.T) {
	svc, dbc := newCVEService(t)
	cases := map[string]CreateCVEInput{
		"missing id":   {PublishedDate: at(1), LastModifiedDate: at(1)},
		"missing date": {CVEID: "CVE-2024-0002", LastModifiedDate: at(1)},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.Create(dbc, in); !errors.Is(err, cveerrors.ErrInvalidArgument) {
				t.Fatalf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestCVEServiceUpdateDelete(t *testing.T) {
	svc, dbc := newCVEService(t)
	if _, err := svc.Create(dbc, CreateCVEInput{CVEID: "CVE-2024-0001", PublishedDate: at(1), LastModifiedDate: at(1), Title: "t", Description: "d"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	title := "patched"
	if err := svc.Update(dbc, "CVE-2024-0001", types.CVERecordPatch{Title: &title}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ := svc.Get(dbc, "CVE-2024-0001")
	if got.Title != "patched" || got.Description != "d" {
		t.Fatalf("Update: only title should change, got %+v", got)
	}
	if err := svc.Update(dbc, "CVE-2024-0001", types.CVERecordPatch{}); err != nil {
		t.Fatalf("empty Update: %v", err)
	}
	if err := svc.Update(dbc, "CVE-1999-0001", types.CVERecordPatch{}); !errors.Is(err, cveerrors.ErrNotFound) {
		t.Fatalf("Update missing: expected ErrNotFound, got %v", err)
	}

	if err := svc.Delete(dbc, "CVE-2024-0001"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := svc.Delete(dbc, "CVE-2024-0001"); !errors.Is(err, cveerrors.ErrNotFound) {
		t.Fatalf("Delete twice: expected ErrNotFound, got %v", err)
	}
}

func TestCVEServiceQueries(t *testing.T) {
	svc, dbc := newCVEService(t)
	for i := 1; i <= 5; i++ {
		in := CreateCVEInput{
			CVEID:            "CVE-2024-000" + string(rune('0'+i)),
			PublishedDate:    at(i * 2),
			LastModifiedDate: at(i * 2),
			Title:            "record",
			Description:      "plain",
		}
		if i == 3 {
			in.Description = "Remote Code Execution"
		}
		if _, err := svc.Create(dbc, in); err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
	}

	start, end := at(4), at(6)
	rows, err := svc.SearchByDateRange(dbc, &start, &end)
	if err != nil || len(rows) != 2 {
		t.Fatalf("SearchByDateRange: len=%d err=%v", len(rows), err)
	}
	if rows, _ := svc.SearchByDateRange(dbc, &end, &start); len(rows) != 0 {
		t.Fatalf("inverted range: expected empty, got %d", len(rows))
	}

	rows, err = svc.SearchByText(dbc, "code execution")
	if err != nil || len(rows) != 1 || rows[0].CVEID != "CVE-2024-0003" {
		t.Fatalf("SearchByText: rows=%d err=%v", len(rows), err)
	}
	if rows, err := svc.SearchByText(dbc, "   "); err != nil || rows == nil || len(rows) != 0 {
		t.Fatalf("SearchByText blank: rows=%v err=%v", rows, err)
	}

	page, err := svc.List(dbc, 2, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 5 || page.Pages != 3 || len(page.Items) != 2 || page.Items[0].CVEID != "CVE-2024-0003" {
		t.Fatalf("List: unexpected page %+v", page)
	}
	if page, _ := svc.List(dbc, 1, 1000); page.Size != MaxPageSize || len(page.Items) != 5 {
		t.Fatalf("List: size not capped, got %+v", page)
	}
	if _, err := svc.List(dbc, 0, 10); !errors.Is(err, cveerrors.ErrInvalidArgument) {
		t.Fatalf("List page 0: expected ErrInvalidArgument, got %v", err)
	}
}
