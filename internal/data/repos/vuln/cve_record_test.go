package vuln

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/cvetrack-backend/internal/data/repos/testutil"
	types "github.com/yungbote/cvetrack-backend/internal/domain"
	"github.com/yungbote/cvetrack-backend/internal/pkg/dbctx"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func newRecord(id string, published time.Time, title string) *types.CVERecord {
	return &types.CVERecord{
		CVEID:            id,
		PublishedDate:    published,
		LastModifiedDate: published,
		Title:            title,
		Description:      title,
	}
}

func TestCVERecordRepoCRUD(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.New(ctx)
	repo := NewCVERecordRepo(db, testutil.Logger(t))

	rec, err := repo.Create(dbc, newRecord("CVE-2024-0001", day(1), "first"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.ID == 0 {
		t.Fatalf("Create: expected storage id to be assigned")
	}

	if _, err := repo.Create(dbc, newRecord("CVE-2024-0001", day(2), "dup")); !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("Create duplicate: expected ErrDuplicatedKey, got %v", err)
	}

	got, err := repo.GetByCVEID(dbc, "CVE-2024-0001")
	if err != nil || got == nil || got.Title != "first" {
		t.Fatalf("GetByCVEID: got=%+v err=%v", got, err)
	}
	if missing, err := repo.GetByCVEID(dbc, "CVE-1999-0000"); err != nil || missing != nil {
		t.Fatalf("GetByCVEID missing: got=%+v err=%v", missing, err)
	}
	if ok, err := repo.ExistsByCVEID(dbc, "CVE-2024-0001"); err != nil || !ok {
		t.Fatalf("ExistsByCVEID: ok=%v err=%v", ok, err)
	}

	n, err := repo.UpdateFields(dbc, "CVE-2024-0001", map[string]interface{}{"title": "renamed"})
	if err != nil || n != 1 {
		t.Fatalf("UpdateFields: n=%d err=%v", n, err)
	}
	got, _ = repo.GetByCVEID(dbc, "CVE-2024-0001")
	if got.Title != "renamed" || got.Description != "first" {
		t.Fatalf("UpdateFields: unexpected row %+v", got)
	}
	if n, err := repo.UpdateFields(dbc, "CVE-1999-0000", map[string]interface{}{"title": "x"}); err != nil || n != 0 {
		t.Fatalf("UpdateFields missing: n=%d err=%v", n, err)
	}

	if n, err := repo.DeleteByCVEID(dbc, "CVE-2024-0001"); err != nil || n != 1 {
		t.Fatalf("DeleteByCVEID: n=%d err=%v", n, err)
	}
	if n, err := repo.DeleteByCVEID(dbc, "CVE-2024-0001"); err != nil || n != 0 {
		t.Fatalf("DeleteByCVEID again: n=%d err=%v", n, err)
	}
}

func TestCVERecordRepoApplyBatch(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.New(ctx)
	repo := NewCVERecordRepo(db, testutil.Logger(t))

	stored := testutil.SeedCVE(t, ctx, db, "CVE-2024-0001", day(1), "old")

	index, err := repo.LoadIndex(dbc)
	if err != nil {
		t.Fatalf("LoadIndex: %v", err)
	}
	if len(index) != 1 || index["CVE-2024-0001"] == nil {
		t.Fatalf("LoadIndex: unexpected index %+v", index)
	}

	upd := index["CVE-2024-0001"].Clone()
	upd.Title = "new"
	upd.ProblemTypes = testutil.StrPtr("CWE-79")
	upd.LastModifiedDate = day(5)

	res, err := repo.ApplyBatch(dbc,
		[]*types.CVERecord{newRecord("CVE-2024-0002", day(2), "two"), newRecord("CVE-2024-0003", day(3), "three")},
		[]*types.CVERecord{upd},
	)
	if err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}
	if res.Inserted != 2 || res.Updated != 1 {
		t.Fatalf("ApplyBatch: unexpected result %+v", res)
	}

	if n, _ := repo.Count(dbc); n != 3 {
		t.Fatalf("Count: got=%d want=3", n)
	}
	got, _ := repo.GetByCVEID(dbc, "CVE-2024-0001")
	if got.ID != stored.ID || got.Title != "new" || got.ProblemTypes == nil || *got.ProblemTypes != "CWE-79" {
		t.Fatalf("update not applied in place: %+v", got)
	}
	if !got.LastModifiedDate.Equal(day(5)) {
		t.Fatalf("LastModifiedDate: got=%v", got.LastModifiedDate)
	}

	if res, err := repo.ApplyBatch(dbc, nil, nil); err != nil || res.Inserted != 0 || res.Updated != 0 {
		t.Fatalf("empty ApplyBatch: res=%+v err=%v", res, err)
	}
}

func TestCVERecordRepoApplyBatchRollsBack(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.New(ctx)
	repo := NewCVERecordRepo(db, testutil.Logger(t))

	testutil.SeedCVE(t, ctx, db, "CVE-2024-0001", day(1), "old")

	// CVE-2024-0001 is already stored, so inserting it again breaks the unique index.
	_, err := repo.ApplyBatch(dbc,
		[]*types.CVERecord{newRecord("CVE-2024-0009", day(9), "nine"), newRecord("CVE-2024-0001", day(1), "clash")},
		nil,
	)
	if err == nil {
		t.Fatalf("ApplyBatch: expected error")
	}
	if n, _ := repo.Count(dbc); n != 1 {
		t.Fatalf("Count after rollback: got=%d want=1", n)
	}
	if ok, _ := repo.ExistsByCVEID(dbc, "CVE-2024-0009"); ok {
		t.Fatalf("partial batch was committed")
	}
}

func TestCVERecordRepoApplyBatchRollsBackInsertsWhenUpsertFails(t *testing.T) {
	db := testutil.SQLite(t)
	ctx := context.Background()
	dbc := dbctx.New(ctx)
	repo := NewCVERecordRepo(db, testutil.Logger(t))

	stored := testutil.SeedCVE(t, ctx, db, "CVE-2024-0001", day(1), "old")

	errUpsert := errors.New("upsert rejected")
	if err := db.Callback().Create().Before("gorm:create").Register("test:fail_upsert", func(tx *gorm.DB) {
		if _, ok := tx.Statement.Clauses[clause.OnConflict{}.Name()]; ok {
			tx.AddError(errUpsert)
		}
	}); err != nil {
		t.Fatalf("register callback: %v", err)
	}

	upd := stored.Clone()
	upd.Title = "new"
	_, err := repo.ApplyBatch(dbc,
		[]*types.CVERecord{newRecord("CVE-2024-0002", day(2), "two"), newRecord("CVE-2024-0003", day(3), "three")},
		[]*types.CVERecord{upd},
	)
	if !errors.Is(err, errUpsert) {
		t.Fatalf("ApplyBatch: expected upsert error, got %v", err)
	}
	if n, _ := repo.Count(dbc); n != 1 {
		t.Fatalf("Count after rollback: got=%d want=1", n)
	}
	for _, id := range []string{"CVE-2024-0002", "CVE-2024-0003"} {
		if ok, _ := repo.ExistsByCVEID(dbc, id); ok {
			t.Fatalf("%s survived the rolled back batch", id)
		}
	}
	if got, _ := repo.GetByCVEID(dbc, "CVE-2024-0001"); got == nil || got.Title != "old" {
		t.Fatalf("stored record changed: %+v", got)
	}
}

func TestCVERecordRepoSearchByTextFoldsUnicodeOnSQLite(t *testing.T) {
	db := testutil.SQLite(t)
	ctx := context.Background()
	dbc := dbctx.New(ctx)
	repo := NewCVERecordRepo(db, testutil.Logger(t))

	testutil.SeedCVE(t, ctx, db, "CVE-2024-0001", day(1), "Échec d'authentification")
	testutil.SeedCVE(t, ctx, db, "CVE-2024-0002", day(2), "Unrelated")

	for _, text := range []string{"échec", "ÉCHEC", "d'AUTH"} {
		rows, err := repo.SearchByText(dbc, text)
		if err != nil || len(rows) != 1 || rows[0].CVEID != "CVE-2024-0001" {
			t.Fatalf("SearchByText(%q): rows=%v err=%v", text, ids(rows), err)
		}
	}
	if rows, _ := repo.SearchByText(dbc, "ünrelated"); len(rows) != 0 {
		t.Fatalf("SearchByText non-match: rows=%v", ids(rows))
	}
}

func TestCVERecordRepoQueries(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.New(ctx)
	repo := NewCVERecordRepo(db, testutil.Logger(t))

	testutil.SeedCVE(t, ctx, db, "CVE-2024-0001", day(1), "Buffer overflow in parser")
	testutil.SeedCVE(t, ctx, db, "CVE-2024-0002", day(10), "SQL injection in login")
	third := newRecord("CVE-2024-0003", day(20), "Plain title")
	third.ProblemTypes = testutil.StrPtr("CWE-89 SQL Injection")
	if _, err := repo.Create(dbc, third); err != nil {
		t.Fatalf("Create: %v", err)
	}
	testutil.SeedCVE(t, ctx, db, "CVE-2024-0004", day(25), "100% CPU_usage")

	start, end := day(5), day(20)
	rows, err := repo.SearchByDateRange(dbc, &start, &end)
	if err != nil || len(rows) != 2 || rows[0].CVEID != "CVE-2024-0002" || rows[1].CVEID != "CVE-2024-0003" {
		t.Fatalf("SearchByDateRange: rows=%v err=%v", ids(rows), err)
	}
	if rows, _ := repo.SearchByDateRange(dbc, nil, &start); len(rows) != 1 {
		t.Fatalf("SearchByDateRange open start: rows=%v", ids(rows))
	}
	if rows, _ := repo.SearchByDateRange(dbc, nil, nil); len(rows) != 4 {
		t.Fatalf("SearchByDateRange unbounded: rows=%v", ids(rows))
	}

	rows, err = repo.SearchByText(dbc, "sql INJECTION")
	if err != nil || len(rows) != 2 {
		t.Fatalf("SearchByText: rows=%v err=%v", ids(rows), err)
	}
	if rows, _ := repo.SearchByText(dbc, "100%"); len(rows) != 1 || rows[0].CVEID != "CVE-2024-0004" {
		t.Fatalf("SearchByText with wildcard: rows=%v", ids(rows))
	}
	if rows, _ := repo.SearchByText(dbc, "u_age"); len(rows) != 0 {
		t.Fatalf("SearchByText underscore must be literal: rows=%v", ids(rows))
	}
	if rows, _ := repo.SearchByText(dbc, ""); len(rows) != 0 {
		t.Fatalf("SearchByText empty: rows=%v", ids(rows))
	}

	page, err := repo.List(dbc, 2, 2)
	if err != nil || len(page) != 2 || page[0].CVEID != "CVE-2024-0003" {
		t.Fatalf("List: rows=%v err=%v", ids(page), err)
	}
	if page, _ := repo.List(dbc, 10, 2); len(page) != 0 {
		t.Fatalf("List past end: rows=%v", ids(page))
	}
}

func ids(rows []*types.CVERecord) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.CVEID)
	}
	return out
}
