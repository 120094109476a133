package services

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"gorm.io/gorm"

	"github.com/yungbote/cvetrack-backend/internal/data/repos"
	"github.com/yungbote/cvetrack-backend/internal/data/repos/testutil"
	types "github.com/yungbote/cvetrack-backend/internal/domain"
	"github.com/yungbote/cvetrack-backend/internal/observability"
	"github.com/yungbote/cvetrack-backend/internal/pkg/dbctx"
	cveerrors "github.com/yungbote/cvetrack-backend/internal/pkg/errors"
	"github.com/yungbote/cvetrack-backend/internal/platform/apierr"
)

func rawDoc(id, updated, desc string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{
		"cveMetadata": {"cveId": %q, "datePublished": "2024-01-01T00:00:00Z", "dateUpdated": %q},
		"containers": {"cna": {"descriptions": [{"value": %q}], "problemTypes": [{"descriptions": [{"description": "CWE-79"}]}]}}
	}`, id, updated, desc))
}

func TestIngestServiceBatchUpload(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()
	dbc := dbctx.New(ctx)
	cveRepo := repos.NewCVERecordRepo(db, log)
	svc := NewIngestService(log, observability.NewMetrics(), cveRepo)

	seeded := testutil.SeedCVE(t, ctx, db, "CVE-2024-0001", at(1), "stored")

	res, err := svc.BatchUpload(dbc, []json.RawMessage{
		rawDoc("CVE-2024-0001", "2024-02-01T00:00:00Z", "refreshed"),
		rawDoc("CVE-2024-0002", "2024-02-01T00:00:00Z", "new one"),
		json.RawMessage(`{"cveMetadata": {"cveId": "CVE-2024-0003"}}`),
	})
	if err != nil {
		t.Fatalf("BatchUpload: %v", err)
	}
	if res.Inserted != 1 || res.Updated != 1 || res.Invalid != 1 {
		t.Fatalf("BatchUpload: unexpected result %+v", res)
	}

	got, err := cveRepo.GetByCVEID(dbc, "CVE-2024-0001")
	if err != nil || got == nil {
		t.Fatalf("GetByCVEID: %v", err)
	}
	if got.ID != seeded.ID || got.Title != "refreshed" || got.ProblemTypes == nil || *got.ProblemTypes != "CWE-79" {
		t.Fatalf("existing record not merged in place: %+v", got)
	}

	// Re-uploading the same documents is idempotent.
	res, err = svc.BatchUpload(dbc, []json.RawMessage{
		rawDoc("CVE-2024-0001", "2024-02-01T00:00:00Z", "refreshed"),
		rawDoc("CVE-2024-0002", "2024-02-01T00:00:00Z", "new one"),
	})
	if err != nil || res.Inserted != 0 || res.Updated != 2 {
		t.Fatalf("second BatchUpload: res=%+v err=%v", res, err)
	}
	if n, _ := cveRepo.Count(dbc); n != 2 {
		t.Fatalf("Count: got=%d want=2", n)
	}
}

func TestIngestServiceEmptyBatch(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	svc := NewIngestService(log, nil, repos.NewCVERecordRepo(db, log))

	res, err := svc.BatchUpload(dbctx.New(context.Background()), nil)
	if err != nil || res.Inserted+res.Updated+res.Invalid != 0 {
		t.Fatalf("BatchUpload empty: res=%+v err=%v", res, err)
	}
}

type failingRepo struct {
	repos.CVERecordRepo
	err error
}

func (failingRepo) LoadIndex(dbctx.Context) (map[string]*types.CVERecord, error) {
	return map[string]*types.CVERecord{}, nil
}

func (r failingRepo) ApplyBatch(dbctx.Context, []*types.CVERecord, []*types.CVERecord) (*repos.CVEBatchResult, error) {
	return nil, r.err
}

func TestIngestServiceWrapsConstraintFailure(t *testing.T) {
	svc := NewIngestService(testutil.Logger(t), nil, failingRepo{err: fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey)})
	_, err := svc.BatchUpload(dbctx.New(context.Background()), []json.RawMessage{
		rawDoc("CVE-2024-0009", "2024-02-01T00:00:00Z", "x"),
	})
	if !errors.Is(err, cveerrors.ErrBatchUploadFailed) {
		t.Fatalf("expected ErrBatchUploadFailed, got %v", err)
	}
	if ae := apierr.FromService("cve", err); ae.Status != http.StatusConflict || ae.Code != "batch_upload_failed" {
		t.Fatalf("FromService: status=%d code=%s", ae.Status, ae.Code)
	}
}

func TestIngestServiceTransientFailureIsNotConstraint(t *testing.T) {
	svc := NewIngestService(testutil.Logger(t), nil, failingRepo{err: fmt.Errorf("commit: %w", driver.ErrBadConn)})
	_, err := svc.BatchUpload(dbctx.New(context.Background()), []json.RawMessage{
		rawDoc("CVE-2024-0009", "2024-02-01T00:00:00Z", "x"),
	})
	if err == nil || errors.Is(err, cveerrors.ErrBatchUploadFailed) {
		t.Fatalf("expected plain error, got %v", err)
	}
	if !errors.Is(err, driver.ErrBadConn) {
		t.Fatalf("cause lost: %v", err)
	}
	if ae := apierr.FromService("cve", err); ae.Status != http.StatusInternalServerError {
		t.Fatalf("FromService: status=%d want=500", ae.Status)
	}
}

func TestIngestServiceSkipsCommitWhenNothingValid(t *testing.T) {
	svc := NewIngestService(testutil.Logger(t), nil, failingRepo{err: errors.New("ApplyBatch should not run")})
	res, err := svc.BatchUpload(dbctx.New(context.Background()), []json.RawMessage{
		json.RawMessage(`{"cveMetadata": {}}`),
	})
	if err != nil || res.Invalid != 1 || res.Inserted+res.Updated != 0 {
		t.Fatalf("BatchUpload: res=%+v err=%v", res, err)
	}
}
