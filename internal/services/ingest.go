package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/cvetrack-backend/internal/data/repos"
	"github.com/yungbote/cvetrack-backend/internal/ingestion/reconcile"
	"github.com/yungbote/cvetrack-backend/internal/observability"
	"github.com/yungbote/cvetrack-backend/internal/pkg/dbctx"
	cveerrors "github.com/yungbote/cvetrack-backend/internal/pkg/errors"
	"github.com/yungbote/cvetrack-backend/internal/platform/ctxutil"
	"github.com/yungbote/cvetrack-backend/internal/platform/logger"
)

type CommitResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Invalid  int `json:"invalid"`
}

type IngestService interface {
	// BatchUpload normalizes raw, merges it with what is stored by cve_id and commits
	// the result in one transaction.
	BatchUpload(dbc dbctx.Context, raw []json.RawMessage) (*CommitResult, error)
}

type ingestService struct {
	log     *logger.Logger
	metrics *observability.Metrics
	cveRepo repos.CVERecordRepo
}

func NewIngestService(log *logger.Logger, metrics *observability.Metrics, cveRepo repos.CVERecordRepo) IngestService {
	return &ingestService{
		log:     log.With("service", "IngestService"),
		metrics: metrics,
		cveRepo: cveRepo,
	}
}

func (s *ingestService) BatchUpload(dbc dbctx.Context, raw []json.RawMessage) (*CommitResult, error) {
	start := time.Now()
	log := s.log.With(ctxutil.LogFields(dbc.Ctx)...)

	index, err := s.cveRepo.LoadIndex(dbc)
	if err != nil {
		return nil, fmt.Errorf("load cve index: %w", err)
	}

	plan := reconcile.Reconcile(log, raw, index)
	out := &CommitResult{Invalid: plan.Invalid}
	if plan.Empty() {
		s.metrics.ObserveIngest(0, 0, out.Invalid, true, time.Since(start))
		log.Info("CVE batch had nothing to commit", "documents", len(raw), "invalid", out.Invalid)
		return out, nil
	}

	res, err := s.cveRepo.ApplyBatch(dbc, plan.ToInsert, plan.ToUpdate)
	if err != nil {
		s.metrics.ObserveIngest(0, 0, plan.Invalid, false, time.Since(start))
		log.Error("CVE batch upload failed", "documents", len(raw), "error", err)
		if isConstraintViolation(err) {
			return nil, fmt.Errorf("%w: %v", cveerrors.ErrBatchUploadFailed, err)
		}
		return nil, fmt.Errorf("apply cve batch: %w", err)
	}
	out.Inserted = res.Inserted
	out.Updated = res.Updated
	s.metrics.ObserveIngest(out.Inserted, out.Updated, out.Invalid, true, time.Since(start))

	log.Info("CVE batch committed",
		"documents", len(raw),
		"inserted", out.Inserted,
		"updated", out.Updated,
		"invalid", out.Invalid,
		"duration", time.Since(start),
	)
	return out, nil
}

// isConstraintViolation reports whether err is a storage constraint failure, as
// translated by gorm. Anything else is treated as transient.
func isConstraintViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		errors.Is(err, gorm.ErrForeignKeyViolated) ||
		errors.Is(err, gorm.ErrCheckConstraintViolated)
}
