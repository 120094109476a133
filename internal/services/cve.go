package services

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/cvetrack-backend/internal/data/repos"
	types "github.com/yungbote/cvetrack-backend/internal/domain"
	"github.com/yungbote/cvetrack-backend/internal/pkg/dbctx"
	cveerrors "github.com/yungbote/cvetrack-backend/internal/pkg/errors"
	"github.com/yungbote/cvetrack-backend/internal/platform/logger"
)

const MaxPageSize = 100

// CreateCVEInput carries a client-supplied record. Empty Title/Description fall back
// to the same placeholders ingestion uses.
type CreateCVEInput struct {
	CVEID            string
	PublishedDate    time.Time
	LastModifiedDate time.Time
	Title            string
	Description      string
	ProblemTypes     *string
}

type Page struct {
	Items []*types.CVERecord `json:"items"`
	Total int64              `json:"total"`
	Page  int                `json:"page"`
	Size  int                `json:"size"`
	Pages int                `json:"pages"`
}

type CVEService interface {
	Get(dbc dbctx.Context, cveID string) (*types.CVERecord, error)
	Create(dbc dbctx.Context, in CreateCVEInput) (*types.CVERecord, error)
	Update(dbc dbctx.Context, cveID string, patch types.CVERecordPatch) error
	Delete(dbc dbctx.Context, cveID string) error

	SearchByDateRange(dbc dbctx.Context, start, end *time.Time) ([]*types.CVERecord, error)
	SearchByText(dbc dbctx.Context, text string) ([]*types.CVERecord, error)
	List(dbc dbctx.Context, page, size int) (*Page, error)
}

type cveService struct {
	db      *gorm.DB
	log     *logger.Logger
	cveRepo repos.CVERecordRepo
}

func NewCVEService(db *gorm.DB, log *logger.Logger, cveRepo repos.CVERecordRepo) CVEService {
	return &cveService{
		db:      db,
		log:     log.With("service", "CVEService"),
		cveRepo: cveRepo,
	}
}

func (s *cveService) Get(dbc dbctx.Context, cveID string) (*types.CVERecord, error) {
	cveID = strings.TrimSpace(cveID)
	rec, err := s.cveRepo.GetByCVEID(dbc, cveID)
	if err != nil {
		return nil, fmt.Errorf("get cve %s: %w", cveID, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("cve %s: %w", cveID, cveerrors.ErrNotFound)
	}
	return rec, nil
}

func (s *cveService) Create(dbc dbctx.Context, in CreateCVEInput) (*types.CVERecord, error) {
	id := strings.TrimSpace(in.CVEID)
	if id == "" {
		return nil, fmt.Errorf("cve_id is required: %w", cveerrors.ErrInvalidArgument)
	}
	if in.PublishedDate.IsZero() || in.LastModifiedDate.IsZero() {
		return nil, fmt.Errorf("published_date and last_modified_date are required: %w", cveerrors.ErrInvalidArgument)
	}
	rec := &types.CVERecord{
		CVEID:            id,
		PublishedDate:    in.PublishedDate.UTC(),
		LastModifiedDate: in.LastModifiedDate.UTC(),
		Title:            in.Title,
		Description:      in.Description,
		ProblemTypes:     in.ProblemTypes,
	}
	if rec.Title == "" {
		rec.Title = types.DefaultCVETitle
	}
	if rec.Description == "" {
		rec.Description = types.DefaultCVEDescription
	}

	err := dbc.DB(s.db).Transaction(func(tx *gorm.DB) error {
		txc := dbc.WithTx(tx)
		exists, err := s.cveRepo.ExistsByCVEID(txc, id)
		if err != nil {
			return err
		}
		if exists {
			return cveerrors.ErrAlreadyExists
		}
		_, err = s.cveRepo.Create(txc, rec)
		return err
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		err = cveerrors.ErrAlreadyExists
	}
	if err != nil {
		return nil, fmt.Errorf("create cve %s: %w", id, err)
	}
	s.log.Debug("CVE created", "cve_id", id)
	return rec, nil
}

func (s *cveService) Update(dbc dbctx.Context, cveID string, patch types.CVERecordPatch) error {
	cveID = strings.TrimSpace(cveID)
	err := dbc.DB(s.db).Transaction(func(tx *gorm.DB) error {
		txc := dbc.WithTx(tx)
		exists, err := s.cveRepo.ExistsByCVEID(txc, cveID)
		if err != nil {
			return err
		}
		if !exists {
			return cveerrors.ErrNotFound
		}
		if patch.Empty() {
			return nil
		}
		_, err = s.cveRepo.UpdateFields(txc, cveID, patch.Columns())
		return err
	})
	if err != nil {
		return fmt.Errorf("update cve %s: %w", cveID, err)
	}
	return nil
}

func (s *cveService) Delete(dbc dbctx.Context, cveID string) error {
	cveID = strings.TrimSpace(cveID)
	n, err := s.cveRepo.DeleteByCVEID(dbc, cveID)
	if err != nil {
		return fmt.Errorf("delete cve %s: %w", cveID, err)
	}
	if n == 0 {
		return fmt.Errorf("cve %s: %w", cveID, cveerrors.ErrNotFound)
	}
	return nil
}

func (s *cveService) SearchByDateRange(dbc dbctx.Context, start, end *time.Time) ([]*types.CVERecord, error) {
	if start != nil && end != nil && end.Before(*start) {
		return []*types.CVERecord{}, nil
	}
	return s.cveRepo.SearchByDateRange(dbc, start, end)
}

func (s *cveService) SearchByText(dbc dbctx.Context, text string) ([]*types.CVERecord, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return []*types.CVERecord{}, nil
	}
	return s.cveRepo.SearchByText(dbc, text)
}

func (s *cveService) List(dbc dbctx.Context, page, size int) (*Page, error) {
	if page < 1 || size < 1 {
		return nil, fmt.Errorf("page and size must be positive: %w", cveerrors.ErrInvalidArgument)
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	total, err := s.cveRepo.Count(dbc)
	if err != nil {
		return nil, err
	}
	items, err := s.cveRepo.List(dbc, (page-1)*size, size)
	if err != nil {
		return nil, err
	}
	return &Page{
		Items: items,
		Total: total,
		Page:  page,
		Size:  size,
		Pages: int(math.Ceil(float64(total) / float64(size))),
	}, nil
}
