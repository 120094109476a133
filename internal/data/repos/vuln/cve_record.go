package vuln

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/cvetrack-backend/internal/domain"
	"github.com/yungbote/cvetrack-backend/internal/pkg/dbctx"
	"github.com/yungbote/cvetrack-backend/internal/platform/logger"
)

const (
	insertBatchSize = 500
	indexBatchSize  = 5000
)

// mergeColumns are overwritten when a batch re-observes a stored identifier.
var mergeColumns = []string{
	"published_date",
	"last_modified_date",
	"title",
	"description",
	"problem_types",
	"updated_at",
}

type BatchResult struct {
	Inserted int
	Updated  int
}

type CVERecordRepo interface {
	GetByCVEID(dbc dbctx.Context, cveID string) (*types.CVERecord, error)
	ExistsByCVEID(dbc dbctx.Context, cveID string) (bool, error)
	Create(dbc dbctx.Context, rec *types.CVERecord) (*types.CVERecord, error)
	UpdateFields(dbc dbctx.Context, cveID string, updates map[string]interface{}) (int64, error)
	DeleteByCVEID(dbc dbctx.Context, cveID string) (int64, error)

	LoadIndex(dbc dbctx.Context) (map[string]*types.CVERecord, error)
	ApplyBatch(dbc dbctx.Context, toInsert, toUpdate []*types.CVERecord) (*BatchResult, error)

	SearchByDateRange(dbc dbctx.Context, start, end *time.Time) ([]*types.CVERecord, error)
	SearchByText(dbc dbctx.Context, text string) ([]*types.CVERecord, error)
	List(dbc dbctx.Context, offset, limit int) ([]*types.CVERecord, error)
	Count(dbc dbctx.Context) (int64, error)
}

type cveRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCVERecordRepo(db *gorm.DB, baseLog *logger.Logger) CVERecordRepo {
	return &cveRecordRepo{
		db:  db,
		log: baseLog.With("repo", "CVERecordRepo"),
	}
}

// GetByCVEID returns nil, nil when the identifier is not stored.
func (r *cveRecordRepo) GetByCVEID(dbc dbctx.Context, cveID string) (*types.CVERecord, error) {
	if cveID == "" {
		return nil, nil
	}
	var rec types.CVERecord
	err := dbc.DB(r.db).
		Where("cve_id = ?", cveID).
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *cveRecordRepo) ExistsByCVEID(dbc dbctx.Context, cveID string) (bool, error) {
	var n int64
	if err := dbc.DB(r.db).
		Model(&types.CVERecord{}).
		Where("cve_id = ?", cveID).
		Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *cveRecordRepo) Create(dbc dbctx.Context, rec *types.CVERecord) (*types.CVERecord, error) {
	if err := dbc.DB(r.db).Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *cveRecordRepo) UpdateFields(dbc dbctx.Context, cveID string, updates map[string]interface{}) (int64, error) {
	if len(updates) == 0 {
		return 0, nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	res := dbc.DB(r.db).
		Model(&types.CVERecord{}).
		Where("cve_id = ?", cveID).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *cveRecordRepo) DeleteByCVEID(dbc dbctx.Context, cveID string) (int64, error) {
	res := dbc.DB(r.db).
		Where("cve_id = ?", cveID).
		Delete(&types.CVERecord{})
	return res.RowsAffected, res.Error
}

// LoadIndex reads every stored record keyed by identifier.
func (r *cveRecordRepo) LoadIndex(dbc dbctx.Context) (map[string]*types.CVERecord, error) {
	index := map[string]*types.CVERecord{}
	var chunk []*types.CVERecord
	err := dbc.DB(r.db).
		Order("id ASC").
		FindInBatches(&chunk, indexBatchSize, func(_ *gorm.DB, _ int) error {
			for _, rec := range chunk {
				index[rec.CVEID] = rec
			}
			return nil
		}).Error
	if err != nil {
		return nil, err
	}
	return index, nil
}

// ApplyBatch inserts toInsert and upserts toUpdate by cve_id inside one transaction.
// Any failure rolls the whole batch back.
func (r *cveRecordRepo) ApplyBatch(dbc dbctx.Context, toInsert, toUpdate []*types.CVERecord) (*BatchResult, error) {
	if len(toInsert) == 0 && len(toUpdate) == 0 {
		return &BatchResult{}, nil
	}
	now := time.Now().UTC()
	err := dbc.DB(r.db).Transaction(func(tx *gorm.DB) error {
		if len(toInsert) > 0 {
			if err := tx.CreateInBatches(toInsert, insertBatchSize).Error; err != nil {
				return err
			}
		}
		if len(toUpdate) == 0 {
			return nil
		}
		rows := make([]*types.CVERecord, 0, len(toUpdate))
		for _, rec := range toUpdate {
			row := rec.Clone()
			row.ID = 0
			row.UpdatedAt = now
			if row.CreatedAt.IsZero() {
				row.CreatedAt = now
			}
			rows = append(rows, row)
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cve_id"}},
			DoUpdates: clause.AssignmentColumns(mergeColumns),
		}).CreateInBatches(rows, insertBatchSize).Error
	})
	if err != nil {
		r.log.Warn("CVE batch rolled back", "to_insert", len(toInsert), "to_update", len(toUpdate), "error", err)
		return nil, err
	}
	return &BatchResult{Inserted: len(toInsert), Updated: len(toUpdate)}, nil
}

// SearchByDateRange filters on published_date; nil bounds are open.
func (r *cveRecordRepo) SearchByDateRange(dbc dbctx.Context, start, end *time.Time) ([]*types.CVERecord, error) {
	q := dbc.DB(r.db).Model(&types.CVERecord{})
	if start != nil {
		q = q.Where("published_date >= ?", start.UTC())
	}
	if end != nil {
		q = q.Where("published_date <= ?", end.UTC())
	}
	out := []*types.CVERecord{}
	if err := q.Order("id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// SearchByText is a case-insensitive substring match on title, description and
// problem_types.
func (r *cveRecordRepo) SearchByText(dbc dbctx.Context, text string) ([]*types.CVERecord, error) {
	out := []*types.CVERecord{}
	if text == "" {
		return out, nil
	}
	needle := strings.ToLower(text)
	if r.db.Dialector.Name() == "sqlite" && !isASCII(needle) {
		return r.searchFolded(dbc, needle)
	}
	pattern := "%" + escapeLike(needle) + "%"
	err := dbc.DB(r.db).
		Where(
			`LOWER(title) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\' OR LOWER(COALESCE(problem_types, '')) LIKE ? ESCAPE '\'`,
			pattern, pattern, pattern,
		).
		Order("id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// searchFolded scans in id order and matches with Unicode case folding. SQLite's
// LOWER() only folds ASCII.
func (r *cveRecordRepo) searchFolded(dbc dbctx.Context, needle string) ([]*types.CVERecord, error) {
	out := []*types.CVERecord{}
	var batch []*types.CVERecord
	err := dbc.DB(r.db).
		Order("id ASC").
		FindInBatches(&batch, indexBatchSize, func(_ *gorm.DB, _ int) error {
			for _, rec := range batch {
				if containsFolded(rec.Title, needle) || containsFolded(rec.Description, needle) ||
					(rec.ProblemTypes != nil && containsFolded(*rec.ProblemTypes, needle)) {
					out = append(out, rec)
				}
			}
			return nil
		}).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func containsFolded(s, needle string) bool {
	return strings.Contains(strings.ToLower(s), needle)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func (r *cveRecordRepo) List(dbc dbctx.Context, offset, limit int) ([]*types.CVERecord, error) {
	out := []*types.CVERecord{}
	err := dbc.DB(r.db).
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *cveRecordRepo) Count(dbc dbctx.Context) (int64, error) {
	var n int64
	if err := dbc.DB(r.db).Model(&types.CVERecord{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
