package testutil

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	types "github.com/yungbote/cvetrack-backend/internal/domain"
)

func SeedCVE(tb testing.TB, ctx context.Context, tx *gorm.DB, cveID string, published time.Time, title string) *types.CVERecord {
	tb.Helper()
	rec := &types.CVERecord{
		CVEID:            cveID,
		PublishedDate:    published.UTC(),
		LastModifiedDate: published.UTC(),
		Title:            title,
		Description:      title,
	}
	if err := tx.WithContext(ctx).Create(rec).Error; err != nil {
		tb.Fatalf("seed cve %s: %v", cveID, err)
	}
	return rec
}

func StrPtr(s string) *string { return &s }
