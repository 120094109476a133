package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/cvetrack-backend/internal/data/repos/vuln"
	"github.com/yungbote/cvetrack-backend/internal/platform/logger"
)

type CVERecordRepo = vuln.CVERecordRepo
type CVEBatchResult = vuln.BatchResult

func NewCVERecordRepo(db *gorm.DB, baseLog *logger.Logger) CVERecordRepo {
	return vuln.NewCVERecordRepo(db, baseLog)
}
