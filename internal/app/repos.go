package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/cvetrack-backend/internal/data/repos"
	"github.com/yungbote/cvetrack-backend/internal/platform/logger"
)

type Repos struct {
	CVERecord repos.CVERecordRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		CVERecord: repos.NewCVERecordRepo(db, log),
	}
}
