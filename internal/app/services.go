package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/cvetrack-backend/internal/observability"
	"github.com/yungbote/cvetrack-backend/internal/platform/logger"
	"github.com/yungbote/cvetrack-backend/internal/services"
)

type Services struct {
	CVE    services.CVEService
	Ingest services.IngestService
}

func wireServices(db *gorm.DB, log *logger.Logger, metrics *observability.Metrics, reposet Repos) Services {
	log.Info("Wiring services...")
	return Services{
		CVE:    services.NewCVEService(db, log, reposet.CVERecord),
		Ingest: services.NewIngestService(log, metrics, reposet.CVERecord),
	}
}
