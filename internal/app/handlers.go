package app

import (
	"gorm.io/gorm"

	httpH "github.com/yungbote/cvetrack-backend/internal/http/handlers"
	"github.com/yungbote/cvetrack-backend/internal/platform/logger"
)

type Handlers struct {
	Health *httpH.HealthHandler
	CVE    *httpH.CVEHandler
}

func wireHandlers(db *gorm.DB, log *logger.Logger, serviceset Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health: httpH.NewHealthHandler(db),
		CVE:    httpH.NewCVEHandler(serviceset.CVE, serviceset.Ingest),
	}
}
