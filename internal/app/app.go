package app

import (
	"context"
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/yungbote/cvetrack-backend/internal/data/db"
	apphttp "github.com/yungbote/cvetrack-backend/internal/http"
	"github.com/yungbote/cvetrack-backend/internal/observability"
	"github.com/yungbote/cvetrack-backend/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Repos    Repos
	Services Services
	Metrics  *observability.Metrics
	Server   *apphttp.Server

	pg           *db.PostgresService
	otelShutdown func(context.Context) error
}

func New(ctx context.Context) (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	otelShutdown := observability.InitOTel(ctx, log, cfg.Otel)

	pg, err := db.NewPostgresService(cfg.DB, log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := db.AutoMigrateAll(pg.DB()); err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, fmt.Errorf("database automigrate: %w", err)
	}
	theDB := pg.DB()

	var metrics *observability.Metrics
	if cfg.MetricsEnabled {
		metrics = observability.NewMetrics()
	}

	reposet := wireRepos(theDB, log)
	serviceset := wireServices(theDB, log, metrics, reposet)
	handlerset := wireHandlers(theDB, log, serviceset)

	server := apphttp.NewServer(apphttp.ServerConfig{
		Addr:              cfg.Addr,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		ShutdownTimeout:   cfg.ShutdownTimeout,
	}, log, apphttp.RouterConfig{
		Log:           log,
		Metrics:       metrics,
		ServiceName:   cfg.Otel.ServiceName,
		Tracing:       cfg.Otel.Enabled,
		MaxBodyBytes:  cfg.MaxBodyBytes,
		CVEHandler:    handlerset.CVE,
		HealthHandler: handlerset.Health,
	})

	return &App{
		Log:          log,
		DB:           theDB,
		Cfg:          cfg,
		Repos:        reposet,
		Services:     serviceset,
		Metrics:      metrics,
		Server:       server,
		pg:           pg,
		otelShutdown: otelShutdown,
	}, nil
}

// Run serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Server.Run(ctx)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(context.Background())
	}
	if a.pg != nil {
		if err := a.pg.Close(); err != nil && a.Log != nil {
			a.Log.Warn("Closing database failed", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
