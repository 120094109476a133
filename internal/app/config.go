package app

import (
	"time"

	"github.com/yungbote/cvetrack-backend/internal/data/db"
	"github.com/yungbote/cvetrack-backend/internal/observability"
	"github.com/yungbote/cvetrack-backend/internal/platform/envutil"
	"github.com/yungbote/cvetrack-backend/internal/platform/logger"
)

type Config struct {
	Env  string
	Addr string

	DB db.Config

	MaxBodyBytes      int64
	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration

	MetricsEnabled bool
	Otel           observability.OtelConfig
}

func LoadConfig(log *logger.Logger) Config {
	env := envutil.String("LOG_MODE", "development", log)
	return Config{
		Env:  env,
		Addr: ":" + envutil.String("PORT", "5000", log),
		DB: db.Config{
			Driver:           envutil.String("DB_DRIVER", db.DriverPostgres, log),
			PostgresHost:     envutil.String("POSTGRES_HOST", "localhost", log),
			PostgresPort:     envutil.String("POSTGRES_PORT", "5432", log),
			PostgresUser:     envutil.String("POSTGRES_USER", "postgres", log),
			PostgresPassword: envutil.String("POSTGRES_PASSWORD", "", log),
			PostgresName:     envutil.String("POSTGRES_NAME", "cve", log),
			PostgresSSLMode:  envutil.String("POSTGRES_SSLMODE", "disable", log),
			SQLitePath:       envutil.String("SQLITE_PATH", "cvetrack.db", log),
			MaxOpenConns:     envutil.Int("DB_MAX_OPEN_CONNS", 20, log),
			MaxIdleConns:     envutil.Int("DB_MAX_IDLE_CONNS", 10, log),
			ConnectTimeout:   envutil.Duration("DB_CONNECT_TIMEOUT", 2*time.Minute, log),
		},
		MaxBodyBytes:      envutil.Int64("HTTP_MAX_BODY_BYTES", 512<<20, log),
		ReadHeaderTimeout: envutil.Duration("HTTP_READ_HEADER_TIMEOUT", 10*time.Second, log),
		IdleTimeout:       envutil.Duration("HTTP_IDLE_TIMEOUT", 120*time.Second, log),
		ShutdownTimeout:   envutil.Duration("HTTP_SHUTDOWN_TIMEOUT", 30*time.Second, log),
		MetricsEnabled:    envutil.Bool("METRICS_ENABLED", true, log),
		Otel: observability.OtelConfig{
			Enabled:     envutil.Bool("OTEL_ENABLED", false, log),
			ServiceName: envutil.String("OTEL_SERVICE_NAME", "cvetrack-api", log),
			Environment: env,
			Version:     envutil.String("APP_VERSION", "dev", log),
			Endpoint:    envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", "", log),
			Headers:     envutil.String("OTEL_EXPORTER_OTLP_HEADERS", "", log),
			Insecure:    envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", false, log),
			SampleRatio: envutil.Float("OTEL_SAMPLER_RATIO", 0.1, log),
		},
	}
}
