package db

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/cvetrack-backend/internal/platform/logger"
)

const (
	DriverPostgres = "postgres"
	// DriverSQLite is for development and tests. LOWER() only folds ASCII there.
	DriverSQLite   = "sqlite"
)

type Config struct {
	Driver string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresName     string
	PostgresSSLMode  string

	SQLitePath string

	MaxOpenConns   int
	MaxIdleConns   int
	ConnectTimeout time.Duration
}

func (c Config) postgresDSN() string {
	sslMode := c.PostgresSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.PostgresUser,
		c.PostgresPassword,
		c.PostgresHost,
		c.PostgresPort,
		c.PostgresName,
		sslMode,
	)
}

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewPostgresService opens the configured database, retrying with exponential
// backoff until ConnectTimeout elapses (0 retries forever).
func NewPostgresService(cfg Config, logg *logger.Logger) (*PostgresService, error) {
	serviceLog := logg.With("service", "PostgresService", "driver", cfg.Driver)

	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverSQLite:
		dialector = sqlite.Open(cfg.SQLitePath)
	case DriverPostgres, "":
		pgxCfg, err := pgx.ParseConfig(cfg.postgresDSN())
		if err != nil {
			return nil, fmt.Errorf("parse postgres config: %w", err)
		}
		pgxCfg.ConnectTimeout = 10 * time.Second
		pgxCfg.RuntimeParams["application_name"] = "cvetrack"
		dialector = postgres.New(postgres.Config{Conn: stdlib.OpenDB(*pgxCfg)})
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
	}

	gormLog := gormLogger.New(
		logg.StdLog(),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 2 * time.Second
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = cfg.ConnectTimeout

	var db *gorm.DB
	err := backoff.RetryNotify(func() error {
		opened, err := gorm.Open(dialector, &gorm.Config{
			DisableForeignKeyConstraintWhenMigrating: true,
			TranslateError:                           true,
			Logger:                                   gormLog,
		})
		if err != nil {
			return err
		}
		sqlDB, err := opened.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.Ping(); err != nil {
			return err
		}
		db = opened
		return nil
	}, bo, func(err error, wait time.Duration) {
		serviceLog.Warn("Database not reachable, retrying", "error", err, "retry_in", wait)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		}
	}
	serviceLog.Info("Database connected")
	return &PostgresService{db: db, log: serviceLog}, nil
}

func (s *PostgresService) DB() *gorm.DB { return s.db }

func (s *PostgresService) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
