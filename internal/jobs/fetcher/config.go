package fetcher

import (
	"time"

	"github.com/yungbote/cvetrack-backend/internal/platform/envutil"
	"github.com/yungbote/cvetrack-backend/internal/platform/logger"
)

type Config struct {
	APIURL    string
	RepoURL   string
	LocalPath string
	CVEFolder string

	Interval           time.Duration
	StartupDelay       time.Duration
	BatchSize          int
	MaxConcurrentFiles int

	HTTPTimeout      time.Duration
	UploadMaxElapsed time.Duration
	GitTimeout       time.Duration

	// MetricsAddr serves /metrics when set, e.g. ":9102".
	MetricsAddr string
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		APIURL:             envutil.String("API_URL", "http://app:5000/cve/batch-upload", log),
		RepoURL:            envutil.String("REPO_URL", "https://github.com/CVEProject/cvelistV5", log),
		LocalPath:          envutil.String("LOCAL_PATH", "cve/jsons", log),
		CVEFolder:          envutil.String("CVE_FOLDER", "cves", log),
		Interval:           envutil.Hours("FETCH_INTERVAL_HOURS", 6*time.Hour, log),
		StartupDelay:       envutil.Duration("FETCH_STARTUP_DELAY", 6*time.Second, log),
		BatchSize:          envutil.Int("BATCH_UPLOAD_SIZE", 50000, log),
		MaxConcurrentFiles: envutil.Int("MAX_CONCURRENT_FILES", 50, log),
		HTTPTimeout:        envutil.Duration("UPLOAD_HTTP_TIMEOUT", 30*time.Minute, log),
		UploadMaxElapsed:   envutil.Duration("UPLOAD_MAX_ELAPSED", 10*time.Minute, log),
		GitTimeout:         envutil.Duration("GIT_TIMEOUT", 30*time.Minute, log),
		MetricsAddr:        envutil.String("FETCHER_METRICS_ADDR", "", log),
	}
}
