package envutil

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/cvetrack-backend/internal/platform/logger"
)

func lookup(name string, log *logger.Logger) (string, bool) {
	v, ok := os.LookupEnv(name)
	v = strings.TrimSpace(v)
	if !ok || v == "" {
		if log != nil {
			log.Debug("Environment variable not found, using default", "env_var", name)
		}
		return "", false
	}
	return v, true
}

func String(name, def string, log *logger.Logger) string {
	v, ok := lookup(name, log)
	if !ok {
		return def
	}
	return v
}

func Int(name string, def int, log *logger.Logger) int {
	v, ok := lookup(name, log)
	if !ok {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		if log != nil {
			log.Warn("Environment variable is not an int, using default", "env_var", name, "provided", v, "default", def)
		}
		return def
	}
	return i
}

func Int64(name string, def int64, log *logger.Logger) int64 {
	v, ok := lookup(name, log)
	if !ok {
		return def
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		if log != nil {
			log.Warn("Environment variable is not an int, using default", "env_var", name, "provided", v, "default", def)
		}
		return def
	}
	return i
}

func Bool(name string, def bool, log *logger.Logger) bool {
	v, ok := lookup(name, log)
	if !ok {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}

// Duration accepts Go duration strings ("90s", "6h").
func Duration(name string, def time.Duration, log *logger.Logger) time.Duration {
	v, ok := lookup(name, log)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		if log != nil {
			log.Warn("Environment variable is not a duration, using default", "env_var", name, "provided", v, "default", def)
		}
		return def
	}
	return d
}

// Hours reads a (possibly fractional) number of hours.
func Hours(name string, def time.Duration, log *logger.Logger) time.Duration {
	v, ok := lookup(name, log)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		if log != nil {
			log.Warn("Environment variable is not a positive number of hours, using default", "env_var", name, "provided", v, "default", def)
		}
		return def
	}
	return time.Duration(f * float64(time.Hour))
}

func Float(name string, def float64, log *logger.Logger) float64 {
	v, ok := lookup(name, log)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		if log != nil {
			log.Warn("Environment variable is not a number, using default", "env_var", name, "provided", v, "default", def)
		}
		return def
	}
	return f
}
