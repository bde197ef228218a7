package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// GetEnv returns the trimmed value of name, or defaultVal when unset or blank.
func GetEnv(name, defaultVal string) string {
	if val := strings.TrimSpace(os.Getenv(name)); val != "" {
		return val
	}
	return defaultVal
}

// GetEnvAsInt64 retrieves an environment variable as an int64 with a default fallback.
func GetEnvAsInt64(name string, defaultVal int64) int64 {
	if valStr := os.Getenv(name); valStr != "" {
		if val, err := strconv.ParseInt(strings.TrimSpace(valStr), 10, 64); err == nil {
			return val
		}
	}
	return defaultVal
}

// GetEnvAsFloat retrieves an environment variable as a float64 with a default fallback.
func GetEnvAsFloat(name string, defaultVal float64) float64 {
	if valStr := os.Getenv(name); valStr != "" {
		if val, err := strconv.ParseFloat(strings.TrimSpace(valStr), 64); err == nil {
			return val
		}
	}
	return defaultVal
}

// GetEnvAsMillis reads a millisecond count as a duration.
func GetEnvAsMillis(name string, defaultVal time.Duration) time.Duration {
	return time.Duration(GetEnvAsInt64(name, defaultVal.Milliseconds())) * time.Millisecond
}
