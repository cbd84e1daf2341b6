package config

import (
	"log"
	"os"
	"path/filepath"
	"time"
)

// Config holds all runtime settings. The only required external input is the
// data root: the embedded store file and the document directory both live
// under it.
type Config struct {
	// DataDir is the root of all persisted state (SHELBY_DATA).
	DataDir string
	// DatabasePath is the SQLite file, derived from DataDir.
	DatabasePath string
	// DocumentsDir holds uploaded files, derived from DataDir.
	DocumentsDir string

	// BusyTimeout is handed to SQLite as the busy_timeout pragma.
	BusyTimeout time.Duration
	// SweepInterval is how often the orphan-file sweep runs.
	SweepInterval time.Duration
	// SweepGrace protects recently written files from the sweep, so an
	// upload whose metadata commit is still in flight is never reaped.
	SweepGrace time.Duration
}

// Load loads configuration from environment with sensible defaults.
// Precedence: explicit env var > .env file (if loaded by caller) > default.
func Load() Config {
	dataDir := getEnv("SHELBY_DATA", "data")
	return Config{
		DataDir:       dataDir,
		DatabasePath:  filepath.Join(dataDir, "shelby.db"),
		DocumentsDir:  filepath.Join(dataDir, "documents"),
		BusyTimeout:   getEnvDuration("SHELBY_BUSY_TIMEOUT", 5*time.Second),
		SweepInterval: getEnvDuration("SHELBY_SWEEP_INTERVAL", time.Hour),
		SweepGrace:    getEnvDuration("SHELBY_SWEEP_GRACE", time.Hour),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Printf("invalid duration for %s: %s", key, v)
			return def
		}
		return d
	}
	return def
}
