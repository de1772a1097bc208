// Package config is the ambient configuration layer, generalized from the
// teacher's internal/types.GlobalConfig/DBConfig pair: a small settings
// struct plus a narrow interface for retrieval, loadable from a .env file
// the way the teacher's root package loads one with godotenv.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the core's process-wide tunables. None of these affect
// compiled-program semantics; they only govern ambient behavior like the
// Module Loader's busy-wait cadence (§4.8, §5) and where the driver-side
// build record lives (§6).
type Config struct {
	// BuildStorePath is the sqlite file backing internal/buildstore.
	BuildStorePath string

	// ImportPollInterval is how often the Module Loader re-checks a
	// sibling file's compiled flag (§4.8 step 2, §5).
	ImportPollInterval time.Duration

	// ImportPollTimeout bounds the busy-wait; exceeding it is reported as
	// an internal diagnostic rather than hanging forever.
	ImportPollTimeout time.Duration
}

// Provider is the narrow retrieval interface components depend on, mirroring
// the teacher's GlobalConfig contract.
type Provider interface {
	GetConfig() *Config
}

// Default returns the built-in tunables used when no .env overrides are
// present.
func Default() *Config {
	return &Config{
		BuildStorePath:     "build.sqlite",
		ImportPollInterval: 10 * time.Millisecond,
		ImportPollTimeout:  30 * time.Second,
	}
}

// Load starts from Default and applies any GC_* environment variables,
// first loading them from a .env file at envPath if one exists (a missing
// file is not an error, matching godotenv.Load's typical call site in the
// teacher).
func Load(envPath string) *Config {
	_ = godotenv.Load(envPath)

	cfg := Default()
	if v := os.Getenv("GC_BUILD_STORE_PATH"); v != "" {
		cfg.BuildStorePath = v
	}
	if v := os.Getenv("GC_IMPORT_POLL_INTERVAL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.ImportPollInterval = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("GC_IMPORT_POLL_TIMEOUT_S"); v != "" {
		if s, err := strconv.Atoi(v); err == nil {
			cfg.ImportPollTimeout = time.Duration(s) * time.Second
		}
	}
	return cfg
}

type staticProvider struct{ cfg *Config }

func (p staticProvider) GetConfig() *Config { return p.cfg }

// NewProvider wraps a Config in a Provider.
func NewProvider(cfg *Config) Provider { return staticProvider{cfg: cfg} }
