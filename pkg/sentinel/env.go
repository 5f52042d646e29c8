// env.go bootstraps a Catcher from process environment variables.
//
// The loading sequence is:
//  1. Load a .env file via godotenv (non-fatal if absent).
//  2. Skip entirely when MIRA_SENTINEL_URL or MIRA_SERVICE_NAME is unset.
//  3. Use envconfig to populate Config from its struct tags.
//  4. Validate, construct and initialize the Catcher.

package sentinel

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Environment variables that must be present for AutoInitialize to run.
const (
	EnvSentinelURL = "MIRA_SENTINEL_URL"
	EnvServiceName = "MIRA_SERVICE_NAME"
	EnvRepo        = "MIRA_REPO"
)

// ConfigFromEnv reads a Config from the environment. It reports ok=false,
// with a nil error, when the required variables are absent. The presence check
// and envconfig both read the process environment after .env is loaded.
func ConfigFromEnv() (Config, bool, error) {
	// godotenv never overrides variables that are already set.
	_ = godotenv.Load()

	for _, key := range []string{EnvSentinelURL, EnvServiceName} {
		if v, ok := os.LookupEnv(key); !ok || strings.TrimSpace(v) == "" {
			return Config{}, false, nil
		}
	}

	// The empty prefix makes envconfig read the exact tag names.
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, false, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}
	return cfg, true, nil
}

// AutoInitialize builds and initializes a Catcher from the environment.
//
// It returns (nil, nil) when MIRA_SENTINEL_URL or MIRA_SERVICE_NAME is not
// set: running without a collector configured is a supported mode, not an
// error. Values that are present but invalid produce a *ConfigError.
func AutoInitialize(opts ...Option) (*Catcher, error) {
	cfg, ok, err := ConfigFromEnv()
	if err != nil || !ok {
		return nil, err
	}

	c, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	c.Initialize()
	return c, nil
}
