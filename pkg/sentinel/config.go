// config.go defines the immutable settings shared by every pipeline stage.

package sentinel

import (
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Default values applied to zero fields by New.
const (
	DefaultReportPath   = "/api/exceptions"
	DefaultHealthPath   = "/health"
	DefaultMethod       = "POST"
	DefaultTimeout      = 10 * time.Second
	DefaultMaxRetries   = 3
	DefaultRetryMinWait = 200 * time.Millisecond
	DefaultRetryMaxWait = 5 * time.Second
	DefaultBreakerTrips = 5
)

// Config holds the Catcher settings. It is copied by New and never modified
// afterwards; changing the caller's value has no effect on a running Catcher.
//
// The envconfig tags are the variables read by ConfigFromEnv.
type Config struct {
	// SentinelURL is the base URL of the collection endpoint.
	SentinelURL string `envconfig:"MIRA_SENTINEL_URL" validate:"required,url"`

	// ServiceName identifies the reporting process.
	ServiceName string `envconfig:"MIRA_SERVICE_NAME" validate:"required"`

	// Repo is an optional repository identifier (e.g. "company/service").
	Repo string `envconfig:"MIRA_REPO"`

	// ReportPath and HealthPath are joined onto SentinelURL.
	ReportPath string `envconfig:"MIRA_REPORT_PATH" default:"/api/exceptions" validate:"omitempty,startswith=/"`
	HealthPath string `envconfig:"MIRA_HEALTH_PATH" default:"/health" validate:"omitempty,startswith=/"`

	// Method is the HTTP method used for reports.
	Method string `envconfig:"MIRA_REPORT_METHOD" default:"POST" validate:"omitempty,oneof=POST PUT"`

	// Headers are sent with every request; authentication goes here.
	Headers map[string]string `envconfig:"MIRA_HEADERS"`

	// Timeout bounds each delivery attempt and each connection probe.
	Timeout time.Duration `envconfig:"MIRA_TIMEOUT" default:"10s"`

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int `envconfig:"MIRA_MAX_RETRIES" default:"3" validate:"gte=0,lte=10"`

	// RetryMinWait and RetryMaxWait bound the exponential backoff.
	RetryMinWait time.Duration `envconfig:"MIRA_RETRY_MIN_WAIT" default:"200ms"`
	RetryMaxWait time.Duration `envconfig:"MIRA_RETRY_MAX_WAIT" default:"5s"`

	// BreakerThreshold is the number of consecutive reports that exhausted
	// their retries on transient failures before the circuit opens. Negative
	// disables the breaker.
	BreakerThreshold int `envconfig:"MIRA_BREAKER_THRESHOLD" default:"5"`

	// Compress gzips report bodies.
	Compress bool `envconfig:"MIRA_COMPRESS" default:"false"`

	// IncludeHeaders and SkipStatusCodes are the defaults for framework
	// adapters that do not override them.
	IncludeHeaders  bool  `envconfig:"MIRA_INCLUDE_HEADERS" default:"false"`
	SkipStatusCodes []int `envconfig:"MIRA_SKIP_STATUS_CODES" validate:"dive,gte=100,lte=599"`

	// DefaultSeverity applies when a report does not set one.
	DefaultSeverity Severity `envconfig:"MIRA_DEFAULT_SEVERITY" default:"medium" validate:"omitempty,oneof=low medium high critical"`

	// DefaultTags are added to every report.
	DefaultTags []string `envconfig:"MIRA_TAGS"`

	// MaxReportsPerSecond caps accepted reports. Zero means unlimited.
	MaxReportsPerSecond float64 `envconfig:"MIRA_MAX_REPORTS_PER_SECOND" default:"0" validate:"gte=0"`

	// DisableSystemState drops the process snapshot from envelopes.
	DisableSystemState bool `envconfig:"MIRA_DISABLE_SYSTEM_STATE" default:"false"`

	// Scrub enables redaction of secrets and PII before delivery.
	Scrub bool `envconfig:"MIRA_SCRUB" default:"false"`

	// ShutdownGrace is how long Shutdown waits for in-flight reports.
	ShutdownGrace time.Duration `envconfig:"MIRA_SHUTDOWN_GRACE" default:"0s"`

	// PanicFlushTimeout is how long an uncaught panic waits for its report
	// before unwinding continues. Zero means fire-and-forget.
	PanicFlushTimeout time.Duration `envconfig:"MIRA_PANIC_FLUSH_TIMEOUT" default:"0s"`
}

// Validate checks the configuration as New would see it, after defaults.
func (c Config) Validate() error {
	cfg := c.withDefaults()
	if err := validator.New().Struct(cfg); err != nil {
		return &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}
	if cfg.RetryMinWait > cfg.RetryMaxWait {
		return &ConfigError{
			Type:    ErrValidation,
			Message: "RetryMinWait must not exceed RetryMaxWait",
		}
	}
	return nil
}

// withDefaults returns a deep copy of c with zero fields defaulted.
func (c Config) withDefaults() Config {
	c.SentinelURL = strings.TrimSpace(c.SentinelURL)
	c.ServiceName = strings.TrimSpace(c.ServiceName)
	if c.ReportPath == "" {
		c.ReportPath = DefaultReportPath
	}
	if c.HealthPath == "" {
		c.HealthPath = DefaultHealthPath
	}
	if c.Method == "" {
		c.Method = DefaultMethod
	}
	c.Method = strings.ToUpper(c.Method)
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RetryMinWait <= 0 {
		c.RetryMinWait = DefaultRetryMinWait
	}
	if c.RetryMaxWait <= 0 {
		c.RetryMaxWait = DefaultRetryMaxWait
	}
	if c.BreakerThreshold == 0 {
		c.BreakerThreshold = DefaultBreakerTrips
	}
	if c.DefaultSeverity == "" {
		c.DefaultSeverity = SeverityMedium
	}

	c.Headers = maps.Clone(c.Headers)
	c.SkipStatusCodes = slices.Clone(c.SkipStatusCodes)
	c.DefaultTags = slices.Clone(c.DefaultTags)
	return c
}

// reportURL is the full URL reports are sent to.
func (c Config) reportURL() string {
	return strings.TrimRight(c.SentinelURL, "/") + c.ReportPath
}

// healthURL is the full URL probed by TestConnection.
func (c Config) healthURL() string {
	return strings.TrimRight(c.SentinelURL, "/") + c.HealthPath
}
