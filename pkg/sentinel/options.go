package sentinel

import (
	"log/slog"
	"maps"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures a Catcher.
type Option func(*catcherOptions)

type catcherOptions struct {
	logger     *slog.Logger
	httpClient *http.Client
	deliverer  Deliverer
	sinks      []Sink
	filter     ErrorFilter
	enricher   ContextEnricher
	registerer prometheus.Registerer
	scrubber   *Scrubber
	now        func() time.Time
}

// WithLogger sets the logger for local diagnostics. Delivery failures of the
// automatic path and faults in user hooks are logged here, never reported.
func WithLogger(l *slog.Logger) Option {
	return func(o *catcherOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithHTTPClient sets the *http.Client used by the default Delivery Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *catcherOptions) {
		o.httpClient = hc
	}
}

// WithDeliverer replaces the Delivery Client entirely.
func WithDeliverer(d Deliverer) Option {
	return func(o *catcherOptions) {
		o.deliverer = d
	}
}

// WithSink adds a mirror sink. May be given more than once.
func WithSink(s Sink) Option {
	return func(o *catcherOptions) {
		if s != nil {
			o.sinks = append(o.sinks, s)
		}
	}
}

// WithErrorFilter sets the initial error filter.
func WithErrorFilter(f ErrorFilter) Option {
	return func(o *catcherOptions) {
		o.filter = f
	}
}

// WithContextEnricher sets the initial context enricher.
func WithContextEnricher(e ContextEnricher) Option {
	return func(o *catcherOptions) {
		o.enricher = e
	}
}

// WithMetrics registers pipeline metrics with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *catcherOptions) {
		o.registerer = reg
	}
}

// WithScrubber enables scrubbing with a custom configuration.
func WithScrubber(cfg ScrubberConfig) Option {
	return func(o *catcherOptions) {
		o.scrubber = NewScrubber(cfg)
	}
}

// WithDefaultScrubbing enables scrubbing with production-safe defaults.
func WithDefaultScrubbing() Option {
	return func(o *catcherOptions) {
		o.scrubber = NewScrubber(DefaultScrubberConfig())
	}
}

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *catcherOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// ReportOption customizes a single report.
type ReportOption func(*reportOptions)

type reportOptions struct {
	context  map[string]any
	tags     []string
	severity Severity
	source   Source
	stack    []Frame
	hasStack bool
	skip     int
}

func newReportOptions(opts []ReportOption) reportOptions {
	var ro reportOptions
	for _, opt := range opts {
		opt(&ro)
	}
	if ro.source == "" {
		ro.source = SourceManual
	}
	return ro
}

// WithContext adds caller context to the report. Repeated calls accumulate.
func WithContext(ctx map[string]any) ReportOption {
	return func(o *reportOptions) {
		if len(ctx) == 0 {
			return
		}
		if o.context == nil {
			o.context = make(map[string]any, len(ctx))
		}
		maps.Copy(o.context, ctx)
	}
}

// WithTags adds tags to the report.
func WithTags(tags ...string) ReportOption {
	return func(o *reportOptions) {
		o.tags = append(o.tags, tags...)
	}
}

// WithSeverity overrides the report severity.
func WithSeverity(s Severity) ReportOption {
	return func(o *reportOptions) {
		o.severity = s
	}
}

// WithSource marks which capture path produced the report.
func WithSource(s Source) ReportOption {
	return func(o *reportOptions) {
		o.source = s
	}
}

// WithStack supplies a stack captured elsewhere, e.g. at a recover site.
func WithStack(frames []Frame) ReportOption {
	return func(o *reportOptions) {
		o.stack = frames
		o.hasStack = true
	}
}

// WithSkipFrames drops n additional frames from the captured stack, for
// helpers that wrap Report.
func WithSkipFrames(n int) ReportOption {
	return func(o *reportOptions) {
		if n > 0 {
			o.skip = n
		}
	}
}
