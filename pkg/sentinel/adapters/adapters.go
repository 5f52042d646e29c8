// Package adapters holds the framework-independent half of every web
// framework integration: request description, skip-status filtering, context
// extraction and the non-blocking hand-off to the Catcher.
//
// Framework packages (nethttp, chi) only supply how to read a route pattern
// and a request ID from their own request context.
package adapters

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"strings"

	"github.com/strongdm/sentinel-catcher/pkg/sentinel"
)

// RequestDescriptor is the framework-neutral view of the request that failed.
type RequestDescriptor struct {
	Method     string
	Path       string
	Route      string
	Query      string
	Headers    http.Header
	RemoteAddr string
	UserAgent  string
	RequestID  string

	// StatusCode is the status the error maps to, or 0 when unknown.
	StatusCode int
}

// HeaderRequestID is read when the framework has no request ID of its own.
const HeaderRequestID = "X-Request-ID"

// DefaultRedactHeaders are masked whenever headers are included in a report.
var DefaultRedactHeaders = []string{"Authorization", "Cookie", "Set-Cookie", "X-Api-Key"}

// Options configure an adapter.
type Options struct {
	// SkipStatusCodes are expected statuses (404, 401, ...) that are never
	// reported. nil takes Config.SkipStatusCodes.
	SkipStatusCodes []int

	// IncludeHeaders adds request headers to the report context. It is also
	// enabled by Config.IncludeHeaders.
	IncludeHeaders bool

	// ExtractRequestContext adds caller-defined keys to the default request
	// context. Its keys win on collision.
	ExtractRequestContext func(RequestDescriptor) map[string]any

	// RedactHeaders are masked in addition to DefaultRedactHeaders.
	RedactHeaders []string

	Logger *slog.Logger
}

// WithDefaults fills unset options from the Catcher configuration.
func (o Options) WithDefaults(cfg sentinel.Config) Options {
	if o.SkipStatusCodes == nil {
		o.SkipStatusCodes = slices.Clone(cfg.SkipStatusCodes)
	}
	o.IncludeHeaders = o.IncludeHeaders || cfg.IncludeHeaders
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Adapter is the contract every framework integration implements.
type Adapter interface {
	// OnRequestError reports err for req unless its status is skipped. It
	// never waits for delivery.
	OnRequestError(ctx context.Context, err error, req RequestDescriptor)

	// ExtractRequestContext derives the report context for req.
	ExtractRequestContext(req RequestDescriptor) map[string]any
}

// Framework describes how to read framework-specific request data.
type Framework struct {
	// Name tags every report, e.g. "net/http" or "chi".
	Name string

	// Route returns the matched route pattern, or "".
	Route func(*http.Request) string

	// RequestID returns the framework's request ID, or "".
	RequestID func(*http.Request) string
}

// Base implements Adapter on top of a sentinel.Reporter.
type Base struct {
	fw       Framework
	reporter sentinel.Reporter
	opts     Options
	log      *slog.Logger
	skip     map[int]struct{}
	redact   map[string]struct{}
}

var _ Adapter = (*Base)(nil)

// NewBase creates the shared adapter logic for fw. opts should already carry
// the Catcher's defaults (see Options.WithDefaults).
func NewBase(fw Framework, reporter sentinel.Reporter, opts Options) *Base {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	b := &Base{
		fw:       fw,
		reporter: reporter,
		opts:     opts,
		log:      opts.Logger.With("framework", fw.Name),
		skip:     make(map[int]struct{}, len(opts.SkipStatusCodes)),
		redact:   make(map[string]struct{}),
	}
	for _, code := range opts.SkipStatusCodes {
		b.skip[code] = struct{}{}
	}
	for _, h := range append(slices.Clone(DefaultRedactHeaders), opts.RedactHeaders...) {
		b.redact[http.CanonicalHeaderKey(h)] = struct{}{}
	}
	return b
}

// Name returns the framework name used in tags.
func (b *Base) Name() string { return b.fw.Name }

// Skipped reports whether status is configured as expected.
func (b *Base) Skipped(status int) bool {
	_, ok := b.skip[status]
	return ok
}

// OnRequestError implements Adapter.
func (b *Base) OnRequestError(ctx context.Context, err error, req RequestDescriptor) {
	if err == nil {
		return
	}
	if req.StatusCode == 0 {
		req.StatusCode = StatusOf(err)
	}
	if b.Skipped(req.StatusCode) {
		b.log.Debug("sentinel: skipping expected status",
			"status_code", req.StatusCode,
			"path", req.Path)
		return
	}
	b.report(ctx, err, req)
}

// OnRequestPanic reports a panic recovered from a request handler.
func (b *Base) OnRequestPanic(ctx context.Context, value any, stack []sentinel.Frame, req RequestDescriptor) {
	req.StatusCode = http.StatusInternalServerError
	if b.Skipped(req.StatusCode) {
		b.log.Debug("sentinel: skipping recovered panic with expected status",
			"status_code", req.StatusCode,
			"path", req.Path)
		return
	}
	b.report(ctx, asError(value), req,
		sentinel.WithSeverity(sentinel.SeverityCritical),
		sentinel.WithStack(stack),
		sentinel.WithTags("panic"))
}

func (b *Base) report(ctx context.Context, err error, req RequestDescriptor, extra ...sentinel.ReportOption) {
	opts := append([]sentinel.ReportOption{
		sentinel.WithContext(b.ExtractRequestContext(req)),
		sentinel.WithSource(sentinel.SourceFramework),
		sentinel.WithTags("framework", b.fw.Name),
		sentinel.WithSkipFrames(2),
	}, extra...)

	// The framework's response path never waits on delivery.
	sentinel.WarnOnFailure(b.log, b.reporter.ReportAsync(ctx, err, opts...), "path", req.Path)
}

// ExtractRequestContext implements Adapter. The default keys are extended by
// Options.ExtractRequestContext; a panicking extractor is logged and ignored.
func (b *Base) ExtractRequestContext(req RequestDescriptor) map[string]any {
	out := DefaultExtractor(req, b.opts.IncludeHeaders, b.redact)
	if b.opts.ExtractRequestContext == nil {
		return out
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				b.log.Error("sentinel: request context extractor panicked",
					"panic", fmt.Sprint(r))
			}
		}()
		maps.Copy(out, b.opts.ExtractRequestContext(req))
	}()
	return out
}

// Describe builds the descriptor for r using the framework's route and
// request ID readers.
func (b *Base) Describe(r *http.Request) RequestDescriptor {
	d := Describe(r)
	if b.fw.Route != nil {
		d.Route = b.fw.Route(r)
	}
	if b.fw.RequestID != nil {
		if id := b.fw.RequestID(r); id != "" {
			d.RequestID = id
		}
	}
	return d
}

// Describe builds a descriptor from a plain *http.Request.
func Describe(r *http.Request) RequestDescriptor {
	return RequestDescriptor{
		Method:     r.Method,
		Path:       r.URL.Path,
		Query:      r.URL.RawQuery,
		Headers:    r.Header.Clone(),
		RemoteAddr: r.RemoteAddr,
		UserAgent:  r.UserAgent(),
		RequestID:  r.Header.Get(HeaderRequestID),
	}
}

// DefaultExtractor derives the standard request context. Headers are added
// only when includeHeaders is set, with redacted names masked. redacted holds
// canonical header names.
func DefaultExtractor(req RequestDescriptor, includeHeaders bool, redacted map[string]struct{}) map[string]any {
	out := map[string]any{
		"method": req.Method,
		"path":   req.Path,
	}
	if req.Route != "" {
		out["route"] = req.Route
	}
	if req.Query != "" {
		out["query"] = req.Query
	}
	if req.RemoteAddr != "" {
		out["remote_addr"] = req.RemoteAddr
	}
	if req.UserAgent != "" {
		out["user_agent"] = req.UserAgent
	}
	if req.RequestID != "" {
		out["request_id"] = req.RequestID
	}
	if req.StatusCode != 0 {
		out["status_code"] = req.StatusCode
	}

	if includeHeaders && len(req.Headers) > 0 {
		headers := make(map[string]any, len(req.Headers))
		for name, values := range req.Headers {
			if _, ok := redacted[http.CanonicalHeaderKey(name)]; ok {
				headers[name] = "[REDACTED]"
				continue
			}
			headers[name] = strings.Join(values, ", ")
		}
		out["headers"] = headers
	}
	return out
}

// Logger returns the adapter's logger.
func (b *Base) Logger() *slog.Logger { return b.log }
