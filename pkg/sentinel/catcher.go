// catcher.go provides the Catcher, which turns raw errors into delivered
// reports: filter, enrich, build the envelope, mirror it, deliver it.

package sentinel

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/strongdm/sentinel-catcher/pkg/sentinel/hook"
)

// Reporter is the reporting surface adapters depend on. *Catcher implements it.
type Reporter interface {
	// Report captures err and waits for its delivery to be attempted.
	Report(ctx context.Context, err error, opts ...ReportOption) (Outcome, error)

	// ReportAsync captures err without waiting. The channel receives exactly
	// one Outcome.
	ReportAsync(ctx context.Context, err error, opts ...ReportOption) <-chan Outcome
}

// Catcher captures errors and forwards them to the collection endpoint.
// It is safe for concurrent use.
type Catcher struct {
	cfg       Config
	log       *slog.Logger
	deliverer Deliverer
	sinks     []Sink
	scrubber  *Scrubber
	metrics   *Metrics
	limiter   *rate.Limiter
	now       func() time.Time

	filter   atomic.Pointer[ErrorFilter]
	enricher atomic.Pointer[ContextEnricher]
	probe    singleflight.Group

	mu       sync.Mutex
	state    State
	token    *hook.Token
	inflight *sync.WaitGroup
}

var _ Reporter = (*Catcher)(nil)

// New validates cfg and creates a Catcher in the uninitialized state. cfg is
// copied; later changes to it have no effect.
func New(cfg Config, opts ...Option) (*Catcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	o := catcherOptions{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Catcher{
		cfg:       cfg,
		log:       o.logger.With("service", cfg.ServiceName),
		deliverer: o.deliverer,
		sinks:     o.sinks,
		scrubber:  o.scrubber,
		now:       o.now,
		inflight:  &sync.WaitGroup{},
	}

	if c.deliverer == nil {
		c.deliverer = NewClient(cfg, WithClientHTTP(o.httpClient))
	}
	if c.scrubber == nil && cfg.Scrub {
		c.scrubber = NewScrubber(DefaultScrubberConfig())
	}
	if o.registerer != nil {
		c.metrics = NewMetrics(o.registerer, cfg.ServiceName)
	}
	if cfg.MaxReportsPerSecond > 0 {
		burst := int(math.Ceil(cfg.MaxReportsPerSecond))
		c.limiter = rate.NewLimiter(rate.Limit(cfg.MaxReportsPerSecond), burst)
	}

	c.SetErrorFilter(o.filter)
	c.SetContextEnricher(o.enricher)
	return c, nil
}

// Config returns a copy of the configuration in effect, defaults applied.
func (c *Catcher) Config() Config {
	return c.cfg.withDefaults()
}

// SetErrorFilter replaces the error filter for subsequent captures. nil
// restores the accept-all default.
func (c *Catcher) SetErrorFilter(f ErrorFilter) {
	if f == nil {
		f = AcceptAll
	}
	c.filter.Store(&f)
}

// SetContextEnricher replaces the context enricher for subsequent captures.
// nil restores the default, which adds nothing.
func (c *Catcher) SetContextEnricher(e ContextEnricher) {
	if e == nil {
		e = NoEnrichment
	}
	c.enricher.Store(&e)
}

// Report captures err and waits until delivery has been attempted.
//
// The returned error is non-nil only for misuse: err is nil, or the Catcher
// is not initialized. Delivery failures are described by the Outcome and
// never returned as an error.
func (c *Catcher) Report(ctx context.Context, err error, opts ...ReportOption) (Outcome, error) {
	ro := newReportOptions(opts)
	if !ro.hasStack {
		ro.stack = hook.Callers(1 + ro.skip)
	}
	if err == nil {
		return Outcome{Status: StatusDropped, Err: ErrNilError}, ErrNilError
	}

	done, serr := c.acquire()
	if serr != nil {
		return Outcome{Status: StatusDropped, Err: serr}, serr
	}
	defer done()

	return c.process(ctx, err, ro), nil
}

// ReportAsync captures err on a new goroutine and returns immediately. The
// buffered channel always receives exactly one Outcome and is then closed;
// misuse yields a dropped Outcome carrying the misuse error.
//
// The report is detached from ctx cancellation so that it outlives the
// request that raised it; ctx values are kept.
func (c *Catcher) ReportAsync(ctx context.Context, err error, opts ...ReportOption) <-chan Outcome {
	ro := newReportOptions(opts)
	if !ro.hasStack {
		ro.stack = hook.Callers(1 + ro.skip)
	}
	return c.goReport(context.WithoutCancel(ctx), err, ro, nil)
}

// goReport runs the pipeline on its own goroutine. after, when set, runs on
// that goroutine once the Outcome is known.
func (c *Catcher) goReport(ctx context.Context, err error, ro reportOptions, after func(Outcome)) <-chan Outcome {
	ch := make(chan Outcome, 1)
	if err == nil {
		ch <- Outcome{Status: StatusDropped, Err: ErrNilError}
		close(ch)
		return ch
	}

	done, serr := c.acquire()
	if serr != nil {
		ch <- Outcome{Status: StatusDropped, Err: serr}
		close(ch)
		return ch
	}

	go func() {
		defer close(ch)
		defer done()
		out := c.process(ctx, err, ro)
		if after != nil {
			after(out)
		}
		ch <- out
	}()
	return ch
}

// CapturePanic reports a recovered panic value without blocking the caller
// beyond PanicFlushTimeout. Failures are logged and never escalate.
func (c *Catcher) CapturePanic(value any, stack []Frame) {
	c.capturePanic(hook.AsError(value), stack)
}

func (c *Catcher) handleUncaught(u hook.Uncaught) {
	c.capturePanic(u.Err, u.Stack)
}

func (c *Catcher) capturePanic(err error, stack []Frame) {
	ro := reportOptions{source: SourcePanic, stack: stack, hasStack: true}
	ch := c.goReport(context.Background(), err, ro, c.logFailure)

	if c.cfg.PanicFlushTimeout <= 0 {
		return
	}
	t := time.NewTimer(c.cfg.PanicFlushTimeout)
	defer t.Stop()
	select {
	case <-ch:
	case <-t.C:
		c.log.Warn("sentinel: panic report still in flight after flush timeout",
			"timeout", c.cfg.PanicFlushTimeout)
	}
}

// Recover reports an in-flight panic synchronously and returns the recovered
// value. Unlike hook.Recover it does NOT re-panic. It must be deferred
// directly:
//
//	defer c.Recover(ctx)
func (c *Catcher) Recover(ctx context.Context) any {
	r := recover()
	if r == nil {
		return nil
	}
	// Ignore misuse: a recover site must never add a second failure.
	_, _ = c.Report(ctx, hook.AsError(r),
		WithSource(SourcePanic),
		WithStack(hook.Callers(1)))
	return r
}

func (c *Catcher) logFailure(o Outcome) {
	if o.Status != StatusFailed {
		return
	}
	c.log.Warn("sentinel: failed to deliver report",
		"event_id", o.EventID,
		"attempts", o.Attempts,
		"status_code", o.StatusCode,
		"error", o.Err)
}

// WarnOnFailure waits in the background for the single Outcome on ch and logs
// it at warn level when the report failed or was dropped. Callers that
// fire-and-forget ReportAsync use it so delivery failures stay visible.
func WarnOnFailure(log *slog.Logger, ch <-chan Outcome, attrs ...any) {
	if log == nil {
		log = slog.Default()
	}
	go func() {
		o, ok := <-ch
		if !ok || o.OK() {
			return
		}
		log.Warn("sentinel: report not delivered", append([]any{
			"status", o.Status,
			"event_id", o.EventID,
			"attempts", o.Attempts,
			"status_code", o.StatusCode,
			"error", o.Err,
		}, attrs...)...)
	}()
}

// process runs the pipeline for one error. It never panics.
func (c *Catcher) process(ctx context.Context, err error, ro reportOptions) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("sentinel: capture pipeline panicked", "panic", fmt.Sprint(r))
			out = Outcome{Status: StatusFailed, Err: fmt.Errorf("sentinel: capture pipeline panicked: %v", r)}
		}
		c.metrics.RecordOutcome(ro.source, out)
	}()

	accept, faulted := runFilter(c.log, *c.filter.Load(), err)
	if faulted {
		c.metrics.RecordHookFault("filter")
	}
	if !accept {
		return Outcome{Status: StatusFiltered}
	}

	if c.limiter != nil && !c.limiter.Allow() {
		return Outcome{Status: StatusDropped, Err: ErrRateLimited}
	}

	rec := c.newRecord(ctx, err, ro)
	extra, faulted := runEnricher(c.log, *c.enricher.Load(), err, rec.Context)
	if faulted {
		c.metrics.RecordHookFault("enricher")
	}

	env := c.buildEnvelope(rec, extra)
	c.mirror(ctx, env)

	start := time.Now()
	out = c.deliverer.Send(ctx, env)
	c.metrics.RecordDelivery(out, time.Since(start))
	if out.EventID == "" {
		out.EventID = env.EventID
	}
	return out
}

// newRecord captures err with its caller context. Ambient fields from ctx are
// merged under the explicit report context.
func (c *Catcher) newRecord(ctx context.Context, err error, ro reportOptions) Record {
	severity := ro.severity
	if !severity.Valid() {
		if ro.source == SourcePanic {
			severity = SeverityCritical
		} else {
			severity = c.cfg.DefaultSeverity
		}
	}

	return Record{
		Err:       err,
		Message:   err.Error(),
		Type:      errorType(err),
		Stack:     ro.stack,
		Context:   mergeContext(FieldsFromContext(ctx), ro.context),
		Tags:      mergeTags(c.cfg.DefaultTags, ro.tags),
		Severity:  severity,
		Source:    ro.source,
		Timestamp: c.now().UTC(),
	}
}

// buildEnvelope derives the wire report from rec and the enricher output.
func (c *Catcher) buildEnvelope(rec Record, extra map[string]any) Envelope {
	env := Envelope{
		EventID:     uuid.NewString(),
		ServiceName: c.cfg.ServiceName,
		Repo:        c.cfg.Repo,
		Error: ErrorInfo{
			Message:    rec.Message,
			Type:       rec.Type,
			StackTrace: stackStrings(rec.Stack),
		},
		Context:   mergeContext(rec.Context, extra),
		Tags:      rec.Tags,
		Severity:  rec.Severity,
		Timestamp: rec.Timestamp,
		Source:    rec.Source,
	}

	if c.scrubber != nil {
		env = c.scrubber.ScrubEnvelope(env)
	}
	env.Fingerprint = Fingerprint(env)
	if !c.cfg.DisableSystemState {
		env.System = CaptureSystemState(processStart)
	}
	return env
}

// mirror writes env to every sink. Sink errors are logged only.
func (c *Catcher) mirror(ctx context.Context, env Envelope) {
	for _, s := range c.sinks {
		if err := s.Write(ctx, env); err != nil {
			c.metrics.RecordSinkError()
			c.log.Warn("sentinel: mirror sink write failed",
				"event_id", env.EventID,
				"error", err)
		}
	}
}
