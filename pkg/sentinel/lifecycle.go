// lifecycle.go implements the Catcher state machine:
// uninitialized -> initialized -> shut down -> initialized ...

package sentinel

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/strongdm/sentinel-catcher/pkg/sentinel/hook"
)

// State is the lifecycle state of a Catcher.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateShutDown
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateShutDown:
		return "shut down"
	}
	return "unknown"
}

// State returns the current lifecycle state.
func (c *Catcher) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Initialize installs the Catcher's panic handler into the process-wide hook
// chain. It is idempotent, makes no network call, and may be called again
// after Shutdown to resume automatic capture.
func (c *Catcher) Initialize() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateInitialized {
		return
	}
	c.inflight = &sync.WaitGroup{}
	c.token = hook.Install(c.handleUncaught)
	c.state = StateInitialized
	c.log.Debug("sentinel: initialized", "endpoint", c.cfg.reportURL())
}

// Shutdown removes the Catcher's panic handler and rejects further reports.
// It waits at most ShutdownGrace (or until ctx is done) for in-flight reports,
// which are never cancelled, then flushes mirror sinks. It is idempotent.
func (c *Catcher) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateShutDown {
		c.mu.Unlock()
		return nil
	}
	c.token.Restore()
	c.token = nil
	c.state = StateShutDown
	wg := c.inflight
	c.mu.Unlock()

	if !c.waitInflight(ctx, wg) {
		c.log.Warn("sentinel: shutdown abandoned in-flight reports",
			"grace", c.cfg.ShutdownGrace)
	}

	var errs []error
	for _, s := range c.sinks {
		if err := s.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.log.Debug("sentinel: shut down")
	return errors.Join(errs...)
}

// Close shuts the Catcher down and releases its mirror sinks.
func (c *Catcher) Close() error {
	errs := []error{c.Shutdown(context.Background())}
	for _, s := range c.sinks {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

// acquire registers one in-flight report. It fails when the Catcher is not
// initialized.
func (c *Catcher) acquire() (done func(), err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateUninitialized:
		return nil, ErrNotInitialized
	case StateShutDown:
		return nil, ErrShutDown
	}
	wg := c.inflight
	wg.Add(1)
	return wg.Done, nil
}

// waitInflight reports whether every report of the generation finished
// within the grace period.
func (c *Catcher) waitInflight(ctx context.Context, wg *sync.WaitGroup) bool {
	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return true
	default:
	}
	if c.cfg.ShutdownGrace <= 0 {
		return false
	}

	t := time.NewTimer(c.cfg.ShutdownGrace)
	defer t.Stop()
	select {
	case <-finished:
		return true
	case <-t.C:
		return false
	case <-ctx.Done():
		return false
	}
}
