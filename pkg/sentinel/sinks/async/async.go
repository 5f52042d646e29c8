// Package async provides a sink wrapper with a bounded queue, so slow mirrors
// never hold up the capture pipeline. Envelopes are written in the background;
// the oldest are dropped when the queue is full.
package async

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/strongdm/sentinel-catcher/pkg/sentinel"
)

// ErrClosed is returned by Write and Flush after Close.
var ErrClosed = errors.New("async sink is closed")

// AsyncSinkOption configures the async sink.
type AsyncSinkOption func(*asyncSinkConfig)

type asyncSinkConfig struct {
	queueSize    int
	pollInterval time.Duration
	onDropped    func(count int)
	onError      func(err error)
}

// WithQueueSize sets the maximum number of queued envelopes (default: 1000).
func WithQueueSize(size int) AsyncSinkOption {
	return func(c *asyncSinkConfig) {
		if size > 0 {
			c.queueSize = size
		}
	}
}

// WithPollInterval sets how often Flush checks for an empty queue (default: 10ms).
func WithPollInterval(d time.Duration) AsyncSinkOption {
	return func(c *asyncSinkConfig) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithOnDropped sets a callback invoked when envelopes are dropped due to queue overflow.
func WithOnDropped(fn func(count int)) AsyncSinkOption {
	return func(c *asyncSinkConfig) {
		c.onDropped = fn
	}
}

// WithOnError sets a callback for inner sink write failures, which are
// otherwise discarded.
func WithOnError(fn func(err error)) AsyncSinkOption {
	return func(c *asyncSinkConfig) {
		c.onError = fn
	}
}

// asyncSink wraps a sink with a bounded queue.
type asyncSink struct {
	inner        sentinel.Sink
	queue        chan sentinel.Envelope
	done         chan struct{}
	pending      atomic.Int64
	pollInterval time.Duration
	onDropped    func(count int)
	onError      func(err error)

	closeMu   sync.RWMutex
	closed    bool
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewAsyncSink wraps a sink with a bounded queue for async writes.
// Write returns immediately; envelopes are processed in the background.
// When the queue is full, the oldest envelope is dropped to make room.
func NewAsyncSink(inner sentinel.Sink, opts ...AsyncSinkOption) sentinel.Sink {
	cfg := &asyncSinkConfig{
		queueSize:    1000,
		pollInterval: 10 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	s := &asyncSink{
		inner:        inner,
		queue:        make(chan sentinel.Envelope, cfg.queueSize),
		done:         make(chan struct{}),
		pollInterval: cfg.pollInterval,
		onDropped:    cfg.onDropped,
		onError:      cfg.onError,
	}

	s.wg.Add(1)
	go s.processLoop()

	return s
}

// processLoop drains the queue and writes to the inner sink.
func (s *asyncSink) processLoop() {
	defer s.wg.Done()

	for {
		select {
		case env := <-s.queue:
			s.write(env)
		case <-s.done:
			for {
				select {
				case env := <-s.queue:
					s.write(env)
				default:
					return
				}
			}
		}
	}
}

func (s *asyncSink) write(env sentinel.Envelope) {
	defer s.pending.Add(-1)
	if err := s.inner.Write(context.Background(), env); err != nil && s.onError != nil {
		s.onError(err)
	}
}

// Write enqueues an envelope for async processing.
// Returns immediately. If the queue is full, drops the oldest envelope.
func (s *asyncSink) Write(ctx context.Context, env sentinel.Envelope) error {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	s.pending.Add(1)
	select {
	case s.queue <- env:
		return nil
	default:
		s.dropOldestAndEnqueue(env)
		return nil
	}
}

// dropOldestAndEnqueue drops the oldest envelope and enqueues the new one.
func (s *asyncSink) dropOldestAndEnqueue(env sentinel.Envelope) {
	select {
	case <-s.queue:
		s.dropped()
	default:
		// Queue was emptied by the processor, try again
	}

	select {
	case s.queue <- env:
	default:
		// Still full, drop the new envelope
		s.dropped()
	}
}

func (s *asyncSink) dropped() {
	s.pending.Add(-1)
	if s.onDropped != nil {
		s.onDropped(1)
	}
}

// Flush blocks until every accepted envelope has been written to the inner
// sink, then flushes it.
func (s *asyncSink) Flush(ctx context.Context) error {
	s.closeMu.RLock()
	closed := s.closed
	s.closeMu.RUnlock()
	if closed {
		return ErrClosed
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for s.pending.Load() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return s.inner.Flush(ctx)
}

// Close stops the processor after draining the queue and closes the inner sink.
func (s *asyncSink) Close() error {
	s.closeOnce.Do(func() {
		s.closeMu.Lock()
		s.closed = true
		s.closeMu.Unlock()

		close(s.done)
		s.wg.Wait()
	})

	return s.inner.Close()
}
