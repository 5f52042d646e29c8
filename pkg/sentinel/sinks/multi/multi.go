// Package multi provides a sink that fans out to multiple sinks.
// All sinks receive all envelopes; errors are aggregated.
package multi

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/strongdm/sentinel-catcher/pkg/sentinel"
)

// multiSink fans out to multiple sinks.
type multiSink struct {
	sinks []sentinel.Sink
}

// NewMultiSink creates a sink that writes to multiple sinks concurrently.
// All sinks receive all envelopes. Errors are aggregated via errors.Join.
func NewMultiSink(sinks ...sentinel.Sink) sentinel.Sink {
	return &multiSink{
		sinks: sinks,
	}
}

// Write sends the envelope to all sinks, collecting any errors.
// All sinks are called even if some return errors.
func (s *multiSink) Write(ctx context.Context, env sentinel.Envelope) error {
	return s.each(func(sink sentinel.Sink) error {
		return sink.Write(ctx, env)
	})
}

// Flush calls Flush on all sinks, collecting any errors.
func (s *multiSink) Flush(ctx context.Context) error {
	return s.each(func(sink sentinel.Sink) error {
		return sink.Flush(ctx)
	})
}

// Close calls Close on all sinks, collecting any errors.
func (s *multiSink) Close() error {
	return s.each(func(sink sentinel.Sink) error {
		return sink.Close()
	})
}

func (s *multiSink) each(fn func(sentinel.Sink) error) error {
	errs := make([]error, len(s.sinks))
	var g errgroup.Group
	for i, sink := range s.sinks {
		g.Go(func() error {
			errs[i] = fn(sink)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
