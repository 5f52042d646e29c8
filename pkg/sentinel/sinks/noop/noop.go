// Package noop provides a sink and a deliverer that discard every envelope.
// Useful for tests and for running with reporting disabled.
package noop

import (
	"context"

	"github.com/strongdm/sentinel-catcher/pkg/sentinel"
)

// noopSink discards all envelopes.
type noopSink struct{}

// NewNoopSink creates a sink that discards all envelopes.
func NewNoopSink() sentinel.Sink {
	return &noopSink{}
}

func (s *noopSink) Write(ctx context.Context, env sentinel.Envelope) error {
	return nil
}

func (s *noopSink) Flush(ctx context.Context) error {
	return nil
}

func (s *noopSink) Close() error {
	return nil
}

// noopDeliverer accepts every envelope without network I/O.
type noopDeliverer struct{}

// NewNoopDeliverer creates a Deliverer that reports every envelope as
// delivered without sending it. Pass it with sentinel.WithDeliverer for a dry
// run that still exercises filtering, enrichment and mirror sinks.
func NewNoopDeliverer() sentinel.Deliverer {
	return noopDeliverer{}
}

func (noopDeliverer) Send(ctx context.Context, env sentinel.Envelope) sentinel.Outcome {
	return sentinel.Outcome{Status: sentinel.StatusDelivered, EventID: env.EventID}
}

func (noopDeliverer) Ping(ctx context.Context) error {
	return nil
}
