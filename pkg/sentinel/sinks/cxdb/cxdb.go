// Package cxdb provides a mirror sink that persists reports to cxdb as
// SystemMessage turns.
package cxdb

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"

	cxdbclient "github.com/strongdm/ai-cxdb/clients/go"
	cxdtypes "github.com/strongdm/ai-cxdb/clients/go/types"

	"github.com/strongdm/sentinel-catcher/pkg/sentinel"
)

// CXDBClient is the minimal interface for cxdb client operations.
// The real *cxdb.Client satisfies this interface.
type CXDBClient interface {
	CreateContext(ctx context.Context, baseTurnID uint64) (*cxdbclient.ContextHead, error)
	AppendTurn(ctx context.Context, req *cxdbclient.AppendRequest) (*cxdbclient.AppendResult, error)
}

// CXDBSinkOption configures the CXDB sink.
type CXDBSinkOption func(*cxdbSinkConfig)

type cxdbSinkConfig struct {
	labels    []string
	clientTag string
}

// WithLabels sets the labels of the sink's service context.
func WithLabels(labels []string) CXDBSinkOption {
	return func(c *cxdbSinkConfig) {
		c.labels = labels
	}
}

// WithClientTag sets the client tag of the sink's service context.
func WithClientTag(tag string) CXDBSinkOption {
	return func(c *cxdbSinkConfig) {
		c.clientTag = tag
	}
}

// cxdbSink writes reports to cxdb as SystemMessage items.
//
// A report whose context carries sentinel.FieldCXDBContextID is appended to
// that conversation. Every other report goes to one service context that the
// sink creates on first use.
type cxdbSink struct {
	client    CXDBClient
	labels    []string
	clientTag string

	mu        sync.Mutex
	serviceID uint64
	hasID     bool
}

// NewCXDBSink creates a sink that writes to cxdb.
func NewCXDBSink(client CXDBClient, opts ...CXDBSinkOption) sentinel.Sink {
	cfg := &cxdbSinkConfig{
		labels:    []string{"sentinel", "error"},
		clientTag: "sentinel-catcher",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &cxdbSink{
		client:    client,
		labels:    cfg.labels,
		clientTag: cfg.clientTag,
	}
}

// Write persists an envelope to cxdb.
func (s *cxdbSink) Write(ctx context.Context, env sentinel.Envelope) error {
	contextID, linked := linkedContextID(env.Context)
	isFirst := false
	if !linked {
		var err error
		contextID, isFirst, err = s.serviceContext(ctx, env.ServiceName)
		if err != nil {
			return err
		}
	}

	item := s.buildConversationItem(env, isFirst, env.ServiceName)

	payload, err := cxdbclient.EncodeMsgpack(item)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	req := &cxdbclient.AppendRequest{
		ContextID:      contextID,
		ParentTurnID:   0,
		TypeID:         cxdtypes.TypeIDConversationItem,
		TypeVersion:    cxdtypes.TypeVersionConversationItem,
		Payload:        payload,
		IdempotencyKey: env.EventID,
	}
	if _, err := s.client.AppendTurn(ctx, req); err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

// serviceContext returns the sink's own context, creating it on first use.
// created reports whether this call created it.
func (s *cxdbSink) serviceContext(ctx context.Context, service string) (id uint64, created bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasID {
		return s.serviceID, false, nil
	}
	head, err := s.client.CreateContext(ctx, 0)
	if err != nil {
		return 0, false, fmt.Errorf("create service context: %w", err)
	}
	s.serviceID, s.hasID = head.ContextID, true
	return s.serviceID, true, nil
}

// linkedContextID reads the conversation link from report context. Numbers
// may arrive as float64 after JSON normalization.
func linkedContextID(ctx map[string]any) (uint64, bool) {
	switch v := ctx[sentinel.FieldCXDBContextID].(type) {
	case uint64:
		return v, true
	case int:
		return uint64(v), v >= 0
	case int64:
		return uint64(v), v >= 0
	case float64:
		if v < 0 || v != math.Trunc(v) {
			return 0, false
		}
		return uint64(v), true
	case json.Number:
		n, err := v.Int64()
		return uint64(n), err == nil && n >= 0
	}
	return 0, false
}

// buildConversationItem creates a canonical ConversationItem from an envelope.
func (s *cxdbSink) buildConversationItem(env sentinel.Envelope, isFirst bool, service string) *cxdtypes.ConversationItem {
	// Title: "error_type: truncated_message"
	title := env.Error.Type
	if env.Error.Message != "" {
		const maxMsgLen = 80
		msg := env.Error.Message
		if len(msg) > maxMsgLen {
			msg = msg[:maxMsgLen] + "..."
		}
		title = env.Error.Type + ": " + msg
	}
	if len(title) > 100 {
		title = title[:97] + "..."
	}

	item := &cxdtypes.ConversationItem{
		ItemType:  cxdtypes.ItemTypeSystem,
		Status:    cxdtypes.ItemStatusComplete,
		Timestamp: env.Timestamp.UnixMilli(),
		ID:        env.EventID,
		System: &cxdtypes.SystemMessage{
			Kind:    cxdtypes.SystemKindError,
			Title:   title,
			Content: buildErrorDetails(env),
		},
	}

	// cxdb expects context metadata on the first turn.
	if isFirst {
		labels := append([]string(nil), s.labels...)
		if service != "" {
			labels = append(labels, service)
		}
		item.ContextMetadata = &cxdtypes.ContextMetadata{
			Labels:    labels,
			ClientTag: s.clientTag,
		}
	}
	return item
}

// buildErrorDetails encodes the full envelope as JSON for SystemMessage.Content.
func buildErrorDetails(env sentinel.Envelope) string {
	b, err := json.Marshal(env)
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to encode details: %s"}`, err)
	}
	return string(b)
}

// Flush is a no-op for the cxdb sink (writes are synchronous).
func (s *cxdbSink) Flush(ctx context.Context) error {
	return nil
}

// Close is a no-op for the cxdb sink.
func (s *cxdbSink) Close() error {
	return nil
}
