// Package ingest applies normalized webhook events to the message store with
// idempotency and status-ordering guarantees.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/edgard/chatline/internal/database"
	"github.com/edgard/chatline/internal/metrics"
	"github.com/edgard/chatline/internal/webhook"
)

// Reason explains the outcome of applying a single event.
type Reason string

const (
	// ReasonCreated means a new message record was inserted.
	ReasonCreated Reason = "created"
	// ReasonDuplicate means a record with the same external ID already
	// exists; the event was accepted as a replay, not an error.
	ReasonDuplicate Reason = "duplicate"
	// ReasonStatusAdvanced means a status update moved the record forward.
	ReasonStatusAdvanced Reason = "statusAdvanced"
	// ReasonStaleOrDuplicate means a status update did not advance the
	// stored status and was dropped.
	ReasonStaleOrDuplicate Reason = "staleOrDuplicate"
	// ReasonUnknownMessage means a status update referenced a message that
	// was never ingested; it was dropped, not queued.
	ReasonUnknownMessage Reason = "unknownMessage"
)

// Result reports whether an event changed stored state and why.
type Result struct {
	Applied bool   `json:"applied"`
	Reason  Reason `json:"reason"`
}

// Engine applies canonical events to the store. Replaying any event sequence
// in any interleaving converges to the same final state: inserts are
// idempotent by external ID and status patches by monotonic comparison.
type Engine struct {
	store   database.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewEngine creates an ingestion engine over the given store. The metrics
// argument may be nil to disable instrumentation.
func NewEngine(store database.Store, logger *slog.Logger, m *metrics.Metrics) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{
		store:   store,
		logger:  logger.With("component", "ingest_engine"),
		metrics: m,
	}
}

// Ingest applies one normalized event. The returned error is reserved for
// store-level failures; dropped or replayed events are reported through
// Result, not as errors.
func (e *Engine) Ingest(ctx context.Context, event webhook.Event) (Result, error) {
	var (
		res Result
		err error
	)

	switch ev := event.(type) {
	case webhook.NewMessageEvent:
		res, err = e.ingestNewMessage(ctx, ev)
	case webhook.StatusUpdateEvent:
		res, err = e.ingestStatusUpdate(ctx, ev)
	default:
		return Result{}, fmt.Errorf("unsupported event type %T", event)
	}

	if err != nil {
		e.countFailure("store")
		return Result{}, err
	}

	e.countEvent(webhook.Type(event), res.Reason)
	return res, nil
}

// ProcessRaw normalizes a raw payload document and ingests the resulting
// event. Normalization failures are returned wrapped so callers can
// distinguish them (errors.Is against webhook.ErrMalformedPayload and
// webhook.ErrMissingContact) from store failures.
func (e *Engine) ProcessRaw(ctx context.Context, raw []byte) (Result, error) {
	event, err := webhook.Normalize(raw)
	if err != nil {
		switch {
		case errors.Is(err, webhook.ErrMissingContact):
			e.countFailure("missing_contact")
		default:
			e.countFailure("malformed_payload")
		}
		return Result{}, fmt.Errorf("failed to normalize payload: %w", err)
	}

	return e.Ingest(ctx, event)
}

func (e *Engine) ingestNewMessage(ctx context.Context, ev webhook.NewMessageEvent) (Result, error) {
	status := ev.Status
	if status == "" {
		status = database.StatusSent
	}

	msg := &database.Message{
		ExternalID:  ev.ExternalID,
		Sender:      ev.Sender,
		Timestamp:   ev.Timestamp,
		Body:        ev.Body,
		Kind:        ev.Kind,
		Status:      status,
		ContactID:   ev.ContactID,
		ContactName: ev.ContactName,
	}

	inserted, err := e.store.UpsertMessage(ctx, msg)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to upsert message",
			"external_id", ev.ExternalID, "contact_id", ev.ContactID, "error", err)
		return Result{}, fmt.Errorf("failed to ingest message %s: %w", ev.ExternalID, err)
	}

	if !inserted {
		e.logger.DebugContext(ctx, "Duplicate message accepted as replay", "external_id", ev.ExternalID)
		return Result{Applied: false, Reason: ReasonDuplicate}, nil
	}

	e.logger.InfoContext(ctx, "Message ingested",
		"external_id", ev.ExternalID, "contact_id", ev.ContactID, "status", status)
	return Result{Applied: true, Reason: ReasonCreated}, nil
}

func (e *Engine) ingestStatusUpdate(ctx context.Context, ev webhook.StatusUpdateEvent) (Result, error) {
	outcome, err := e.store.ApplyStatusIfGreater(ctx, ev.ExternalID, ev.NewStatus)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to apply status update",
			"external_id", ev.ExternalID, "new_status", ev.NewStatus, "error", err)
		return Result{}, fmt.Errorf("failed to apply status for message %s: %w", ev.ExternalID, err)
	}

	switch outcome {
	case database.StatusApplied:
		e.logger.InfoContext(ctx, "Message status advanced",
			"external_id", ev.ExternalID, "new_status", ev.NewStatus)
		return Result{Applied: true, Reason: ReasonStatusAdvanced}, nil

	case database.StatusUnknownMessage:
		e.logger.WarnContext(ctx, "Status update for unknown message dropped",
			"external_id", ev.ExternalID, "new_status", ev.NewStatus)
		return Result{Applied: false, Reason: ReasonUnknownMessage}, nil

	default:
		e.logger.DebugContext(ctx, "Stale or duplicate status update dropped",
			"external_id", ev.ExternalID, "new_status", ev.NewStatus)
		return Result{Applied: false, Reason: ReasonStaleOrDuplicate}, nil
	}
}

func (e *Engine) countEvent(eventType string, reason Reason) {
	if e.metrics == nil {
		return
	}
	e.metrics.IngestEvents.WithLabelValues(eventType, string(reason)).Inc()
}

func (e *Engine) countFailure(kind string) {
	if e.metrics == nil {
		return
	}
	e.metrics.IngestFailures.WithLabelValues(kind).Inc()
}
