package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// StatusApplyResult is the outcome of a conditional status patch.
type StatusApplyResult int

const (
	// StatusApplied means the new status advanced the stored one.
	StatusApplied StatusApplyResult = iota
	// StatusSkipped means the record exists but the new status does not
	// advance the stored one (stale or duplicate delivery).
	StatusSkipped
	// StatusUnknownMessage means no record exists for the external ID.
	StatusUnknownMessage
)

// Store defines the interface for message persistence.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// UpsertMessage inserts a message keyed by its external ID. If a record
	// with that external ID already exists the call is a no-op and inserted
	// is false. The insert-or-skip decision is a single atomic statement.
	UpsertMessage(ctx context.Context, message *Message) (inserted bool, err error)

	// GetMessageByExternalID retrieves a message by its external ID.
	// Returns nil, nil if not found.
	GetMessageByExternalID(ctx context.Context, externalID string) (*Message, error)

	// ApplyStatusIfGreater patches the status of the message identified by
	// externalID, but only when newStatus ranks strictly above the stored
	// status. The compare-and-set is a single atomic statement.
	ApplyStatusIfGreater(ctx context.Context, externalID string, newStatus Status) (StatusApplyResult, error)

	// ListAllMessages retrieves every stored message in ingestion order.
	ListAllMessages(ctx context.Context) ([]Message, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// UpsertMessage inserts a new message record unless one with the same
// external ID already exists. ON CONFLICT DO NOTHING makes the duplicate
// case a defined no-op rather than a constraint error, so replayed webhook
// deliveries converge without special handling.
func (s *sqlxStore) UpsertMessage(ctx context.Context, message *Message) (bool, error) {
	if message == nil {
		return false, fmt.Errorf("cannot save nil message")
	}
	if message.ExternalID == "" {
		return false, fmt.Errorf("message must have a non-empty external_id")
	}
	if message.ContactID == "" {
		return false, fmt.Errorf("message must have a non-empty contact_id")
	}
	if !message.Status.Valid() {
		return false, fmt.Errorf("message has invalid status %q", message.Status)
	}

	now := time.Now().UTC()
	message.CreatedAt = now
	message.UpdatedAt = now

	query := `
        INSERT INTO messages (external_id, sender, timestamp, body, kind, status, contact_id, contact_name, created_at, updated_at)
        VALUES (:external_id, :sender, :timestamp, :body, :kind, :status, :contact_id, :contact_name, :created_at, :updated_at)
        ON CONFLICT(external_id) DO NOTHING;
    `

	result, err := s.db.NamedExecContext(ctx, query, message)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error upserting message", "external_id", message.ExternalID, "error", err)
		return false, fmt.Errorf("failed to upsert message %s: %w", message.ExternalID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		s.logger.WarnContext(ctx, "Could not get affected row count after upsert",
			"external_id", message.ExternalID, "error", err)
		return false, fmt.Errorf("failed to determine upsert outcome for %s: %w", message.ExternalID, err)
	}

	if affected == 0 {
		s.logger.DebugContext(ctx, "Message already exists, upsert is a no-op", "external_id", message.ExternalID)
		return false, nil
	}

	if id, err := result.LastInsertId(); err == nil {
		//nolint:gosec // integer overflow conversion is acceptable here
		message.ID = uint(id)
	} else {
		s.logger.WarnContext(ctx, "Could not retrieve last insert ID after saving message",
			"external_id", message.ExternalID, "error", err)
	}

	s.logger.DebugContext(ctx, "Message saved successfully",
		"external_id", message.ExternalID, "contact_id", message.ContactID, "message_id", message.ID)
	return true, nil
}

// GetMessageByExternalID retrieves a message by its external ID. Returns nil, nil if not found.
func (s *sqlxStore) GetMessageByExternalID(ctx context.Context, externalID string) (*Message, error) {
	if externalID == "" {
		return nil, fmt.Errorf("external_id cannot be empty")
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var message Message
	query := `SELECT id, created_at, updated_at, external_id, sender, timestamp, body, kind, status, contact_id, contact_name
	          FROM messages WHERE external_id = ?`

	err := s.db.GetContext(ctx, &message, query, externalID)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.logger.DebugContext(ctx, "No message found", "external_id", externalID)
		return nil, nil

	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching message",
			"external_id", externalID, "error", err)
		return nil, err

	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting message by external ID", "external_id", externalID, "error", err)
		return nil, fmt.Errorf("failed to get message %s: %w", externalID, err)
	}

	return &message, nil
}

// ApplyStatusIfGreater advances the status of a message when the new status
// ranks strictly above the stored one. The rank comparison happens inside a
// single UPDATE so two racing status updates for the same external ID cannot
// interleave into a non-monotonic result. A zero-row update is disambiguated
// afterwards into "unknown message" or "stale/duplicate".
func (s *sqlxStore) ApplyStatusIfGreater(ctx context.Context, externalID string, newStatus Status) (StatusApplyResult, error) {
	if externalID == "" {
		return StatusSkipped, fmt.Errorf("external_id cannot be empty")
	}
	if !newStatus.Valid() {
		return StatusSkipped, fmt.Errorf("invalid status %q", newStatus)
	}

	query := `
        UPDATE messages SET status = ?, updated_at = ?
        WHERE external_id = ?
          AND (CASE status WHEN 'sent' THEN 0 WHEN 'delivered' THEN 1 WHEN 'read' THEN 2 ELSE -1 END)
            < (CASE ?      WHEN 'sent' THEN 0 WHEN 'delivered' THEN 1 WHEN 'read' THEN 2 ELSE -1 END);
    `

	result, err := s.db.ExecContext(ctx, query, newStatus, time.Now().UTC(), externalID, newStatus)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error applying status update",
			"external_id", externalID, "new_status", newStatus, "error", err)
		return StatusSkipped, fmt.Errorf("failed to apply status %s to message %s: %w", newStatus, externalID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		s.logger.WarnContext(ctx, "Could not get affected row count after status update",
			"external_id", externalID, "error", err)
		return StatusSkipped, fmt.Errorf("failed to determine status update outcome for %s: %w", externalID, err)
	}

	if affected > 0 {
		s.logger.DebugContext(ctx, "Message status advanced",
			"external_id", externalID, "new_status", newStatus)
		return StatusApplied, nil
	}

	// Nothing updated: either the message is unknown or the transition would
	// not advance the status. Distinguish for reporting only; the correctness
	// decision was already made atomically above.
	var exists bool
	err = s.db.GetContext(ctx, &exists, `SELECT 1 FROM messages WHERE external_id = ? LIMIT 1`, externalID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.logger.DebugContext(ctx, "Status update for unknown message dropped",
			"external_id", externalID, "new_status", newStatus)
		return StatusUnknownMessage, nil

	case err != nil:
		s.logger.ErrorContext(ctx, "Error checking message existence after skipped status update",
			"external_id", externalID, "error", err)
		return StatusSkipped, fmt.Errorf("failed to check existence of message %s: %w", externalID, err)
	}

	s.logger.DebugContext(ctx, "Non-advancing status update skipped",
		"external_id", externalID, "new_status", newStatus)
	return StatusSkipped, nil
}

// ListAllMessages retrieves every stored message ordered by insertion ID, so
// callers observe messages in ingestion order.
func (s *sqlxStore) ListAllMessages(ctx context.Context) ([]Message, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var messages []Message
	query := `SELECT id, created_at, updated_at, external_id, sender, timestamp, body, kind, status, contact_id, contact_name
	          FROM messages
	          ORDER BY id ASC`

	err := s.db.SelectContext(ctx, &messages, query)

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "Context timeout or cancellation while listing messages", "error", err)
		return nil, err

	case err != nil:
		s.logger.ErrorContext(ctx, "Error listing messages", "error", err)
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	s.logger.DebugContext(ctx, "Listed messages successfully", "count", len(messages))
	return messages, nil
}

// RunSQLMaintenance executes a VACUUM command on the SQLite database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	// VACUUM must run outside a transaction in SQLite.
	_, err := s.db.ExecContext(ctx, "VACUUM;")

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)

	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	return nil
}
