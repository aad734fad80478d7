// Package client implements the client side of the reply flow: an API client
// plus a thread view with optimistic appends that are reconciled against the
// server response.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/edgard/chatline/internal/database"
)

// SubmissionState tracks an outgoing message through its lifecycle. A
// submission starts Provisional and terminates as Confirmed or Rejected.
type SubmissionState int

const (
	StateProvisional SubmissionState = iota
	StateConfirmed
	StateRejected
)

func (s SubmissionState) String() string {
	switch s {
	case StateProvisional:
		return "provisional"
	case StateConfirmed:
		return "confirmed"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Submission is the record of one optimistic send. TempID is the locally
// generated placeholder ID; Message holds the provisional record until the
// server confirms, after which it holds the authoritative one.
type Submission struct {
	TempID  string
	State   SubmissionState
	Message database.Message
}

// Client talks to the ChatLine HTTP API.
type Client struct {
	baseURL string
	httpc   *http.Client
	logger  *slog.Logger
}

// NewClient creates an API client for the given base URL. A nil httpc uses a
// default client with a 30 second timeout.
func NewClient(baseURL string, httpc *http.Client, logger *slog.Logger) *Client {
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		baseURL: baseURL,
		httpc:   httpc,
		logger:  logger.With("component", "client"),
	}
}

// SendMessage posts an outgoing message and returns the stored record with
// its server-assigned external ID and timestamp.
func (c *Client) SendMessage(ctx context.Context, sender, body, contactID, contactName string) (*database.Message, error) {
	payload, err := json.Marshal(map[string]string{
		"sender":      sender,
		"body":        body,
		"contactId":   contactID,
		"contactName": contactName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode message request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("message submission rejected with status %d", resp.StatusCode)
	}

	var stored database.Message
	if err := json.NewDecoder(resp.Body).Decode(&stored); err != nil {
		return nil, fmt.Errorf("failed to decode stored message: %w", err)
	}
	return &stored, nil
}

// Submit appends a provisional message to the thread view, submits it, and
// reconciles: on success the provisional record is replaced in place by the
// authoritative one; on failure it is removed entirely and the error is
// returned for display. A resubmission is a new operation with a fresh
// temporary ID, so the server can never mistake a retry for a duplicate of a
// message that was never stored.
func (c *Client) Submit(ctx context.Context, thread *Thread, sender, body string) (*Submission, error) {
	tempID := "temp_" + uuid.NewString()

	provisional := database.Message{
		ExternalID:  tempID,
		Sender:      sender,
		Timestamp:   time.Now().Unix(),
		Body:        body,
		Kind:        "text",
		Status:      database.StatusSent,
		ContactID:   thread.ContactID(),
		ContactName: thread.ContactName(),
	}

	sub := &Submission{TempID: tempID, State: StateProvisional, Message: provisional}

	// The provisional append happens before the network round trip so the
	// view updates immediately.
	thread.Append(provisional)
	c.logger.DebugContext(ctx, "Provisional message appended", "temp_id", tempID)

	stored, err := c.SendMessage(ctx, sender, body, provisional.ContactID, provisional.ContactName)
	if err != nil {
		thread.Remove(tempID)
		sub.State = StateRejected
		c.logger.WarnContext(ctx, "Message submission failed, provisional removed",
			"temp_id", tempID, "error", err)
		return sub, err
	}

	thread.Replace(tempID, *stored)
	sub.State = StateConfirmed
	sub.Message = *stored
	c.logger.DebugContext(ctx, "Provisional message confirmed",
		"temp_id", tempID, "external_id", stored.ExternalID)
	return sub, nil
}
