package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/edgard/chatline/internal/database"
)

var (
	// ErrMalformedPayload indicates a structurally invalid webhook payload.
	ErrMalformedPayload = errors.New("malformed webhook payload")
	// ErrMissingContact indicates a new-message payload without the
	// accompanying contact profile.
	ErrMissingContact = errors.New("new-message payload missing contact profile")
)

// Event is a canonical webhook event: either a NewMessageEvent or a
// StatusUpdateEvent.
type Event interface {
	eventType() string
}

// NewMessageEvent represents a message newly received from the platform,
// together with the contact profile it arrived with.
type NewMessageEvent struct {
	ExternalID  string
	Sender      string
	Timestamp   int64
	Body        string
	Kind        string
	Status      database.Status // empty means the engine defaults to sent
	ContactID   string
	ContactName string
}

func (NewMessageEvent) eventType() string { return "message" }

// StatusUpdateEvent represents a delivery-status change for an existing message.
type StatusUpdateEvent struct {
	ExternalID string
	NewStatus  database.Status
}

func (StatusUpdateEvent) eventType() string { return "status" }

// Type returns a short tag describing the event, for logs and metrics.
func Type(e Event) string {
	if e == nil {
		return "unknown"
	}
	return e.eventType()
}

// Normalize parses a raw webhook document into a canonical event. It performs
// no side effects: the same bytes always produce the same event or error.
//
// Event kind is detected by presence of the messages collection versus the
// statuses collection in the nested change value.
func Normalize(raw []byte) (Event, error) {
	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	if len(payload.MetaData.Entry) == 0 || len(payload.MetaData.Entry[0].Changes) == 0 {
		return nil, fmt.Errorf("%w: missing entry or changes", ErrMalformedPayload)
	}
	value := payload.MetaData.Entry[0].Changes[0].Value

	switch {
	case len(value.Messages) > 0:
		return normalizeMessage(value)
	case len(value.Statuses) > 0:
		return normalizeStatus(value)
	default:
		return nil, fmt.Errorf("%w: neither messages nor statuses present", ErrMalformedPayload)
	}
}

func normalizeMessage(value Value) (Event, error) {
	msg := value.Messages[0]
	if msg.ID == "" {
		return nil, fmt.Errorf("%w: message id is empty", ErrMalformedPayload)
	}

	ts, err := strconv.ParseInt(msg.Timestamp, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid timestamp %q", ErrMalformedPayload, msg.Timestamp)
	}

	if len(value.Contacts) == 0 {
		return nil, fmt.Errorf("%w: message %s", ErrMissingContact, msg.ID)
	}
	contact := value.Contacts[0]
	if contact.WaID == "" {
		return nil, fmt.Errorf("%w: message %s has contact without wa_id", ErrMissingContact, msg.ID)
	}

	kind := msg.Type
	if kind == "" {
		kind = "text"
	}

	return NewMessageEvent{
		ExternalID:  msg.ID,
		Sender:      msg.From,
		Timestamp:   ts,
		Body:        msg.Text.Body,
		Kind:        kind,
		ContactID:   contact.WaID,
		ContactName: contact.Profile.Name,
	}, nil
}

func normalizeStatus(value Value) (Event, error) {
	st := value.Statuses[0]
	if st.ID == "" {
		return nil, fmt.Errorf("%w: status update without message id", ErrMalformedPayload)
	}

	status := database.Status(st.Status)
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status value %q", ErrMalformedPayload, st.Status)
	}

	return StatusUpdateEvent{
		ExternalID: st.ID,
		NewStatus:  status,
	}, nil
}
