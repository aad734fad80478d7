package database

import (
	"time"
)

// Status is the delivery status of a message as reported by the origin
// platform. It only ever advances along sent -> delivered -> read.
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
)

// Rank returns the ordinal position of a status in the delivery progression,
// or -1 for an unknown value.
func (s Status) Rank() int {
	switch s {
	case StatusSent:
		return 0
	case StatusDelivered:
		return 1
	case StatusRead:
		return 2
	default:
		return -1
	}
}

// Valid reports whether s is one of the known status values.
func (s Status) Valid() bool {
	return s.Rank() >= 0
}

// Message represents a single message exchanged with a contact.
// ExternalID is the origin-platform identifier and is the deduplication key;
// Timestamp is the origin-assigned send time in epoch seconds, not the time
// of ingestion.
type Message struct {
	ID        uint      `db:"id"         json:"-"`
	CreatedAt time.Time `db:"created_at" json:"-"`
	UpdatedAt time.Time `db:"updated_at" json:"-"`

	ExternalID  string `db:"external_id"  json:"id"`
	Sender      string `db:"sender"       json:"from"`
	Timestamp   int64  `db:"timestamp"    json:"timestamp"`
	Body        string `db:"body"         json:"body"`
	Kind        string `db:"kind"         json:"type"`
	Status      Status `db:"status"       json:"status"`
	ContactID   string `db:"contact_id"   json:"contactId"`
	ContactName string `db:"contact_name" json:"contactName"`
}
