package client

import (
	"sync"

	"github.com/edgard/chatline/internal/database"
)

// Thread is the client-side view of one conversation. Concurrent submissions
// share the view, so access is guarded; each operates on its own temporary ID
// and may resolve out of order.
type Thread struct {
	mu          sync.Mutex
	contactID   string
	contactName string
	messages    []database.Message
}

// NewThread creates a thread view for a contact, seeded with the messages
// already known for the conversation.
func NewThread(contactID, contactName string, messages []database.Message) *Thread {
	msgs := make([]database.Message, len(messages))
	copy(msgs, messages)
	return &Thread{
		contactID:   contactID,
		contactName: contactName,
		messages:    msgs,
	}
}

func (t *Thread) ContactID() string {
	return t.contactID
}

func (t *Thread) ContactName() string {
	return t.contactName
}

// Messages returns a snapshot of the thread's messages in view order.
func (t *Thread) Messages() []database.Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]database.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Append adds a message to the end of the view.
func (t *Thread) Append(msg database.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.messages = append(t.messages, msg)
}

// Replace swaps the message with the given external ID for the replacement,
// keeping its position. Returns false if no such message is in the view.
func (t *Thread) Replace(externalID string, replacement database.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, msg := range t.messages {
		if msg.ExternalID == externalID {
			t.messages[i] = replacement
			return true
		}
	}
	return false
}

// Remove deletes the message with the given external ID from the view.
// Returns false if no such message is in the view.
func (t *Thread) Remove(externalID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, msg := range t.messages {
		if msg.ExternalID == externalID {
			t.messages = append(t.messages[:i], t.messages[i+1:]...)
			return true
		}
	}
	return false
}
