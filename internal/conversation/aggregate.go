// Package conversation reconstructs per-contact conversation threads from the
// stored message set.
package conversation

import (
	"sort"

	"github.com/edgard/chatline/internal/database"
)

// Conversation is the ordered set of messages exchanged with one contact.
// It is derived on every call and never stored.
type Conversation struct {
	ContactID   string             `json:"contactId"`
	ContactName string             `json:"contactName"`
	Messages    []database.Message `json:"messages"`
}

// Aggregate groups messages into conversation threads keyed by contact ID.
//
// Messages are stable-sorted by origin timestamp ascending before grouping;
// for equal timestamps the input (ingestion) order is preserved. The contact
// name of a thread is the one carried by the most recent message with a
// non-empty name, so a contact renaming themselves takes effect without a
// separate profile store.
//
// The function is pure: identical input sets always yield identical output,
// and no state is held between calls. The full sort on every call is an
// accepted cost; the store is the source of truth and there is no
// incremental-maintenance obligation.
func Aggregate(messages []database.Message) map[string]Conversation {
	ordered := make([]database.Message, len(messages))
	copy(ordered, messages)

	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp < ordered[j].Timestamp
	})

	conversations := make(map[string]Conversation)
	for _, msg := range ordered {
		conv, ok := conversations[msg.ContactID]
		if !ok {
			conv = Conversation{ContactID: msg.ContactID}
		}

		if msg.ContactName != "" {
			conv.ContactName = msg.ContactName
		}
		conv.Messages = append(conv.Messages, msg)
		conversations[msg.ContactID] = conv
	}

	return conversations
}
