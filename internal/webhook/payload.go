// Package webhook parses raw messaging-platform webhook payloads into
// canonical events for the ingestion engine.
package webhook

// Payload is the raw webhook document shape. A single document carries either
// a batch of new messages (with their contact profiles) or a batch of
// delivery-status updates, nested under metaData.entry[].changes[].value.
type Payload struct {
	MetaData struct {
		Entry []Entry `json:"entry"`
	} `json:"metaData"`
}

// Entry is one webhook entry; each holds a list of changes.
type Entry struct {
	Changes []Change `json:"changes"`
}

// Change wraps the change value carrying the actual event data.
type Change struct {
	Value Value `json:"value"`
}

// Value carries either messages+contacts or statuses.
type Value struct {
	Messages []RawMessage `json:"messages"`
	Contacts []RawContact `json:"contacts"`
	Statuses []RawStatus  `json:"statuses"`
}

// RawMessage is a platform message as delivered on the wire. The timestamp is
// a decimal string of epoch seconds.
type RawMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Text      struct {
		Body string `json:"body"`
	} `json:"text"`
	Type string `json:"type"`
}

// RawContact is the contact profile accompanying a new-message payload.
type RawContact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

// RawStatus is a delivery-status update for a previously delivered message.
type RawStatus struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}
