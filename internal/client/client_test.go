package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/edgard/chatline/internal/client"
	"github.com/edgard/chatline/internal/database"
)

func seedMessages() []database.Message {
	return []database.Message{
		{ExternalID: "m1", Sender: "c1", Timestamp: 100, Body: "hi", Kind: "text", Status: database.StatusRead, ContactID: "c1", ContactName: "Alice"},
		{ExternalID: "m2", Sender: "me", Timestamp: 110, Body: "hello", Kind: "text", Status: database.StatusDelivered, ContactID: "c1", ContactName: "Alice"},
	}
}

func TestSubmit_SuccessReplacesInPlace(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/messages" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}

		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}

		stored := database.Message{
			ExternalID:  "wamid.server-assigned",
			Sender:      req["sender"],
			Timestamp:   999,
			Body:        req["body"],
			Kind:        "text",
			Status:      database.StatusSent,
			ContactID:   req["contactId"],
			ContactName: req["contactName"],
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(stored)
	}))
	defer srv.Close()

	c := client.NewClient(srv.URL, srv.Client(), nil)
	thread := client.NewThread("c1", "Alice", seedMessages())

	sub, err := c.Submit(context.Background(), thread, "me", "ok")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if sub.State != client.StateConfirmed {
		t.Fatalf("state = %v, want confirmed", sub.State)
	}

	msgs := thread.Messages()
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}

	// Authoritative record sits where the provisional one was appended: last.
	last := msgs[2]
	if last.ExternalID != "wamid.server-assigned" {
		t.Errorf("last message id = %q, want server-assigned", last.ExternalID)
	}
	if last.Body != "ok" {
		t.Errorf("last message body = %q, want ok", last.Body)
	}
	if strings.HasPrefix(last.ExternalID, "temp_") {
		t.Error("provisional message was not replaced")
	}

	// No duplicate: temp id must be gone.
	for _, m := range msgs {
		if strings.HasPrefix(m.ExternalID, "temp_") {
			t.Errorf("provisional message %s still present", m.ExternalID)
		}
	}
}

func TestSubmit_ProvisionalVisibleBeforeResponse(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	observed := make(chan int, 1)

	thread := client.NewThread("c1", "Alice", nil)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The provisional append happens before the request goes out.
		observed <- len(thread.Messages())
		<-release

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(database.Message{ExternalID: "wamid.x", Body: "ok", Status: database.StatusSent, ContactID: "c1"})
	}))
	defer srv.Close()

	c := client.NewClient(srv.URL, srv.Client(), nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Submit(context.Background(), thread, "me", "ok")
	}()

	if n := <-observed; n != 1 {
		t.Errorf("thread had %d messages during round trip, want 1 provisional", n)
	}
	close(release)
	<-done
}

func TestSubmit_FailureRollsBackExactly(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := client.NewClient(srv.URL, srv.Client(), nil)

	before := seedMessages()
	thread := client.NewThread("c1", "Alice", before)

	sub, err := c.Submit(context.Background(), thread, "me", "ok")
	if err == nil {
		t.Fatal("Submit should fail")
	}
	if sub.State != client.StateRejected {
		t.Fatalf("state = %v, want rejected", sub.State)
	}

	// The thread view returns to its exact pre-submission state.
	if !reflect.DeepEqual(thread.Messages(), before) {
		t.Fatalf("thread not restored: %+v", thread.Messages())
	}
}

func TestSubmit_ResubmissionUsesFreshTempID(t *testing.T) {
	t.Parallel()

	var fail = true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			fail = false
			http.Error(w, `{"error":"boom"}`, http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(database.Message{ExternalID: "wamid.retry", Body: "ok", Status: database.StatusSent, ContactID: "c1"})
	}))
	defer srv.Close()

	c := client.NewClient(srv.URL, srv.Client(), nil)
	thread := client.NewThread("c1", "Alice", nil)

	first, err := c.Submit(context.Background(), thread, "me", "ok")
	if err == nil {
		t.Fatal("first submission should fail")
	}

	second, err := c.Submit(context.Background(), thread, "me", "ok")
	if err != nil {
		t.Fatalf("second submission failed: %v", err)
	}

	if first.TempID == second.TempID {
		t.Error("resubmission reused the temporary id")
	}
	if second.State != client.StateConfirmed {
		t.Fatalf("state = %v, want confirmed", second.State)
	}
	if msgs := thread.Messages(); len(msgs) != 1 || msgs[0].ExternalID != "wamid.retry" {
		t.Fatalf("thread = %+v, want single confirmed message", msgs)
	}
}

func TestThread_ReplaceAndRemoveMissing(t *testing.T) {
	t.Parallel()

	thread := client.NewThread("c1", "Alice", seedMessages())

	if thread.Replace("nope", database.Message{}) {
		t.Error("Replace of missing id should return false")
	}
	if thread.Remove("nope") {
		t.Error("Remove of missing id should return false")
	}
	if len(thread.Messages()) != 2 {
		t.Error("view should be unchanged")
	}
}
