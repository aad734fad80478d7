package conversation_test

import (
	"math/rand"
	"reflect"
	"testing"

	"github.com/edgard/chatline/internal/conversation"
	"github.com/edgard/chatline/internal/database"
)

func msg(externalID, contactID, contactName string, timestamp int64) database.Message {
	return database.Message{
		ExternalID:  externalID,
		Sender:      contactID,
		Timestamp:   timestamp,
		Body:        "body-" + externalID,
		Kind:        "text",
		Status:      database.StatusSent,
		ContactID:   contactID,
		ContactName: contactName,
	}
}

func TestAggregate_OrdersByTimestamp(t *testing.T) {
	t.Parallel()

	input := []database.Message{
		msg("m3", "c1", "Alice", 3),
		msg("m1", "c1", "Alice", 1),
		msg("m2", "c1", "Alice", 2),
	}

	result := conversation.Aggregate(input)

	conv, ok := result["c1"]
	if !ok {
		t.Fatal("conversation c1 missing")
	}
	want := []string{"m1", "m2", "m3"}
	for i, id := range want {
		if conv.Messages[i].ExternalID != id {
			t.Errorf("position %d: got %s, want %s", i, conv.Messages[i].ExternalID, id)
		}
	}
}

func TestAggregate_EqualTimestampsKeepIngestionOrder(t *testing.T) {
	t.Parallel()

	input := []database.Message{
		msg("first", "c1", "Alice", 5),
		msg("second", "c1", "Alice", 5),
		msg("third", "c1", "Alice", 5),
	}

	result := conversation.Aggregate(input)

	conv := result["c1"]
	want := []string{"first", "second", "third"}
	for i, id := range want {
		if conv.Messages[i].ExternalID != id {
			t.Errorf("position %d: got %s, want %s", i, conv.Messages[i].ExternalID, id)
		}
	}
}

func TestAggregate_GroupsByContact(t *testing.T) {
	t.Parallel()

	input := []database.Message{
		msg("m1", "c1", "Alice", 1),
		msg("m2", "c2", "Bob", 2),
		msg("m3", "c1", "Alice", 3),
	}

	result := conversation.Aggregate(input)

	if len(result) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(result))
	}
	if len(result["c1"].Messages) != 2 {
		t.Errorf("c1: expected 2 messages, got %d", len(result["c1"].Messages))
	}
	if len(result["c2"].Messages) != 1 {
		t.Errorf("c2: expected 1 message, got %d", len(result["c2"].Messages))
	}
	if result["c1"].ContactName != "Alice" {
		t.Errorf("c1 name = %q, want Alice", result["c1"].ContactName)
	}
	if result["c2"].ContactName != "Bob" {
		t.Errorf("c2 name = %q, want Bob", result["c2"].ContactName)
	}
}

func TestAggregate_ContactRenameLastWriteWins(t *testing.T) {
	t.Parallel()

	input := []database.Message{
		msg("m1", "c1", "Alice", 1),
		msg("m2", "c1", "Alicia", 2),
		msg("m3", "c1", "", 3), // empty name never overrides
	}

	result := conversation.Aggregate(input)

	if result["c1"].ContactName != "Alicia" {
		t.Errorf("name = %q, want Alicia", result["c1"].ContactName)
	}
}

func TestAggregate_Deterministic(t *testing.T) {
	t.Parallel()

	input := []database.Message{
		msg("m1", "c1", "Alice", 10),
		msg("m2", "c2", "Bob", 5),
		msg("m3", "c1", "Alice", 7),
		msg("m4", "c3", "Carol", 7),
		msg("m5", "c2", "Bob", 12),
	}

	first := conversation.Aggregate(input)
	second := conversation.Aggregate(input)

	if !reflect.DeepEqual(first, second) {
		t.Fatal("consecutive aggregations differ")
	}
}

func TestAggregate_ShuffleInvariantOnDistinctTimestamps(t *testing.T) {
	t.Parallel()

	input := []database.Message{
		msg("m1", "c1", "Alice", 1),
		msg("m2", "c1", "Alice", 2),
		msg("m3", "c2", "Bob", 3),
		msg("m4", "c2", "Bob", 4),
		msg("m5", "c1", "Alice", 5),
	}

	want := conversation.Aggregate(input)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 10; i++ {
		shuffled := make([]database.Message, len(input))
		copy(shuffled, input)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})

		got := conversation.Aggregate(shuffled)
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("shuffle %d: aggregation changed with input order", i)
		}
	}
}

func TestAggregate_Empty(t *testing.T) {
	t.Parallel()

	result := conversation.Aggregate(nil)
	if len(result) != 0 {
		t.Fatalf("expected empty map, got %d entries", len(result))
	}
}

func TestAggregate_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	input := []database.Message{
		msg("m2", "c1", "Alice", 2),
		msg("m1", "c1", "Alice", 1),
	}
	snapshot := make([]database.Message, len(input))
	copy(snapshot, input)

	conversation.Aggregate(input)

	if !reflect.DeepEqual(input, snapshot) {
		t.Fatal("input slice was mutated")
	}
}
