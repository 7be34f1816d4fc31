package amqp

import (
	"testing"
	"time"

	"statements/internal/core"
)

func TestMessageValidate(t *testing.T) {
	tx := core.Transaction{
		ID:        "t-1",
		AccountID: "acc-1",
		Type:      core.Exchange,
		Amount:    core.Money{Cents: 100},
		Date:      time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC),
	}

	good := []*TransactionEventMessage{
		NewCreatedMessage(tx),
		NewUpdatedMessage(tx),
		NewDeletedMessage("t-1"),
	}
	for _, m := range good {
		if err := m.Validate(); err != nil {
			t.Fatalf("%s: expected valid, got %v", m.Kind, err)
		}
	}

	bads := []*TransactionEventMessage{
		{Kind: KindCreated},                                   // missing record
		{Kind: KindDeleted},                                   // missing id
		{Kind: "archived", ID: "t-1"},                         // unknown kind
		{Kind: KindUpdated, Transaction: &core.Transaction{}}, // record without id
	}
	for i, m := range bads {
		if err := m.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestMessageFromJSONRejectsGarbage(t *testing.T) {
	if _, err := MessageFromJSON([]byte(`{`)); err == nil {
		t.Fatalf("expected unmarshal error")
	}
	if _, err := MessageFromJSON([]byte(`{"kind":"created"}`)); err == nil {
		t.Fatalf("expected validation error")
	}
}
