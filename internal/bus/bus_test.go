package bus

import (
	"testing"
	"time"

	"statements/internal/core"
)

func tx(id string) core.Transaction {
	return core.Transaction{
		ID:        id,
		AccountID: "acc-1",
		Type:      core.Exchange,
		Amount:    core.Money{Cents: 100},
		Date:      time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC),
	}
}

func TestDeliveryOrderMatchesPublishOrder(t *testing.T) {
	b := New()
	var got []string
	b.SubscribeCreated(func(tx core.Transaction) { got = append(got, tx.ID) })

	b.PublishCreated(tx("1"))
	b.PublishCreated(tx("2"))
	b.PublishCreated(tx("3"))

	want := []string{"1", "2", "3"}
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: got id %q, want %q", i, got[i], want[i])
		}
	}
}

func TestNoReplayForLateSubscriber(t *testing.T) {
	b := New()
	b.PublishCreated(tx("1"))

	calls := 0
	b.SubscribeCreated(func(core.Transaction) { calls++ })
	if calls != 0 {
		t.Fatalf("late subscriber received %d replayed events", calls)
	}

	b.PublishCreated(tx("2"))
	if calls != 1 {
		t.Fatalf("expected 1 event after subscribing, got %d", calls)
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	b := New()
	calls := 0
	sub := b.SubscribeDeleted(func(string) { calls++ })

	b.PublishDeleted("1")
	sub.Cancel()
	sub.Cancel() // idempotent
	b.PublishDeleted("2")

	if calls != 1 {
		t.Fatalf("expected 1 delivery before cancel, got %d", calls)
	}
}

func TestPanickingHandlerDoesNotBlockOthers(t *testing.T) {
	b := New()
	var received []string
	b.SubscribeUpdated(func(core.Transaction) { panic("boom") })
	b.SubscribeUpdated(func(tx core.Transaction) { received = append(received, tx.ID) })

	b.PublishUpdated(tx("1"))

	if len(received) != 1 || received[0] != "1" {
		t.Fatalf("second subscriber not reached: %v", received)
	}
}

func TestAllSubscribersInvokedBeforePublishReturns(t *testing.T) {
	b := New()
	a, c := false, false
	b.SubscribeCreated(func(core.Transaction) { a = true })
	b.SubscribeCreated(func(core.Transaction) { c = true })

	b.PublishCreated(tx("1"))
	if !a || !c {
		t.Fatalf("delivery not synchronous: a=%v c=%v", a, c)
	}
}

func TestHandlerMayCancelDuringDelivery(t *testing.T) {
	b := New()
	calls := 0
	var sub *Subscription
	sub = b.SubscribeCreated(func(core.Transaction) {
		calls++
		sub.Cancel()
	})

	b.PublishCreated(tx("1"))
	b.PublishCreated(tx("2"))
	if calls != 1 {
		t.Fatalf("expected self-cancelling handler to run once, got %d", calls)
	}
}
