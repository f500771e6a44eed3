package eventbus

import "testing"

func TestBroadcastDeliversToAllSubscribers(t *testing.T) {
	b := New()
	var got1, got2 []Event
	b.Subscribe("a", func(e Event) { got1 = append(got1, e) })
	b.Subscribe("b", func(e Event) { got2 = append(got2, e) })

	b.Broadcast(Event{Name: EventProcessState})

	if len(got1) != 1 || len(got2) != 1 {
		t.Fatalf("expected both subscribers to receive the event, got %d and %d", len(got1), len(got2))
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	var count int
	b.Subscribe("a", func(Event) { count++ })
	b.Unsubscribe("a")
	b.Broadcast(Event{Name: EventProcessState})
	if count != 0 {
		t.Fatalf("expected no delivery after unsubscribe, got %d", count)
	}
}

func TestSubscribeReplacesPreviousHandler(t *testing.T) {
	b := New()
	var calls []string
	b.Subscribe("a", func(Event) { calls = append(calls, "first") })
	b.Subscribe("a", func(Event) { calls = append(calls, "second") })
	b.Broadcast(Event{})
	if len(calls) != 1 || calls[0] != "second" {
		t.Fatalf("got %v, want [second]", calls)
	}
}

func TestHandlerCanUnsubscribeDuringBroadcastWithoutDeadlock(t *testing.T) {
	b := New()
	b.Subscribe("a", func(Event) { b.Unsubscribe("a") })
	b.Broadcast(Event{}) // must not deadlock
	b.Broadcast(Event{}) // second broadcast should see no subscribers
}
