package events

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	var received *Event
	var callCount int

	handler := func(event *Event) error {
		received = event
		callCount++
		return nil
	}

	bus.Subscribe(handler, EventLoanCreated)

	payload := map[string]string{"foo": "bar"}
	err := bus.PublishJSON(EventLoanCreated, payload)
	if err != nil {
		t.Fatalf("PublishJSON failed: %v", err)
	}

	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}

	if received.Type != EventLoanCreated {
		t.Errorf("expected type %s, got %s", EventLoanCreated, received.Type)
	}
	if received.CreatedAt.IsZero() {
		t.Errorf("expected CreatedAt to be set")
	}

	var decoded map[string]string
	if err := json.Unmarshal(received.Payload, &decoded); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}

	if decoded["foo"] != "bar" {
		t.Errorf("expected foo=bar, got %s", decoded["foo"])
	}
}

func TestEventBusSeveralTypes(t *testing.T) {
	bus := NewEventBus()
	var count1, count2 int

	bus.Subscribe(func(_ *Event) error { count1++; return nil }, LoanEvents...)
	bus.Subscribe(func(_ *Event) error { count2++; return nil }, EventLoanReturned)

	bus.Publish(&Event{Type: EventLoanCreated})
	bus.Publish(&Event{Type: EventLoanReturned})

	if count1 != 2 || count2 != 1 {
		t.Errorf("expected 2 and 1 calls, got %d and %d", count1, count2)
	}
}

func TestEventBusNoSubscribers(t *testing.T) {
	bus := NewEventBus()
	// Should not panic
	bus.Publish(&Event{Type: "unknown"})
	err := bus.PublishJSON("unknown", nil)
	if err != nil {
		t.Errorf("PublishJSON failed: %v", err)
	}

	var nilBus *EventBus
	if err := nilBus.PublishJSON(EventLoanDeleted, nil); err != nil {
		t.Errorf("nil bus should ignore events: %v", err)
	}
}

func TestEventBusHandlerError(t *testing.T) {
	bus := NewEventBus()
	var failures int
	bus.OnError(func(_ *Event, _ error) { failures++ })
	bus.Subscribe(func(_ *Event) error { return errors.New("boom") }, EventLoanDeleted)
	bus.Subscribe(func(_ *Event) error { return nil }, EventLoanDeleted)

	bus.Publish(&Event{Type: EventLoanDeleted})

	if failures != 1 {
		t.Errorf("expected 1 failure, got %d", failures)
	}
}

func TestDecodeLoan(t *testing.T) {
	bus := NewEventBus()
	var got LoanEventPayload
	bus.Subscribe(func(e *Event) error {
		var err error
		got, err = e.DecodeLoan()
		return err
	}, EventLoanReturned)

	if err := bus.PublishJSON(EventLoanReturned, LoanEventPayload{LoanID: 123, ItemIDs: []int64{4, 5}}); err != nil {
		t.Fatalf("PublishJSON failed: %v", err)
	}

	if got.LoanID != 123 || len(got.ItemIDs) != 2 {
		t.Errorf("unexpected payload %+v", got)
	}
}
