package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventLoanCreated  = "loan_created"
	EventLoanUpdated  = "loan_updated"
	EventLoanReturned = "loan_returned"
	EventLoanDeleted  = "loan_deleted"
)

// LoanEvents lists every loan event type.
var LoanEvents = []string{EventLoanCreated, EventLoanUpdated, EventLoanReturned, EventLoanDeleted}

// LoanEventPayload is the loan snapshot handed to event consumers.
type LoanEventPayload struct {
	LoanID      int64   `json:"loan_id"`
	PersonID    int64   `json:"person_id"`
	PersonName  string  `json:"person_name,omitempty"`
	Description string  `json:"description"`
	ItemIDs     []int64 `json:"item_ids,omitempty"`
	StartedAt   string  `json:"started_at"`
	ReturnedAt  string  `json:"returned_at,omitempty"`
	Admin       bool    `json:"admin,omitempty"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	onError     func(event *Event, err error)
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for the given event types.
func (b *EventBus) Subscribe(handler EventHandler, eventTypes ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range eventTypes {
		b.subscribers[t] = append(b.subscribers[t], handler)
	}
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	onError := b.onError
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		if err := handler(event); err != nil && onError != nil {
			onError(event, err)
		}
	}
}

// OnError sets the callback receiving handler failures.
func (b *EventBus) OnError(fn func(event *Event, err error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onError = fn
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}

// DecodeLoan unmarshals the payload of a loan event.
func (e *Event) DecodeLoan() (LoanEventPayload, error) {
	var p LoanEventPayload
	err := json.Unmarshal(e.Payload, &p)
	return p, err
}
