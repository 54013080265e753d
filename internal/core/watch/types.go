package watch

import "context"

// Event is a single notification delivered to a Handler.
type Event struct {
	Type string
	Data any
}

// Batch maps each event type notified since the last flush to its most
// recent payload.
type Batch map[string]any

type (
	// Handler receives one event. A returned error is logged, never propagated.
	Handler func(Event) error
	// BatchHandler receives the coalesced batch of a flush.
	BatchHandler func(Batch) error
)

// Options controls delivery of a registration.
type Options struct {
	// Deferred moves delivery to the batched flush instead of Notify.
	Deferred bool
	// Once removes the registration after its first delivery.
	Once bool
	// Ctx removes the registration when cancelled; nothing is delivered
	// after cancellation, including already batched events.
	Ctx context.Context
}

// Result is the single value produced by WaitFor.
type Result struct {
	Data any
	Err  error
}

// Subscription identifies one registration.
type Subscription interface {
	ID() string
	// Type is the event type, or "" for wildcard registrations.
	Type() string
	IsActive() bool
	Cancel()
}
