// Package eventbus is a process-wide publish/subscribe registry. The
// circulation, catalog and membership services publish on it after each
// successful commit; dashboard views subscribe on construction and must
// unsubscribe on teardown. The bus owns no domain data and persists nothing.
package eventbus

import "sync"

// Type tags an event with one of the fixed circulation event kinds.
type Type string

const (
	BookCheckedOut Type = "BOOK_CHECKOUT"
	BookReturned   Type = "BOOK_RETURN"
	BookRenewed    Type = "BOOK_RENEWAL"
	MemberAdded    Type = "MEMBER_ADDED"
	BookAdded      Type = "BOOK_ADDED"

	// DataChanged is the generic catch-all meaning "re-fetch everything".
	// It accompanies every specific event.
	DataChanged Type = "DATA_CHANGED"
)

// Payload is an opaque key/value bag attached to an event. It exists only
// for the duration of a publish call.
type Payload map[string]string

// Event is what subscribers receive.
type Event struct {
	Type    Type
	Payload Payload
}

// Subscriber handles events delivered by the bus. Handlers run synchronously
// on the publishing goroutine; a subscriber that must touch a single-threaded
// surface is responsible for marshalling the callback onto its own queue.
type Subscriber interface {
	HandleEvent(Event)
}

// SubscriberFunc adapts a function to the Subscriber interface. Register a
// pointer to it so the same handler can be unsubscribed again.
type SubscriberFunc func(Event)

// HandleEvent calls f.
func (f *SubscriberFunc) HandleEvent(e Event) { (*f)(e) }

// Bus fans events out to registered subscribers. The zero value is not
// usable; construct with New. Safe for concurrent use.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[Type][]Subscriber
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{subscribers: make(map[Type][]Subscriber)}
}

// Subscribe registers s for events of type t. Subscribing the same
// subscriber to the same type twice is a no-op.
func (b *Bus) Subscribe(t Type, s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, existing := range b.subscribers[t] {
		if existing == s {
			return
		}
	}
	b.subscribers[t] = append(b.subscribers[t], s)
}

// Unsubscribe removes a prior registration of s for type t. Unsubscribing a
// subscriber that is not registered is a no-op, never an error.
func (b *Bus) Unsubscribe(t Type, s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[t]
	for i, existing := range subs {
		if existing == s {
			b.subscribers[t] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Publish delivers the event synchronously, in registration order, to every
// subscriber registered for t at the moment Publish is called. Subscribers
// added or removed during delivery do not affect the in-flight delivery.
// There is no acknowledgment and no backpressure.
func (b *Bus) Publish(t Type, p Payload) {
	b.mu.RLock()
	snapshot := make([]Subscriber, len(b.subscribers[t]))
	copy(snapshot, b.subscribers[t])
	b.mu.RUnlock()

	e := Event{Type: t, Payload: p}
	for _, s := range snapshot {
		s.HandleEvent(e)
	}
}
