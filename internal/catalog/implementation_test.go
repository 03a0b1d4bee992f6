// internal/catalog/implementation_test.go
package catalog

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bookedin/internal/eventbus"
	"bookedin/internal/storage/stubs"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (r *eventRecorder) HandleEvent(e eventbus.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func TestAddBookCreatesAvailableCopies(t *testing.T) {
	store := stubs.NewMemory()
	bus := eventbus.New()
	recorder := &eventRecorder{}
	bus.Subscribe(eventbus.BookAdded, recorder)
	svc := NewService(store, bus, zap.NewNop())

	added, err := svc.AddBook(context.Background(), "978-0441172719", "Dune", "Frank Herbert", 3)
	require.NoError(t, err)
	require.Len(t, added, 3)

	copies := store.AllCopies()
	require.Len(t, copies, 3)
	for _, c := range copies {
		assert.Equal(t, "978-0441172719", c.ISBN)
		assert.Equal(t, "Dune", c.Title)
		assert.True(t, c.Available)
	}

	require.Len(t, recorder.events, 1)
	assert.Equal(t, eventbus.Payload{
		"isbn":   "978-0441172719",
		"title":  "Dune",
		"copies": "3",
	}, recorder.events[0].Payload)
}

func TestAddBookRejectsNonPositiveCopyCount(t *testing.T) {
	store := stubs.NewMemory()
	svc := NewService(store, eventbus.New(), zap.NewNop())

	_, err := svc.AddBook(context.Background(), "978-0441172719", "Dune", "Frank Herbert", 0)
	assert.ErrorIs(t, err, ErrNoCopies)
	assert.Empty(t, store.AllCopies())
}
