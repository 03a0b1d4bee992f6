package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bookedin/internal/eventbus"
)

func waitForRefresh(t *testing.T, refreshed <-chan struct{}) {
	t.Helper()
	select {
	case <-refreshed:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for refresh")
	}
}

func TestRefreshesOnEvent(t *testing.T) {
	bus := eventbus.New()
	refreshed := make(chan struct{}, 8)

	r := New(bus, time.Hour, func(context.Context) error {
		refreshed <- struct{}{}
		return nil
	}, zap.NewNop())
	r.Start(context.Background())
	defer r.Stop()

	bus.Publish(eventbus.DataChanged, nil)
	waitForRefresh(t, refreshed)
}

func TestRefreshesOnExtraEventTypes(t *testing.T) {
	bus := eventbus.New()
	refreshed := make(chan struct{}, 8)

	r := New(bus, time.Hour, func(context.Context) error {
		refreshed <- struct{}{}
		return nil
	}, zap.NewNop(), eventbus.BookCheckedOut, eventbus.BookReturned)
	r.Start(context.Background())
	defer r.Stop()

	bus.Publish(eventbus.BookCheckedOut, nil)
	waitForRefresh(t, refreshed)

	bus.Publish(eventbus.BookReturned, nil)
	waitForRefresh(t, refreshed)
}

func TestRefreshesOnTickerWithoutEvents(t *testing.T) {
	bus := eventbus.New()
	refreshed := make(chan struct{}, 8)

	r := New(bus, 10*time.Millisecond, func(context.Context) error {
		refreshed <- struct{}{}
		return nil
	}, zap.NewNop())
	r.Start(context.Background())
	defer r.Stop()

	waitForRefresh(t, refreshed)
}

func TestStopUnsubscribesFromBus(t *testing.T) {
	bus := eventbus.New()
	refreshed := make(chan struct{}, 8)

	r := New(bus, time.Hour, func(context.Context) error {
		refreshed <- struct{}{}
		return nil
	}, zap.NewNop())
	r.Start(context.Background())

	bus.Publish(eventbus.DataChanged, nil)
	waitForRefresh(t, refreshed)

	r.Stop()

	bus.Publish(eventbus.DataChanged, nil)
	select {
	case <-refreshed:
		t.Fatal("refresh ran after Stop")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRefreshErrorDoesNotStopLoop(t *testing.T) {
	bus := eventbus.New()
	refreshed := make(chan error, 8)
	calls := 0

	r := New(bus, time.Hour, func(context.Context) error {
		calls++
		if calls == 1 {
			refreshed <- errors.New("boom")
			return errors.New("boom")
		}
		refreshed <- nil
		return nil
	}, zap.NewNop())
	r.Start(context.Background())
	defer r.Stop()

	bus.Publish(eventbus.DataChanged, nil)
	require.Error(t, <-refreshed)

	bus.Publish(eventbus.DataChanged, nil)
	require.NoError(t, <-refreshed)
}
