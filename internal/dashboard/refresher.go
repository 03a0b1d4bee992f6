// Package dashboard keeps a view in sync with storage. A Refresher re-runs
// its snapshot query whenever a subscribed event arrives, and also on a
// fixed interval as a fallback in case an event is missed or delivery races
// commit visibility.
package dashboard

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"bookedin/internal/eventbus"
)

// RefreshFunc re-runs the read queries the view displays.
type RefreshFunc func(ctx context.Context) error

// Refresher is one dashboard's reconciliation loop. It subscribes itself on
// Start and unsubscribes on Stop; nobody unsubscribes on its behalf.
type Refresher struct {
	bus      *eventbus.Bus
	types    []eventbus.Type
	interval time.Duration
	refresh  RefreshFunc
	logger   *zap.Logger

	kick   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a refresher listening for the given event types; with none
// given it listens for DataChanged only.
func New(bus *eventbus.Bus, interval time.Duration, refresh RefreshFunc, logger *zap.Logger, types ...eventbus.Type) *Refresher {
	if len(types) == 0 {
		types = []eventbus.Type{eventbus.DataChanged}
	}
	return &Refresher{
		bus:      bus,
		types:    types,
		interval: interval,
		refresh:  refresh,
		logger:   logger,
		kick:     make(chan struct{}, 1),
	}
}

// HandleEvent implements eventbus.Subscriber. Delivery happens on the
// publisher's goroutine, so it only nudges the loop; the refresh itself
// runs on the refresher's own goroutine. A kick that is already pending
// absorbs further events.
func (r *Refresher) HandleEvent(eventbus.Event) {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// Start subscribes to the bus and launches the refresh loop.
func (r *Refresher) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})

	for _, t := range r.types {
		r.bus.Subscribe(t, r)
	}
	go r.loop(ctx)
}

func (r *Refresher) loop(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.kick:
		case <-ticker.C:
		}

		if err := r.refresh(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Warn("dashboard refresh failed", zap.Error(err))
		}
	}
}

// Stop unsubscribes from the bus and waits for the loop to exit.
func (r *Refresher) Stop() {
	for _, t := range r.types {
		r.bus.Unsubscribe(t, r)
	}
	r.cancel()
	<-r.done
}
