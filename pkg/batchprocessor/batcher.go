package batchprocessor

import (
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	"github.com/travigo/vesseltracker/pkg/eventbus"
)

// EventBatcher collects items into fixed, non-overlapping time windows and
// hands each window to its subscribers as one batch. A window with nothing in
// it still produces an empty batch.
type EventBatcher[T any] struct {
	period time.Duration
	clock  clock.Clock
	bus    *eventbus.Bus[[]T]

	mu    sync.Mutex
	items []T

	done     chan struct{}
	stopOnce sync.Once
	workers  conc.WaitGroup
}

func NewEventBatcher[T any](name string, period time.Duration, clk clock.Clock) *EventBatcher[T] {
	if clk == nil {
		clk = clock.WallClock
	}

	b := &EventBatcher[T]{
		period: period,
		clock:  clk,
		bus:    eventbus.New[[]T](name),
		items:  []T{},
		done:   make(chan struct{}),
	}
	b.workers.Go(b.run)

	return b
}

// Enqueue adds item to the current window. It never blocks on subscribers.
func (b *EventBatcher[T]) Enqueue(item T) {
	b.mu.Lock()
	b.items = append(b.items, item)
	b.mu.Unlock()
}

func (b *EventBatcher[T]) Subscribe(handler func([]T)) (unsubscribe func()) {
	return b.bus.Subscribe(handler)
}

// Stop ends the timer goroutine. Items in the open window are dropped.
func (b *EventBatcher[T]) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
	})
	b.workers.Wait()
}

func (b *EventBatcher[T]) run() {
	timer := b.clock.NewTimer(b.period)
	defer timer.Stop()

	for {
		select {
		case <-b.done:
			return
		case <-timer.Chan():
			b.flush()
			timer.Reset(b.period)
		}
	}
}

func (b *EventBatcher[T]) flush() {
	b.mu.Lock()
	batch := b.items
	b.items = []T{}
	b.mu.Unlock()

	if len(batch) > 0 {
		log.Debug().Int("length", len(batch)).Msg("Dispatching batch")
	}

	b.bus.Publish(batch)
}
