// Package notify delivers enrollment domain events to external sinks
// (user notifications, analytics) outside the engine's critical sections.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Shivanand-hulikatti/offering-enrollment/internal/model"
)

// Sink consumes domain events. Deliver should honour ctx's deadline.
type Sink interface {
	Deliver(ctx context.Context, ev model.Event) error
}

// Dispatcher queues events and hands each one to every sink from a single
// background goroutine. Delivery errors are logged, never returned to the
// engine.
type Dispatcher struct {
	sinks   []Sink
	queue   chan model.Event
	timeout time.Duration
	logger  *slog.Logger
	stopped chan struct{}
}

// NewDispatcher constructs a Dispatcher with a queue of buffer events and a
// per-delivery timeout.
func NewDispatcher(buffer int, timeout time.Duration, logger *slog.Logger, sinks ...Sink) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		sinks:   sinks,
		queue:   make(chan model.Event, buffer),
		timeout: timeout,
		logger:  logger,
		stopped: make(chan struct{}),
	}
}

// Publish enqueues events. It waits while the queue is full unless ctx ends
// or the dispatcher has stopped, in which case the event is dropped.
func (d *Dispatcher) Publish(ctx context.Context, events ...model.Event) {
	for _, ev := range events {
		select {
		case <-d.stopped:
			d.logger.Warn("notify_event_dropped", "event_id", ev.ID, "type", ev.Type, "reason", "dispatcher stopped")
			continue
		default:
		}
		select {
		case d.queue <- ev:
		case <-ctx.Done():
			d.logger.Warn("notify_event_dropped", "event_id", ev.ID, "type", ev.Type, "reason", ctx.Err())
		case <-d.stopped:
			d.logger.Warn("notify_event_dropped", "event_id", ev.ID, "type", ev.Type, "reason", "dispatcher stopped")
		}
	}
}

// Run delivers queued events until ctx is cancelled, then drains what is
// already queued and returns. Call it once.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer close(d.stopped)
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		case <-ctx.Done():
			d.drain()
			return nil
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ev model.Event) {
	for _, sink := range d.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := sink.Deliver(ctx, ev)
		cancel()
		if err != nil {
			d.logger.Error("notify_delivery_failed",
				"sink", fmt.Sprintf("%T", sink),
				"event_id", ev.ID,
				"type", ev.Type,
				"error", err,
			)
		}
	}
}
