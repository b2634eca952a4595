// Package notify delivers lifecycle events to their recipients after the
// transaction that produced them has committed. Delivery is best effort: a
// full queue drops the event and a failing notifier is logged and counted.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"akiverse/internal/arcade"
	"akiverse/internal/metrics"
)

const (
	DefaultWorkers   = 4
	DefaultQueueSize = 1000

	deliverTimeout = 5 * time.Second
)

// Notifier delivers one event to one recipient.
type Notifier interface {
	Notify(ctx context.Context, recipient string, event arcade.Event) error
}

type NotifierFunc func(ctx context.Context, recipient string, event arcade.Event) error

func (f NotifierFunc) Notify(ctx context.Context, recipient string, event arcade.Event) error {
	return f(ctx, recipient, event)
}

// LogNotifier writes each delivery as a structured log line.
type LogNotifier struct {
	Log *slog.Logger
}

func (n LogNotifier) Notify(_ context.Context, recipient string, event arcade.Event) error {
	log := n.Log
	if log == nil {
		log = slog.Default()
	}
	log.Info("notification",
		"kind", event.Kind,
		"recipient", recipient,
		"arcade_machine_id", event.ArcadeMachineID,
		"game_center_id", event.GameCenterID,
	)
	return nil
}

type Dispatcher struct {
	notifier Notifier
	log      *slog.Logger
	metrics  *metrics.Metrics

	queue   chan arcade.Event
	wg      sync.WaitGroup
	mu      sync.RWMutex
	stopped bool
}

// NewDispatcher starts workers goroutines draining a queue of queueSize
// events. Non-positive sizes fall back to the defaults.
func NewDispatcher(notifier Notifier, logger *slog.Logger, m *metrics.Metrics, workers, queueSize int) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	d := &Dispatcher{
		notifier: notifier,
		log:      logger,
		metrics:  m,
		queue:    make(chan arcade.Event, queueSize),
	}
	for range workers {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Dispatch enqueues events without blocking.
func (d *Dispatcher) Dispatch(events ...arcade.Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, e := range events {
		if d.stopped {
			d.drop(e, "dispatcher stopped")
			continue
		}
		select {
		case d.queue <- e:
		default:
			d.drop(e, "queue full")
		}
	}
}

// Stop refuses new events and waits until queued ones are delivered.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) drop(e arcade.Event, reason string) {
	d.metrics.NotificationDropped()
	d.log.Warn("notification dropped", "reason", reason, "kind", e.Kind, "arcade_machine_id", e.ArcadeMachineID)
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for e := range d.queue {
		for _, r := range e.Recipients {
			if err := d.deliver(r, e); err != nil {
				d.metrics.NotificationFailed()
				d.log.Warn("notification failed", "kind", e.Kind, "recipient", r, "err", err)
				continue
			}
			d.metrics.NotificationSent()
		}
	}
}

func (d *Dispatcher) deliver(recipient string, e arcade.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notifier panic: %v", r)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
	defer cancel()
	return d.notifier.Notify(ctx, recipient, e)
}
