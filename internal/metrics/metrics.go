// Package metrics holds the Prometheus collectors for the arcade service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"akiverse/internal/arcade"
)

const namespace = "akiverse"

type Metrics struct {
	operations           *prometheus.CounterVec
	selected             prometheus.Histogram
	notificationsSent    prometheus.Counter
	notificationsFailed  prometheus.Counter
	notificationsDropped prometheus.Counter
}

// New builds the collectors and registers them with reg. A nil reg leaves
// them unregistered, which is what tests want.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "arcade_operations_total",
			Help:      "Arcade machine operations by outcome kind",
		}, []string{"op", "kind"}),
		selected: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "playable_selection_size",
			Help:      "Number of arcade machines returned per playable request",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		}),
		notificationsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Notifications delivered to a recipient",
		}),
		notificationsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_failed_total",
			Help:      "Notification deliveries that returned an error",
		}),
		notificationsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_dropped_total",
			Help:      "Events dropped because the dispatch queue was full or stopped",
		}),
	}
}

// ObserveOperation counts one call of op. Safe on a nil receiver.
func (m *Metrics) ObserveOperation(op string, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, string(arcade.KindOf(err))).Inc()
}

func (m *Metrics) ObserveSelection(n int) {
	if m == nil {
		return
	}
	m.selected.Observe(float64(n))
}

func (m *Metrics) NotificationSent() {
	if m == nil {
		return
	}
	m.notificationsSent.Inc()
}

func (m *Metrics) NotificationFailed() {
	if m == nil {
		return
	}
	m.notificationsFailed.Inc()
}

func (m *Metrics) NotificationDropped() {
	if m == nil {
		return
	}
	m.notificationsDropped.Inc()
}
