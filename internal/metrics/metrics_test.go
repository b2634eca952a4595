package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"akiverse/internal/arcade"
)

func TestObserveOperationLabelsByKind(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveOperation("install", nil)
	m.ObserveOperation("install", nil)
	m.ObserveOperation("install", arcade.ErrConflict)
	m.ObserveOperation("dismantle", errors.New("boom"))

	require.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("install", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("install", "conflict")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("dismantle", "unhandled")))
}

func TestNotificationCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.NotificationSent()
	m.NotificationFailed()
	m.NotificationDropped()
	m.NotificationDropped()

	require.Equal(t, 1.0, testutil.ToFloat64(m.notificationsSent))
	require.Equal(t, 1.0, testutil.ToFloat64(m.notificationsFailed))
	require.Equal(t, 2.0, testutil.ToFloat64(m.notificationsDropped))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveOperation("install", nil)
	m.ObserveSelection(3)
	m.NotificationFailed()
}

func TestRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveSelection(4)
	m.ObserveOperation("install", nil)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	require.Contains(t, names, "akiverse_arcade_operations_total")
	require.Contains(t, names, "akiverse_playable_selection_size")
}
