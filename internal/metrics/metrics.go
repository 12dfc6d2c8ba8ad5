package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Ticks counts monitor ticks by result ("ok" or "error").
	Ticks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pingdom_alert_ticks_total",
			Help: "Number of monitor ticks by result",
		},
		[]string{"result"},
	)

	TickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pingdom_alert_tick_duration_seconds",
			Help:    "Duration of one poll, evaluate and notify cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	ChecksDown = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pingdom_alert_checks_down",
			Help: "Checks currently tracked as down",
		},
	)

	// Alerts counts individual check alerts, not notifier calls.
	Alerts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pingdom_alert_alerts_total",
			Help: "Check alerts included in a notification",
		},
	)

	NotifyFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pingdom_alert_notify_failures_total",
			Help: "Notifier calls that returned an error",
		},
	)
)

var registerOnce sync.Once

// Init registers the collectors with the default registry. Repeated calls
// are no-ops.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(Ticks, TickDuration, ChecksDown, Alerts, NotifyFailures)
	})
}
