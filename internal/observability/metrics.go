package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gridlink"

var (
	registerOnce sync.Once

	persistNotifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "persist",
			Name:      "notifications_total",
			Help:      "Store mutations delivered to the persistence hub.",
		},
		[]string{"store"},
	)
	persistFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "persist",
			Name:      "failures_total",
			Help:      "Snapshot writes rejected by a persister.",
		},
		[]string{"store", "persister"},
	)
	lifecycleTicks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "ticks_total",
			Help:      "Control lifecycle ticks processed.",
		},
	)
	lifecycleTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "transitions_total",
			Help:      "Control status transitions applied by the lifecycle engine.",
		},
		[]string{"to"},
	)
	lifecycleSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "skipped_total",
			Help:      "Controls skipped because of an internal inconsistency.",
		},
		[]string{"reason"},
	)
	mirrorReadings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "metering",
			Name:      "mirror_readings_total",
			Help:      "Mirror meter readings accepted.",
		},
		[]string{"result"},
	)
	mqttConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "mqtt",
			Name:      "connected",
			Help:      "1 while the broker connection is up.",
		},
	)
	mqttMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mqtt",
			Name:      "messages_total",
			Help:      "MQTT messages published or received.",
		},
		[]string{"direction", "result"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// RegisterMetrics registers every collector with the default registry.
// It is safe to call more than once.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			persistNotifications, persistFailures,
			lifecycleTicks, lifecycleTransitions, lifecycleSkipped,
			mirrorReadings,
			mqttConnected, mqttMessages,
			httpRequests, httpDuration,
		)
	})
}

func RecordPersistNotification(store string) {
	RegisterMetrics()
	persistNotifications.WithLabelValues(store).Inc()
}

func RecordPersistFailure(store, persister string) {
	RegisterMetrics()
	persistFailures.WithLabelValues(store, persister).Inc()
}

func RecordTick() {
	RegisterMetrics()
	lifecycleTicks.Inc()
}

func RecordTransition(to string) {
	RegisterMetrics()
	lifecycleTransitions.WithLabelValues(to).Inc()
}

func RecordSkipped(reason string) {
	RegisterMetrics()
	lifecycleSkipped.WithLabelValues(reason).Inc()
}

func RecordMirrorReading(created bool) {
	RegisterMetrics()
	result := "updated"
	if created {
		result = "created"
	}
	mirrorReadings.WithLabelValues(result).Inc()
}

func RecordMQTTConnection(up bool) {
	RegisterMetrics()
	if up {
		mqttConnected.Set(1)
		return
	}
	mqttConnected.Set(0)
}

// RecordMQTTMessage counts one message. direction is "published" or
// "received"; result is "ok", "failed", "rejected" or "panic".
func RecordMQTTMessage(direction, result string) {
	RegisterMetrics()
	mqttMessages.WithLabelValues(direction, result).Inc()
}

func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, route, statusLabel).Inc()
	httpDuration.WithLabelValues(method, route, statusLabel).Observe(duration.Seconds())
}
