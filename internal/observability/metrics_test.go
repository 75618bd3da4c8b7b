package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordPersist(t *testing.T) {
	before := testutil.ToFloat64(persistFailures.WithLabelValues("lists", "sqlite"))
	RecordPersistFailure("lists", "sqlite")
	RecordPersistFailure("lists", "sqlite")
	if got := testutil.ToFloat64(persistFailures.WithLabelValues("lists", "sqlite")); got != before+2 {
		t.Errorf("failures = %v, want %v", got, before+2)
	}

	before = testutil.ToFloat64(persistNotifications.WithLabelValues("edev"))
	RecordPersistNotification("edev")
	if got := testutil.ToFloat64(persistNotifications.WithLabelValues("edev")); got != before+1 {
		t.Errorf("notifications = %v, want %v", got, before+1)
	}
}

func TestRecordLifecycle(t *testing.T) {
	ticks := testutil.ToFloat64(lifecycleTicks)
	RecordTick()
	if got := testutil.ToFloat64(lifecycleTicks); got != ticks+1 {
		t.Errorf("ticks = %v, want %v", got, ticks+1)
	}

	started := testutil.ToFloat64(lifecycleTransitions.WithLabelValues("active"))
	RecordTransition("active")
	if got := testutil.ToFloat64(lifecycleTransitions.WithLabelValues("active")); got != started+1 {
		t.Errorf("transitions = %v, want %v", got, started+1)
	}

	skipped := testutil.ToFloat64(lifecycleSkipped.WithLabelValues("missing_program"))
	RecordSkipped("missing_program")
	if got := testutil.ToFloat64(lifecycleSkipped.WithLabelValues("missing_program")); got != skipped+1 {
		t.Errorf("skipped = %v, want %v", got, skipped+1)
	}
}

func TestRecordMirrorReading(t *testing.T) {
	created := testutil.ToFloat64(mirrorReadings.WithLabelValues("created"))
	updated := testutil.ToFloat64(mirrorReadings.WithLabelValues("updated"))
	RecordMirrorReading(true)
	RecordMirrorReading(false)
	RecordMirrorReading(false)
	if got := testutil.ToFloat64(mirrorReadings.WithLabelValues("created")); got != created+1 {
		t.Errorf("created = %v, want %v", got, created+1)
	}
	if got := testutil.ToFloat64(mirrorReadings.WithLabelValues("updated")); got != updated+2 {
		t.Errorf("updated = %v, want %v", got, updated+2)
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/edev", "200"))
	RecordHTTPRequest("GET", "/edev", 200, 5*time.Millisecond)
	if got := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/edev", "200")); got != before+1 {
		t.Errorf("requests = %v, want %v", got, before+1)
	}
}

func TestRegisterMetricsIdempotent(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()
}

func TestRecordMQTT(t *testing.T) {
	RecordMQTTConnection(true)
	if got := testutil.ToFloat64(mqttConnected); got != 1 {
		t.Errorf("connected = %v, want 1", got)
	}
	RecordMQTTConnection(false)
	if got := testutil.ToFloat64(mqttConnected); got != 0 {
		t.Errorf("connected = %v, want 0", got)
	}

	before := testutil.ToFloat64(mqttMessages.WithLabelValues("received", "rejected"))
	RecordMQTTMessage("received", "rejected")
	if got := testutil.ToFloat64(mqttMessages.WithLabelValues("received", "rejected")); got != before+1 {
		t.Errorf("messages = %v, want %v", got, before+1)
	}
}
