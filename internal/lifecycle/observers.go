package lifecycle

import (
	"context"

	"github.com/nerrad567/gridlink-core/internal/href"
	"github.com/nerrad567/gridlink-core/internal/infrastructure/mqtt"
)

// Publisher is the subset of the MQTT client used by MQTTEvents.
type Publisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// eventPayload is the body of a control event message.
type eventPayload struct {
	Href string `json:"href"`
	MRID string `json:"mrid"`
	From string `json:"from"`
	To   string `json:"to"`
	Tick int64  `json:"tick"`
}

// MQTTEvents publishes each transition to
// gridlink/core/derp/{program}/control/{mrid}/{started|ended}.
type MQTTEvents struct {
	pub    Publisher
	topics mqtt.Topics
	logger Logger
}

// NewMQTTEvents creates an observer publishing through pub.
func NewMQTTEvents(pub Publisher, logger Logger) *MQTTEvents {
	if logger == nil {
		logger = noopLogger{}
	}
	return &MQTTEvents{pub: pub, logger: logger}
}

// Transitioned implements Observer. Publish failures are logged only.
func (m *MQTTEvents) Transitioned(_ context.Context, t Transition) {
	topic := m.topics.ControlEvent(t.Program, t.MRID, t.Event())
	err := m.pub.PublishJSON(topic, eventPayload{
		Href: t.Href,
		MRID: t.MRID,
		From: t.From.String(),
		To:   t.To.String(),
		Tick: t.Tick,
	}, false)
	if err != nil {
		m.logger.Warn("control event not published", "topic", topic, "error", err)
	}
}

// EventWriter is the subset of the InfluxDB client used by InfluxEvents.
type EventWriter interface {
	WriteControlEvent(program, mrid, event string, status int, tick int64)
}

// InfluxEvents records each transition as a der_control_events point.
type InfluxEvents struct {
	w EventWriter
}

// NewInfluxEvents creates an observer writing through w.
func NewInfluxEvents(w EventWriter) *InfluxEvents {
	return &InfluxEvents{w: w}
}

// Transitioned implements Observer.
func (i *InfluxEvents) Transitioned(_ context.Context, t Transition) {
	i.w.WriteControlEvent(href.Program(t.Program).Href, t.MRID, t.Event(), int(t.To), t.Tick)
}
