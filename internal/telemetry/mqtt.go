package telemetry

import (
	"context"

	"github.com/nerrad567/gridlink-core/internal/href"
	"github.com/nerrad567/gridlink-core/internal/infrastructure/mqtt"
)

// Publisher is the subset of the MQTT client used by MQTTSink.
type Publisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// readingPayload is the JSON body of a mirror reading message.
type readingPayload struct {
	MirrorUsagePoint string `json:"mirrorUsagePoint"`
	MeterReading     string `json:"meterReading"`
	MRID             string `json:"mRID"`
	Value            int64  `json:"value"`
	PowerOfTenMult   int    `json:"powerOfTenMultiplier"`
	UOM              int    `json:"uom"`
	TimePeriod       int64  `json:"timePeriod"`
}

// MQTTSink publishes each reading to its usage point's reading topic.
type MQTTSink struct {
	pub    Publisher
	topics mqtt.Topics
}

// NewMQTTSink creates a sink publishing through pub.
func NewMQTTSink(pub Publisher) *MQTTSink {
	return &MQTTSink{pub: pub}
}

// Record implements Sink.
func (s *MQTTSink) Record(_ context.Context, r Reading) error {
	mup, err := href.MirrorKey(r.MirrorUsagePoint)
	if err != nil {
		return err
	}
	return s.pub.PublishJSON(s.topics.MirrorReading(mup), readingPayload{
		MirrorUsagePoint: r.MirrorUsagePoint,
		MeterReading:     r.MeterReading,
		MRID:             r.ReadingMRID,
		Value:            r.Value,
		PowerOfTenMult:   r.PowerOfTenMult,
		UOM:              r.UOM,
		TimePeriod:       r.TimePeriod,
	}, false)
}
