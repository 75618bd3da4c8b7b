package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/nerrad567/gridlink-core/internal/resource"
)

type fakePublisher struct {
	topics []string
	bodies []any
	err    error
}

func (f *fakePublisher) PublishJSON(topic string, v any, _ bool) error {
	f.topics = append(f.topics, topic)
	f.bodies = append(f.bodies, v)
	return f.err
}

type fakeEventWriter struct {
	program, mrid, event string
	status               int
	tick                 int64
}

func (f *fakeEventWriter) WriteControlEvent(program, mrid, event string, status int, tick int64) {
	f.program, f.mrid, f.event, f.status, f.tick = program, mrid, event, status, tick
}

func TestMQTTEvents(t *testing.T) {
	pub := &fakePublisher{}
	obs := NewMQTTEvents(pub, nil)

	obs.Transitioned(context.Background(), Transition{
		Program: 2, Href: "/derp_2_derc_0", MRID: "AB12",
		From: resource.EventScheduled, To: resource.EventActive, Tick: 100,
	})

	if len(pub.topics) != 1 || pub.topics[0] != "gridlink/core/derp/2/control/AB12/started" {
		t.Fatalf("topics = %v", pub.topics)
	}
	body := pub.bodies[0].(eventPayload)
	if body.From != "scheduled" || body.To != "active" || body.Tick != 100 {
		t.Errorf("payload = %+v", body)
	}

	// Publish failures are swallowed.
	pub.err = errors.New("broker down")
	obs.Transitioned(context.Background(), Transition{MRID: "AB12", To: resource.EventCompleted})
	if pub.topics[1] != "gridlink/core/derp/0/control/AB12/ended" {
		t.Errorf("topic = %s", pub.topics[1])
	}
}

func TestInfluxEvents(t *testing.T) {
	w := &fakeEventWriter{}
	NewInfluxEvents(w).Transitioned(context.Background(), Transition{
		Program: 1, MRID: "C1", From: resource.EventActive, To: resource.EventCompleted, Tick: 150,
	})
	if w.program != "/derp_1" || w.mrid != "C1" || w.event != EventEnded || w.status != int(resource.EventCompleted) || w.tick != 150 {
		t.Errorf("written = %+v", w)
	}
}
