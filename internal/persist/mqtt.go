package persist

import (
	"context"
	"time"

	"github.com/nerrad567/gridlink-core/internal/infrastructure/mqtt"
)

// Publisher is the subset of the MQTT client used by MQTTNotifier.
type Publisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// changedPayload is the body of a store-changed notification. The snapshot
// itself is not published; subscribers fetch what they need over HTTP.
type changedPayload struct {
	Store     string    `json:"store"`
	Bytes     int       `json:"bytes"`
	Timestamp time.Time `json:"timestamp"`
}

// MQTTNotifier announces store mutations on the bus. It holds no state, so
// Load always reports no snapshot.
type MQTTNotifier struct {
	pub    Publisher
	topics mqtt.Topics
}

// NewMQTTNotifier creates a notifier publishing through pub.
func NewMQTTNotifier(pub Publisher) *MQTTNotifier {
	return &MQTTNotifier{pub: pub}
}

// Name implements Persister.
func (*MQTTNotifier) Name() string { return "mqtt" }

// OnChange implements Persister.
func (n *MQTTNotifier) OnChange(_ context.Context, store string, snapshot []byte) error {
	return n.pub.PublishJSON(n.topics.StoreChanged(store), changedPayload{
		Store:     store,
		Bytes:     len(snapshot),
		Timestamp: time.Now().UTC(),
	}, false)
}

// Load implements Persister.
func (*MQTTNotifier) Load(context.Context, string) ([]byte, bool, error) {
	return nil, false, nil
}
