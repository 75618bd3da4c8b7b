package mqtt

import (
	"encoding/json"
	"fmt"

	"github.com/nerrad567/gridlink-core/internal/observability"
)

// maxPayloadSize bounds a single message (1MB).
const maxPayloadSize = 1 << 20

// Publish sends payload to topic and waits for the broker to acknowledge
// it at the given QoS. Payloads over 1MB are refused before they reach
// paho. Every attempt that reaches the broker is counted as published ok
// or failed.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	switch {
	case topic == "":
		return ErrInvalidTopic
	case qos > maxQoS:
		return ErrInvalidQoS
	case len(payload) > maxPayloadSize:
		return fmt.Errorf("%w: payload is %d bytes, limit %d", ErrPublishFailed, len(payload), maxPayloadSize)
	case !c.IsConnected():
		return ErrNotConnected
	}

	if err := waitToken(c.client.Publish(topic, qos, retained, payload), ErrPublishFailed); err != nil {
		observability.RecordMQTTMessage("published", "failed")
		return err
	}
	observability.RecordMQTTMessage("published", "ok")
	return nil
}

// PublishJSON marshals v and publishes it with the configured default QoS.
// Every Core publisher (persist, lifecycle, telemetry) goes through here.
func (c *Client) PublishJSON(topic string, v any, retained bool) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encoding payload: %w", ErrPublishFailed, err)
	}
	return c.Publish(topic, payload, byte(c.cfg.QoS), retained)
}
