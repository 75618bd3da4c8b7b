package directory

import (
	"encoding/json"
	"fmt"

	"github.com/nerrad567/gridlink-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/gridlink-core/internal/resource"
)

// Subscriber is the subset of the MQTT client used for commands.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// StatusCommand asks for a control to move to a terminal status. It is
// the payload of MQTT status commands and of a PUT to a control href:
//
//	{"status": "cancelled", "reason": "operator abort"}
type StatusCommand struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// ApplyStatusCommand parses cmd and hands it to SetControlStatus.
func (d *Directory) ApplyStatusCommand(program, control int, cmd StatusCommand) (*resource.DERControl, error) {
	state, err := resource.ParseEventState(cmd.Status)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidStatus, err)
	}
	return d.SetControlStatus(program, control, state, cmd.Reason)
}

// SubscribeCommands routes control status commands from sub to
// SetControlStatus.
func (d *Directory) SubscribeCommands(sub Subscriber, qos byte) error {
	topics := mqtt.Topics{}
	if err := sub.Subscribe(topics.AllControlCommands(), qos, d.handleStatusCommand); err != nil {
		return fmt.Errorf("subscribing to control commands: %w", err)
	}
	return nil
}

func (d *Directory) handleStatusCommand(topic string, payload []byte) error {
	program, control, err := mqtt.ParseControlStatusCommand(topic)
	if err != nil {
		return err
	}

	var cmd StatusCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidStatus, err)
	}

	if _, err := d.ApplyStatusCommand(program, control, cmd); err != nil {
		d.logger.Warn("control status command rejected", "topic", topic, "status", cmd.Status, "error", err)
		return err
	}
	return nil
}
