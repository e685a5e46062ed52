package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anicoll/diffuser-panel/internal/pkg/model"
	"github.com/anicoll/diffuser-panel/internal/pkg/publisher"
)

var configuredDevices = make(map[string]struct{})

func (s *service) Write(ctx context.Context, identifier string, readings []model.SensorReading) error {
	for _, r := range readings {
		if err := s.publishReading(identifier, r); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) RegisterDevice(device *model.Device) error {
	if _, exists := configuredDevices[device.ID]; exists {
		return nil
	}
	registerMessage := defaultRegisterMsg(device)
	topic := fmt.Sprintf("homeassistant/sensor/%s/config", publisher.Identifier(device))

	payload, err := json.Marshal(registerMessage)
	if err != nil {
		return err
	}
	token := s.client.Publish(topic, 1, true, payload)
	if err := token.Error(); err != nil {
		return err
	}
	if res := token.WaitTimeout(time.Second * 5); res {
		configuredDevices[device.ID] = struct{}{}
		return nil
	}
	return nil
}

func (s *service) publishReading(identifier string, reading model.SensorReading) error {
	topic := fmt.Sprintf("homeassistant/sensor/%s/%s/state", identifier, reading.Slug)

	payload := map[string]string{
		"value": reading.Value,
	}
	if !reading.Text && reading.Unit != "" {
		payload["unit_of_measurement"] = reading.Unit
	}

	publishData, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	token := s.client.Publish(topic, 0, false, publishData)
	res := token.WaitTimeout(time.Second * 10)
	if res {
		return nil
	}
	if err := token.Error(); err != nil {
		return err
	}
	return nil
}

func defaultRegisterMsg(device *model.Device) model.RegisterMessage {
	identifier := publisher.Identifier(device)
	name := fmt.Sprintf("%s %s", device.Model, device.Name)
	identifiers := []string{identifier}
	if device.Mac != "" {
		identifiers = append(identifiers, device.Mac)
	}

	return model.RegisterMessage{
		Tilda:      fmt.Sprintf("homeassistant/sensor/%s", identifier),
		Name:       name,
		ID:         identifier,
		StateTopic: "~/state",
		Device: model.RegisterDevice{
			Name:         name,
			Identifiers:  identifiers,
			Model:        device.Model,
			Manufacturer: "Rituals",
			SwVersion:    device.Version,
		},
	}
}
