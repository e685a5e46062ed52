package publisher

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"github.com/anicoll/diffuser-panel/internal/pkg/model"
)

var errAlreadyRegistered = errors.New("publisher already registered")

var (
	registeredPublishers = make(map[string]publisher)
	sensors              sync.Map
)

type publisher interface {
	// Write publishes the flattened sensor readings to the backend.
	Write(ctx context.Context, identifier string, readings []model.SensorReading) error
	RegisterDevice(device *model.Device) error
}

func RegisterPublisher(name string, p publisher) error {
	if _, ok := registeredPublishers[name]; ok {
		return errAlreadyRegistered
	}
	registeredPublishers[name] = p
	return nil
}

// Identifier derives the stable topic/storage key for a device.
func Identifier(device *model.Device) string {
	return slug.Make(fmt.Sprintf("%s %s", device.Model, device.ID))
}

// PublishState flattens the merged state and fans it out to every
// registered backend. Readings whose value did not change since the last
// publish are dropped, so a quiet diffuser stays quiet on the wire.
func PublishState(ctx context.Context, device *model.Device, st model.DeviceState) error {
	identifier := Identifier(device)
	readings := make([]model.SensorReading, 0)
	for _, r := range Flatten(st) {
		if !shouldUpdate(identifier, r.Slug, r.Value) {
			continue
		}
		readings = append(readings, r)
	}
	if len(readings) == 0 {
		return nil
	}

	for name, p := range registeredPublishers {
		if err := p.Write(ctx, identifier, readings); err != nil {
			zap.L().Error("failed to publish state", zap.Error(err), zap.String("publisher", name))
			continue
		}
		zap.L().Debug("published sensors", zap.Int("count", len(readings)), zap.String("publisher", name))
	}
	return nil
}

func RegisterDevice(device *model.Device) error {
	for name, p := range registeredPublishers {
		if err := p.RegisterDevice(device); err != nil {
			zap.L().Error("failed to register device", zap.Error(err), zap.String("publisher", name))
			continue
		}
		zap.L().Debug("registered device", zap.String("device", device.ID), zap.String("publisher", name))
	}
	return nil
}

// Flatten projects the merged state into individual sensor readings.
func Flatten(st model.DeviceState) []model.SensorReading {
	readings := []model.SensorReading{
		{Name: "Fan", Slug: "fan_on", Value: onOff(st.Fan.On)},
		{Name: "Fan speed", Slug: "fan_speed", Value: strconv.Itoa(st.Fan.Speed), Unit: "%"},
		{Name: "Timer remaining", Slug: "timer_remaining", Value: strconv.Itoa(st.Fan.RemainingMinutes), Unit: "min"},
		{Name: "WiFi", Slug: "wifi_connected", Value: onOff(st.Wifi.LinkUp())},
		{Name: "MQTT link", Slug: "mqtt_connected", Value: onOff(st.Mqtt.Connected)},
	}
	if st.Fan.Rpm != nil {
		readings = append(readings, model.SensorReading{Name: "Fan RPM", Slug: "fan_rpm", Value: strconv.Itoa(*st.Fan.Rpm), Unit: "RPM"})
	}
	if st.Wifi.Rssi != nil {
		readings = append(readings, model.SensorReading{Name: "WiFi signal", Slug: "wifi_rssi", Value: strconv.Itoa(*st.Wifi.Rssi), Unit: "dBm"})
	}
	if st.Stats != nil {
		readings = append(readings,
			model.SensorReading{Name: "Total runtime", Slug: "total_runtime", Value: strconv.FormatFloat(st.Stats.TotalRuntimeHours, 'f', 1, 64), Unit: "h"},
			model.SensorReading{Name: "Session runtime", Slug: model.SessionTextSensor.String(), Value: st.Stats.SessionRuntime, Text: true},
		)
	}
	if st.Rfid != nil {
		readings = append(readings, model.SensorReading{Name: "Cartridge", Slug: "cartridge_present", Value: onOff(st.Rfid.CartridgePresent)})
		if st.Rfid.LastScent != "" {
			readings = append(readings, model.SensorReading{Name: "Scent", Slug: model.ScentTextSensor.String(), Value: st.Rfid.LastScent, Text: true})
		}
	}
	if st.Night != nil {
		readings = append(readings, model.SensorReading{Name: "Night mode", Slug: "night_enabled", Value: onOff(st.Night.Enabled)})
	}
	if st.Device.Version != "" {
		readings = append(readings, model.SensorReading{Name: "Firmware", Slug: model.VersionTextSensor.String(), Value: st.Device.Version, Text: true})
	}
	return readings
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func shouldUpdate(identifier, slugName, newValue string) bool {
	key := identifier + "_" + slugName
	oldValue, exists := sensors.Load(key)
	if exists && oldValue.(string) == newValue {
		return false
	}
	sensors.Store(key, newValue)
	return true
}
