package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	DeviceCfg *DeviceConfig
	MqttCfg   *MqttConfig
	PanelCfg  *PanelConfig
	LogLevel  string
}

// DeviceConfig describes how to reach the diffuser and how aggressively to
// poll it. The lite interval is the only repeating cycle against the device;
// full snapshots are fetched once at startup and on demand.
type DeviceConfig struct {
	Host           string        `env:"DEVICE_HOST"`
	LiteInterval   time.Duration `env:"LITE_POLL_INTERVAL" envDefault:"5s"`
	ButtonInterval time.Duration `env:"BUTTON_POLL_INTERVAL" envDefault:"2s"`
	Timeout        time.Duration `env:"DEVICE_TIMEOUT" envDefault:"10s"`
}

type MqttConfig struct {
	Host     string `env:"MQTT_HOST"`
	Username string `env:"MQTT_USER"`
	Password string `env:"MQTT_PASS"`
}

type PanelConfig struct {
	Addr         string `env:"PANEL_ADDR" envDefault:"0.0.0.0:8000"`
	PasswordHash string `env:"PANEL_PASSWORD_HASH"`
	TokenSecret  string `env:"PANEL_TOKEN_SECRET"`
}

// FromEnv fills the config from the environment. Callers overlay CLI flag
// values afterwards, so explicit flags still win.
func (c *Config) FromEnv() error {
	if c.DeviceCfg == nil {
		c.DeviceCfg = &DeviceConfig{}
	}
	if c.MqttCfg == nil {
		c.MqttCfg = &MqttConfig{}
	}
	if c.PanelCfg == nil {
		c.PanelCfg = &PanelConfig{}
	}
	for _, target := range []any{c.DeviceCfg, c.MqttCfg, c.PanelCfg} {
		if err := env.Parse(target); err != nil {
			return err
		}
	}
	return nil
}
