package model

import "encoding/json"

// DeviceState is the merged client-side view of the diffuser. Sections that
// depend on hardware support (rfid, night, update, stats) are pointers and
// stay nil until a snapshot reports them.
type DeviceState struct {
	Wifi   WifiState   `json:"wifi"`
	Mqtt   MqttState   `json:"mqtt"`
	Fan    FanState    `json:"fan"`
	Device DeviceInfo  `json:"device"`
	Rfid   *RfidState  `json:"rfid,omitempty"`
	Night  *NightState `json:"night,omitempty"`
	Stats  *Stats      `json:"stats,omitempty"`
	Update *UpdateInfo `json:"update,omitempty"`
}

type WifiState struct {
	Connected bool   `json:"connected"`
	ApMode    bool   `json:"ap_mode"`
	Ssid      string `json:"ssid,omitempty"`
	IP        string `json:"ip,omitempty"`
	Rssi      *int   `json:"rssi,omitempty"`
}

// LinkUp mirrors the dashboard wifi dot: lit when associated or when the
// device is serving its own AP.
func (w WifiState) LinkUp() bool {
	return w.Connected || w.ApMode
}

type MqttState struct {
	Connected bool   `json:"connected"`
	Host      string `json:"host,omitempty"`
	Port      *int   `json:"port,omitempty"`
}

type FanState struct {
	On               bool `json:"on"`
	Speed            int  `json:"speed"`
	Rpm              *int `json:"rpm,omitempty"`
	TimerActive      bool `json:"timer_active"`
	RemainingMinutes int  `json:"remaining_minutes"`
	IntervalMode     bool `json:"interval_mode"`
	IntervalOn       *int `json:"interval_on,omitempty"`
	IntervalOff      *int `json:"interval_off,omitempty"`
}

type DeviceInfo struct {
	Mac      string   `json:"mac,omitempty"`
	Name     string   `json:"name,omitempty"`
	Version  string   `json:"version,omitempty"`
	Platform Platform `json:"platform,omitempty"`
}

type RfidState struct {
	Connected        bool   `json:"connected"`
	CartridgePresent bool   `json:"cartridge_present"`
	HasTag           bool   `json:"has_tag"`
	LastScent        string `json:"last_scent,omitempty"`
	LastUID          string `json:"last_uid,omitempty"`
	Scanning         bool   `json:"scanning"`
}

type NightState struct {
	Enabled    bool   `json:"enabled"`
	Start      string `json:"start"`
	End        string `json:"end"`
	Brightness int    `json:"brightness"`
}

type Stats struct {
	TotalRuntimeHours     float64  `json:"total_runtime"`
	SessionRuntime        string   `json:"session_runtime"`
	CartridgeRuntimeHours *float64 `json:"cartridge_runtime,omitempty"`
}

type UpdateInfo struct {
	State         UpdateState `json:"state"`
	Current       string      `json:"current"`
	Latest        string      `json:"latest"`
	Available     bool        `json:"available"`
	Progress      int         `json:"progress"`
	CanAutoUpdate bool        `json:"can_auto_update"`
}

// Snapshot is one /api/status or /api/status/lite response. Every field is
// optional on the wire; the merger only applies what is present.
type Snapshot struct {
	Wifi   *WifiSnapshot   `json:"wifi,omitempty"`
	Mqtt   *MqttSnapshot   `json:"mqtt,omitempty"`
	Fan    *FanSnapshot    `json:"fan,omitempty"`
	Device *DeviceSnapshot `json:"device,omitempty"`
	Rfid   *RfidSnapshot   `json:"rfid,omitempty"`
	Night  *NightSnapshot  `json:"night,omitempty"`
	Stats  *StatsSnapshot  `json:"stats,omitempty"`
	Update *UpdateSnapshot `json:"update,omitempty"`
}

type WifiSnapshot struct {
	Connected *bool   `json:"connected,omitempty"`
	ApMode    *bool   `json:"ap_mode,omitempty"`
	Ssid      *string `json:"ssid,omitempty"`
	IP        *string `json:"ip,omitempty"`
	Rssi      *int    `json:"rssi,omitempty"`
}

type MqttSnapshot struct {
	Connected *bool   `json:"connected,omitempty"`
	Host      *string `json:"host,omitempty"`
	Port      *int    `json:"port,omitempty"`
}

type FanSnapshot struct {
	On               *bool `json:"on,omitempty"`
	Speed            *int  `json:"speed,omitempty"`
	Rpm              *int  `json:"rpm,omitempty"`
	TimerActive      *bool `json:"timer_active,omitempty"`
	RemainingMinutes *int  `json:"remaining_minutes,omitempty"`
	IntervalMode     *bool `json:"interval_mode,omitempty"`
	IntervalOn       *int  `json:"interval_on,omitempty"`
	IntervalOff      *int  `json:"interval_off,omitempty"`
}

type DeviceSnapshot struct {
	Mac      *string   `json:"mac,omitempty"`
	Name     *string   `json:"name,omitempty"`
	Version  *string   `json:"version,omitempty"`
	Platform *Platform `json:"platform,omitempty"`
}

type RfidSnapshot struct {
	Connected        *bool   `json:"connected,omitempty"`
	CartridgePresent *bool   `json:"cartridge_present,omitempty"`
	HasTag           *bool   `json:"has_tag,omitempty"`
	LastScent        *string `json:"last_scent,omitempty"`
	LastUID          *string `json:"last_uid,omitempty"`
	Scanning         *bool   `json:"scanning,omitempty"`
}

type NightSnapshot struct {
	Enabled    *bool   `json:"enabled,omitempty"`
	Start      *string `json:"start,omitempty"`
	End        *string `json:"end,omitempty"`
	Brightness *int    `json:"brightness,omitempty"`
}

type StatsSnapshot struct {
	TotalRuntimeHours     *float64 `json:"total_runtime,omitempty"`
	SessionRuntime        *string  `json:"session_runtime,omitempty"`
	CartridgeRuntimeHours *float64 `json:"cartridge_runtime,omitempty"`
}

type UpdateSnapshot struct {
	State         *UpdateState `json:"state,omitempty"`
	Current       *string      `json:"current,omitempty"`
	Latest        *string      `json:"latest,omitempty"`
	Available     *bool        `json:"available,omitempty"`
	Progress      *int         `json:"progress,omitempty"`
	CanAutoUpdate *bool        `json:"can_auto_update,omitempty"`
}

// NightSettings is the outbound form for POST /api/night.
type NightSettings struct {
	Enabled    bool
	Start      string
	End        string
	Brightness int
}

// PasswordStatus is the GET /api/passwords response.
type PasswordStatus struct {
	Success    bool   `json:"success"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
	OtaCustom  bool   `json:"ota_custom"`
	OtaDefault bool   `json:"ota_default"`
	ApCustom   bool   `json:"ap_custom"`
	ApDefault  bool   `json:"ap_default"`
}

// LogEntry is one element of the GET /api/logs response. The device reports
// epoch seconds only once NTP has synced; before that only uptime is usable.
type LogEntry struct {
	Level    LogLevel `json:"l"`
	Message  string   `json:"m"`
	UptimeMs int64    `json:"u"`
	Epoch    int64    `json:"e"`
}

// UnmarshalJSON accepts "t" as the uptime key when "u" is absent; older
// firmware builds emitted the timestamp under that name.
func (e *LogEntry) UnmarshalJSON(data []byte) error {
	var raw struct {
		Level    LogLevel `json:"l"`
		Message  string   `json:"m"`
		UptimeMs *int64   `json:"u"`
		LegacyMs *int64   `json:"t"`
		Epoch    int64    `json:"e"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Level = raw.Level
	e.Message = raw.Message
	e.Epoch = raw.Epoch
	switch {
	case raw.UptimeMs != nil:
		e.UptimeMs = *raw.UptimeMs
	case raw.LegacyMs != nil:
		e.UptimeMs = *raw.LegacyMs
	default:
		e.UptimeMs = 0
	}
	return nil
}

type Diagnostic struct {
	Pins *PinMap        `json:"pins,omitempty"`
	Led  *LedDiagnostic `json:"led,omitempty"`
	Fan  *FanDiagnostic `json:"fan,omitempty"`
}

type PinMap struct {
	Platform string `json:"platform"`
	FanPwm   int    `json:"fan_pwm"`
	FanTacho int    `json:"fan_tacho"`
	Led      int    `json:"led"`
	BtnFront int    `json:"btn_front"`
	BtnRear  int    `json:"btn_rear"`
}

type LedDiagnostic struct {
	Connected bool   `json:"connected"`
	Mode      string `json:"mode"`
}

type FanDiagnostic struct {
	Connected   bool `json:"connected"`
	On          bool `json:"on"`
	Speed       int  `json:"speed"`
	Rpm         int  `json:"rpm"`
	Pwm         *int `json:"pwm,omitempty"`
	Invert      bool `json:"invert"`
	MinPwm      *int `json:"min_pwm,omitempty"`
	Calibrating bool `json:"calibrating"`
}

type ButtonStates struct {
	Front ButtonState `json:"front"`
	Rear  ButtonState `json:"rear"`
}

type ButtonState struct {
	Pressed bool `json:"pressed"`
}

type FanDiagResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	MinPwm  int    `json:"min_pwm"`
}
