package model

type Platform string

const (
	PlatformESP32   Platform = "ESP32"
	PlatformESP8266 Platform = "ESP8266"
)

func (p Platform) String() string {
	return string(p)
}

// SupportsUpdater reports whether the platform runs the firmware update
// checker. The ESP8266 build ships without it.
func (p Platform) SupportsUpdater() bool {
	return p != "" && p != PlatformESP8266
}

type UpdateState int

const (
	UpdateReady UpdateState = iota
	UpdateChecking
	UpdateDownloading
	UpdateError
)

func (u UpdateState) String() string {
	switch u {
	case UpdateReady:
		return "Ready"
	case UpdateChecking:
		return "Checking..."
	case UpdateDownloading:
		return "Downloading..."
	case UpdateError:
		return "Error"
	}
	return "Unknown"
}

// Terminal reports whether the update state machine is at rest, meaning
// progress polling for an in-flight action can stop.
func (u UpdateState) Terminal() bool {
	return u == UpdateReady || u == UpdateError
}

// LogLevel is the single-letter severity marker the device puts on each log
// line.
type LogLevel string

const (
	LogInfo  LogLevel = "I"
	LogWarn  LogLevel = "W"
	LogError LogLevel = "E"
)

func (l LogLevel) String() string {
	return string(l)
}

type RfidAction string

const (
	RfidScan  RfidAction = "scan"
	RfidClear RfidAction = "clear"
)

func (a RfidAction) String() string {
	return string(a)
}

type LedAction string

const (
	LedRed   LedAction = "red"
	LedGreen LedAction = "green"
	LedBlue  LedAction = "blue"
	LedOff   LedAction = "off"
	LedTest  LedAction = "test"
)

func (a LedAction) String() string {
	return string(a)
}

type FanDiagAction string

const (
	FanDiagTest   FanDiagAction = "test"
	FanDiagOn     FanDiagAction = "on"
	FanDiagOff    FanDiagAction = "off"
	FanDiagSetMin FanDiagAction = "setmin"
)

func (a FanDiagAction) String() string {
	return string(a)
}
