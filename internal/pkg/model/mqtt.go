package model

// RegisterDevice is the Home Assistant discovery device block.
type RegisterDevice struct {
	Name         string   `json:"name"`
	Identifiers  []string `json:"identifiers"`
	Model        string   `json:"model"`
	Manufacturer string   `json:"manufacturer"`
	SwVersion    string   `json:"sw_version,omitempty"`
}

// RegisterMessage is published retained to the discovery config topic so the
// diffuser shows up in Home Assistant without manual configuration.
type RegisterMessage struct {
	Tilda      string         `json:"~"`
	Name       string         `json:"name"`
	ID         string         `json:"unique_id"`
	StateTopic string         `json:"state_topic"`
	Device     RegisterDevice `json:"device"`
}

// DeviceModel is the product line name used for discovery and storage keys.
const DeviceModel = "Genie 2.0"

// Device identifies the diffuser towards the publishers.
type Device struct {
	ID      string
	Model   string
	Mac     string
	Name    string
	Version string
}

// SensorReading is one flattened field of the merged state, ready for a
// publisher backend.
type SensorReading struct {
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Value string `json:"value"`
	Unit  string `json:"unit,omitempty"`
	Text  bool   `json:"-"`
}

type (
	TextSensor  string
	TextSensors []TextSensor
)

const (
	ScentTextSensor   TextSensor = "last_scent"
	SessionTextSensor TextSensor = "session_runtime"
	VersionTextSensor TextSensor = "firmware_version"
)

func (t TextSensor) String() string {
	return string(t)
}

func (ts TextSensors) HasSlug(slug string) bool {
	for _, t := range ts {
		if t.String() == slug {
			return true
		}
	}
	return false
}

var KnownTextSensors = TextSensors{
	ScentTextSensor,
	SessionTextSensor,
	VersionTextSensor,
}
