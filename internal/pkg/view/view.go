package view

import (
	"fmt"
	"math"

	"github.com/samber/lo"

	"github.com/anicoll/diffuser-panel/internal/pkg/model"
)

// DialRadius matches the SVG gauge the dashboard draws around the speed dial.
const DialRadius = 54.0

// Circumference is the full stroke length of the speed gauge.
var Circumference = 2 * math.Pi * DialRadius

// TimerBuckets are the selectable timer presets in minutes. Bucket 0 is the
// "no timer" button, lit when the fan runs manually.
var TimerBuckets = []int{30, 60, 120, 240}

// DotState is the tri-state of a status indicator.
type DotState string

const (
	DotOff      DotState = "off"
	DotOn       DotState = "on"
	DotScanning DotState = "scanning"
)

// Model is the derived, presentation-ready projection of the merged device
// state. It holds no state of its own; Compute is pure given the input.
type Model struct {
	WifiDot DotState `json:"wifi_dot"`
	MqttDot DotState `json:"mqtt_dot"`

	FanOn          bool    `json:"fan_on"`
	Speed          int     `json:"speed"`
	DialOffset     float64 `json:"dial_offset"`
	Rpm            int     `json:"rpm"`
	ActiveBucket   int     `json:"active_bucket"`
	BucketSelected bool    `json:"bucket_selected"`
	RemainingLabel string  `json:"remaining_label"`
	IntervalMode   bool    `json:"interval_mode"`

	ShowRfid  bool     `json:"show_rfid"`
	RfidDot   DotState `json:"rfid_dot"`
	ScentName string   `json:"scent_name"`
	ScentUID  string   `json:"scent_uid"`

	ShowNight bool `json:"show_night"`

	ShowUpdate      bool   `json:"show_update"`
	UpdateStateText string `json:"update_state_text"`
	ShowProgress    bool   `json:"show_progress"`
	Progress        int    `json:"progress"`
	ShowInstall     bool   `json:"show_install"`
	ShowManualLink  bool   `json:"show_manual_link"`
	ShowBanner      bool   `json:"show_banner"`
	BannerVersion   string `json:"banner_version"`
}

// DialOffset converts a fan speed into the gauge stroke offset. Full speed
// leaves no offset, zero speed leaves the whole circumference.
func DialOffset(speed int) float64 {
	return Circumference - float64(speed)/100*Circumference
}

// ActiveTimerBucket picks the single highlighted timer button. With an
// active timer it is the smallest bucket whose 30 minute band contains the
// remaining time; without one the 0 bucket lights up while the fan is on.
// Remaining time above every band leaves nothing selected.
func ActiveTimerBucket(fan model.FanState) (int, bool) {
	if fan.TimerActive {
		return lo.Find(TimerBuckets, func(t int) bool {
			return fan.RemainingMinutes <= t && fan.RemainingMinutes > t-30
		})
	}
	if fan.On {
		return 0, true
	}
	return 0, false
}

// RemainingLabel renders the countdown text under the dial.
func RemainingLabel(fan model.FanState) string {
	if !fan.TimerActive {
		return ""
	}
	return fmt.Sprintf("%d min remaining", fan.RemainingMinutes)
}

// RfidDot derives the cartridge indicator: green when a cartridge sits on
// the reader, pulsing orange while the reader waits for one, off when the
// reader itself is missing.
func RfidDot(rfid *model.RfidState) DotState {
	switch {
	case rfid == nil:
		return DotOff
	case rfid.CartridgePresent:
		return DotOn
	case rfid.Connected:
		return DotScanning
	default:
		return DotOff
	}
}

func rfidText(rfid *model.RfidState) (name, uid string) {
	switch {
	case rfid.CartridgePresent && rfid.LastScent != "":
		return rfid.LastScent, "UID: " + rfid.LastUID
	case rfid.HasTag && rfid.LastScent != "":
		return rfid.LastScent + " (removed)", "Place cartridge back on reader"
	case rfid.Connected:
		return "No cartridge detected", "Place a Rituals cartridge on the reader"
	default:
		return "RFID reader not connected", "Check wiring"
	}
}

// UpdateStateText is the status line of the update section; the "update
// available" callout wins over the raw state.
func UpdateStateText(u *model.UpdateInfo) string {
	if u == nil {
		return ""
	}
	if u.Available {
		return "Update available"
	}
	return u.State.String()
}

// Compute projects the merged state into the view model. bannerDismissed is
// the session-local dismissal flag owned by the caller.
func Compute(st model.DeviceState, bannerDismissed bool) Model {
	m := Model{
		WifiDot:      lo.Ternary(st.Wifi.LinkUp(), DotOn, DotOff),
		MqttDot:      lo.Ternary(st.Mqtt.Connected, DotOn, DotOff),
		FanOn:        st.Fan.On,
		Speed:        st.Fan.Speed,
		DialOffset:   DialOffset(st.Fan.Speed),
		IntervalMode: st.Fan.IntervalMode,
	}
	if st.Fan.Rpm != nil {
		m.Rpm = *st.Fan.Rpm
	}
	m.ActiveBucket, m.BucketSelected = ActiveTimerBucket(st.Fan)
	m.RemainingLabel = RemainingLabel(st.Fan)

	if st.Rfid != nil {
		m.ShowRfid = true
		m.RfidDot = RfidDot(st.Rfid)
		m.ScentName, m.ScentUID = rfidText(st.Rfid)
	} else {
		m.RfidDot = DotOff
	}

	m.ShowNight = st.Night != nil

	if st.Update != nil && st.Device.Platform.SupportsUpdater() {
		u := st.Update
		m.ShowUpdate = true
		m.UpdateStateText = UpdateStateText(u)
		m.Progress = u.Progress
		m.ShowProgress = u.Progress > 0 && u.Progress < 100
		m.ShowInstall = u.CanAutoUpdate && u.Available
		m.ShowManualLink = !u.CanAutoUpdate && u.Available
		if u.Available && !bannerDismissed {
			m.ShowBanner = true
			m.BannerVersion = "v" + u.Latest
		}
	}

	return m
}
