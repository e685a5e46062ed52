package state

import "github.com/anicoll/diffuser-panel/internal/pkg/model"

// Merge applies a partial snapshot to the current state, field by field.
// A field present in the snapshot overwrites; an absent field leaves the
// current value alone, so a lite poll never regresses what a full snapshot
// already established.
//
// The hardware-conditional sections (rfid, night, update) are the single
// exception: the full endpoint always reports them when the hardware exists,
// so their absence there means "unsupported on this device" and clears the
// section. On the lite endpoint and on command echoes absence is just a
// smaller payload.
func Merge(cur *model.DeviceState, snap *model.Snapshot, origin Origin) {
	if snap == nil {
		return
	}

	if snap.Wifi != nil {
		mergeWifi(&cur.Wifi, snap.Wifi)
	}
	if snap.Mqtt != nil {
		mergeMqtt(&cur.Mqtt, snap.Mqtt)
	}
	if snap.Fan != nil {
		mergeFan(&cur.Fan, snap.Fan)
	}
	if snap.Device != nil {
		mergeDevice(&cur.Device, snap.Device)
	}
	if snap.Stats != nil {
		next := model.Stats{}
		if cur.Stats != nil {
			next = *cur.Stats
		}
		mergeStats(&next, snap.Stats)
		cur.Stats = &next
	}

	mergeConditional(cur, snap, origin)
}

// Sections are re-allocated on merge rather than mutated through the held
// pointer: copies of DeviceState handed to subscribers share the old
// allocation.
func mergeConditional(cur *model.DeviceState, snap *model.Snapshot, origin Origin) {
	if snap.Rfid != nil {
		next := model.RfidState{}
		if cur.Rfid != nil {
			next = *cur.Rfid
		}
		mergeRfid(&next, snap.Rfid)
		cur.Rfid = &next
	} else if origin == OriginFull {
		cur.Rfid = nil
	}

	if snap.Night != nil {
		next := model.NightState{}
		if cur.Night != nil {
			next = *cur.Night
		}
		mergeNight(&next, snap.Night)
		cur.Night = &next
	} else if origin == OriginFull {
		cur.Night = nil
	}

	if snap.Update != nil {
		next := model.UpdateInfo{}
		if cur.Update != nil {
			next = *cur.Update
		}
		mergeUpdate(&next, snap.Update)
		cur.Update = &next
	} else if origin == OriginFull {
		cur.Update = nil
	}
}

func mergeWifi(cur *model.WifiState, in *model.WifiSnapshot) {
	setBool(&cur.Connected, in.Connected)
	setBool(&cur.ApMode, in.ApMode)
	setString(&cur.Ssid, in.Ssid)
	setString(&cur.IP, in.IP)
	if in.Rssi != nil {
		cur.Rssi = ptr(*in.Rssi)
	}
}

func mergeMqtt(cur *model.MqttState, in *model.MqttSnapshot) {
	setBool(&cur.Connected, in.Connected)
	setString(&cur.Host, in.Host)
	if in.Port != nil {
		cur.Port = ptr(*in.Port)
	}
}

func mergeFan(cur *model.FanState, in *model.FanSnapshot) {
	setBool(&cur.On, in.On)
	if in.Speed != nil {
		cur.Speed = clamp(*in.Speed, 0, 100)
	}
	if in.Rpm != nil {
		cur.Rpm = ptr(*in.Rpm)
	}
	setBool(&cur.TimerActive, in.TimerActive)
	setInt(&cur.RemainingMinutes, in.RemainingMinutes)
	setBool(&cur.IntervalMode, in.IntervalMode)
	if in.IntervalOn != nil {
		cur.IntervalOn = ptr(*in.IntervalOn)
	}
	if in.IntervalOff != nil {
		cur.IntervalOff = ptr(*in.IntervalOff)
	}
}

func mergeDevice(cur *model.DeviceInfo, in *model.DeviceSnapshot) {
	setString(&cur.Mac, in.Mac)
	setString(&cur.Name, in.Name)
	setString(&cur.Version, in.Version)
	if in.Platform != nil && *in.Platform != "" {
		cur.Platform = *in.Platform
	}
}

func mergeRfid(cur *model.RfidState, in *model.RfidSnapshot) {
	setBool(&cur.Connected, in.Connected)
	setBool(&cur.CartridgePresent, in.CartridgePresent)
	setBool(&cur.HasTag, in.HasTag)
	setString(&cur.LastScent, in.LastScent)
	setString(&cur.LastUID, in.LastUID)
	setBool(&cur.Scanning, in.Scanning)
}

func mergeNight(cur *model.NightState, in *model.NightSnapshot) {
	setBool(&cur.Enabled, in.Enabled)
	setString(&cur.Start, in.Start)
	setString(&cur.End, in.End)
	if in.Brightness != nil {
		cur.Brightness = clamp(*in.Brightness, 0, 100)
	}
}

func mergeStats(cur *model.Stats, in *model.StatsSnapshot) {
	if in.TotalRuntimeHours != nil {
		cur.TotalRuntimeHours = *in.TotalRuntimeHours
	}
	setString(&cur.SessionRuntime, in.SessionRuntime)
	if in.CartridgeRuntimeHours != nil {
		cur.CartridgeRuntimeHours = ptr(*in.CartridgeRuntimeHours)
	}
}

func mergeUpdate(cur *model.UpdateInfo, in *model.UpdateSnapshot) {
	if in.State != nil {
		cur.State = *in.State
	}
	setString(&cur.Current, in.Current)
	setString(&cur.Latest, in.Latest)
	setBool(&cur.Available, in.Available)
	if in.Progress != nil {
		cur.Progress = clamp(*in.Progress, 0, 100)
	}
	setBool(&cur.CanAutoUpdate, in.CanAutoUpdate)
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func ptr[T any](v T) *T {
	return &v
}
