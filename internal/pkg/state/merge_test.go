package state

import (
	"testing"

	"github.com/anicoll/diffuser-panel/internal/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func intPtr(i int) *int { return &i }

func strPtr(s string) *string { return &s }

func platPtr(p model.Platform) *model.Platform { return &p }

func fullSnapshot() *model.Snapshot {
	return &model.Snapshot{
		Wifi: &model.WifiSnapshot{
			Connected: boolPtr(true),
			Ssid:      strPtr("home"),
			IP:        strPtr("192.168.1.40"),
			Rssi:      intPtr(-61),
		},
		Mqtt: &model.MqttSnapshot{
			Connected: boolPtr(true),
			Host:      strPtr("broker.local"),
			Port:      intPtr(1883),
		},
		Fan: &model.FanSnapshot{
			On:               boolPtr(true),
			Speed:            intPtr(50),
			TimerActive:      boolPtr(false),
			RemainingMinutes: intPtr(0),
		},
		Device: &model.DeviceSnapshot{
			Mac:      strPtr("AA:BB:CC:DD:EE:FF"),
			Version:  strPtr("1.4.0"),
			Platform: platPtr(model.PlatformESP32),
		},
		Rfid: &model.RfidSnapshot{
			Connected:        boolPtr(true),
			CartridgePresent: boolPtr(true),
			LastScent:        strPtr("Savage Garden"),
		},
		Night: &model.NightSnapshot{
			Enabled:    boolPtr(true),
			Start:      strPtr("22:00"),
			End:        strPtr("07:00"),
			Brightness: intPtr(30),
		},
		Update: &model.UpdateSnapshot{
			State:   ptr(model.UpdateReady),
			Current: strPtr("1.4.0"),
		},
	}
}

func TestMerge_LiteDoesNotRegressFullFields(t *testing.T) {
	t.Parallel()
	cur := model.DeviceState{}
	Merge(&cur, fullSnapshot(), OriginFull)

	lite := &model.Snapshot{
		Fan: &model.FanSnapshot{
			On:    boolPtr(true),
			Speed: intPtr(55),
		},
	}
	Merge(&cur, lite, OriginLite)

	assert.Equal(t, 55, cur.Fan.Speed)
	assert.False(t, cur.Fan.TimerActive, "timer_active must survive a lite merge that omits it")
	assert.Equal(t, 0, cur.Fan.RemainingMinutes)
	assert.Equal(t, "home", cur.Wifi.Ssid)
	require.NotNil(t, cur.Night, "lite absence must not clear the night section")
	assert.Equal(t, "22:00", cur.Night.Start)
	require.NotNil(t, cur.Rfid)
	assert.Equal(t, "Savage Garden", cur.Rfid.LastScent)
}

func TestMerge_Idempotent(t *testing.T) {
	t.Parallel()
	cur := model.DeviceState{}
	Merge(&cur, fullSnapshot(), OriginFull)

	lite := &model.Snapshot{
		Wifi: &model.WifiSnapshot{Connected: boolPtr(false)},
		Fan:  &model.FanSnapshot{Speed: intPtr(80)},
	}
	Merge(&cur, lite, OriginLite)
	once := cur
	Merge(&cur, lite, OriginLite)

	assert.Equal(t, once.Fan, cur.Fan)
	assert.Equal(t, once.Wifi, cur.Wifi)
	assert.Equal(t, *once.Night, *cur.Night)
	assert.Equal(t, *once.Rfid, *cur.Rfid)
}

func TestMerge_FullAbsenceClearsConditionalSections(t *testing.T) {
	t.Parallel()
	cur := model.DeviceState{}
	Merge(&cur, fullSnapshot(), OriginFull)
	require.NotNil(t, cur.Rfid)
	require.NotNil(t, cur.Night)
	require.NotNil(t, cur.Update)

	// a full snapshot without the sections means the hardware isn't there
	bare := &model.Snapshot{
		Fan: &model.FanSnapshot{On: boolPtr(false)},
	}
	Merge(&cur, bare, OriginFull)

	assert.Nil(t, cur.Rfid)
	assert.Nil(t, cur.Night)
	assert.Nil(t, cur.Update)
	assert.Equal(t, "home", cur.Wifi.Ssid, "non-conditional sections are untouched by absence")
}

func TestMerge_EchoAbsenceKeepsConditionalSections(t *testing.T) {
	t.Parallel()
	cur := model.DeviceState{}
	Merge(&cur, fullSnapshot(), OriginFull)

	echo := &model.Snapshot{
		Fan: &model.FanSnapshot{
			On:    boolPtr(true),
			Speed: intPtr(42),
		},
	}
	Merge(&cur, echo, OriginEcho)

	assert.Equal(t, 42, cur.Fan.Speed)
	assert.NotNil(t, cur.Rfid)
	assert.NotNil(t, cur.Update)
}

func TestMerge_ClampsRanges(t *testing.T) {
	t.Parallel()
	cur := model.DeviceState{}
	Merge(&cur, &model.Snapshot{
		Fan:   &model.FanSnapshot{Speed: intPtr(140)},
		Night: &model.NightSnapshot{Brightness: intPtr(-5)},
		Update: &model.UpdateSnapshot{
			Progress: intPtr(250),
		},
	}, OriginLite)

	assert.Equal(t, 100, cur.Fan.Speed)
	assert.Equal(t, 0, cur.Night.Brightness)
	assert.Equal(t, 100, cur.Update.Progress)
}

func TestMerge_PlatformObservedOnce(t *testing.T) {
	t.Parallel()
	cur := model.DeviceState{}
	Merge(&cur, fullSnapshot(), OriginFull)
	assert.Equal(t, model.PlatformESP32, cur.Device.Platform)

	Merge(&cur, &model.Snapshot{Device: &model.DeviceSnapshot{Name: strPtr("hallway")}}, OriginFull)
	assert.Equal(t, model.PlatformESP32, cur.Device.Platform)
	assert.Equal(t, "hallway", cur.Device.Name)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", cur.Device.Mac)
}

func TestStore_ApplyNotifiesSubscribers(t *testing.T) {
	t.Parallel()
	store := NewStore()
	ch, cancel := store.Subscribe()
	defer cancel()

	store.Apply(fullSnapshot(), OriginFull)

	got := <-ch
	assert.Equal(t, 50, got.Fan.Speed)
	assert.Equal(t, uint64(1), store.Seq())

	// merges replace conditional sections, so held copies must not change
	store.Apply(&model.Snapshot{Rfid: &model.RfidSnapshot{CartridgePresent: boolPtr(false)}}, OriginLite)
	assert.True(t, got.Rfid.CartridgePresent)
}

func TestStore_SlowSubscriberGetsNewest(t *testing.T) {
	t.Parallel()
	store := NewStore()
	ch, cancel := store.Subscribe()
	defer cancel()

	store.Apply(&model.Snapshot{Fan: &model.FanSnapshot{Speed: intPtr(10)}}, OriginLite)
	store.Apply(&model.Snapshot{Fan: &model.FanSnapshot{Speed: intPtr(20)}}, OriginLite)
	store.Apply(&model.Snapshot{Fan: &model.FanSnapshot{Speed: intPtr(30)}}, OriginLite)

	got := <-ch
	assert.Equal(t, 30, got.Fan.Speed, "an unread subscriber slot holds the newest state")
}
