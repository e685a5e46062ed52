package dispatch

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/anicoll/diffuser-panel/internal/pkg/model"
	"github.com/anicoll/diffuser-panel/internal/pkg/state"
)

type mockDevice struct {
	mu       sync.Mutex
	fanSends []string
	fanErr   error

	wifiMsg string
	wifiErr error
}

func (m *mockDevice) SendFan(_ context.Context, key, value string) (*model.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fanSends = append(m.fanSends, key+"="+value)
	if m.fanErr != nil {
		return nil, m.fanErr
	}
	on := true
	speed := 0
	if key == "speed" {
		if v, err := strconv.Atoi(value); err == nil {
			speed = v
		}
	}
	return &model.Snapshot{Fan: &model.FanSnapshot{On: &on, Speed: &speed}}, nil
}

func (m *mockDevice) sends() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.fanSends...)
}

func (m *mockDevice) SaveWifi(_ context.Context, ssid, password string) (string, error) {
	return m.wifiMsg, m.wifiErr
}

func (m *mockDevice) SaveMqtt(_ context.Context, host string, port int, user, password string) (string, error) {
	return "MQTT saved, connecting...", nil
}

func (m *mockDevice) SaveNight(_ context.Context, settings model.NightSettings) error { return nil }

func (m *mockDevice) SetDeviceName(_ context.Context, name string) error { return nil }

func (m *mockDevice) RotatePasswords(_ context.Context, ota, ap string) (string, error) {
	return "Passwords saved. Restart device to apply.", nil
}

func (m *mockDevice) Rfid(_ context.Context, action model.RfidAction) (string, error) {
	return "ok", nil
}

func (m *mockDevice) Reset(_ context.Context) error { return nil }

func newTestDispatcher(t *testing.T, dev *mockDevice) (*Dispatcher, *state.Store) {
	t.Helper()
	original := zap.L()
	zap.ReplaceGlobals(zaptest.NewLogger(t))
	t.Cleanup(func() { zap.ReplaceGlobals(original) })

	store := state.NewStore()
	d := New(dev, store, time.Second)
	t.Cleanup(d.Close)
	return d, store
}

func TestSetSpeed_DebouncesToLastValue(t *testing.T) {
	t.Parallel()
	dev := &mockDevice{}
	d, _ := newTestDispatcher(t, dev)
	d.SetDebounce(50 * time.Millisecond)

	d.SetSpeed(10)
	d.SetSpeed(20)
	d.SetSpeed(30)

	time.Sleep(300 * time.Millisecond)

	assert.Equal(t, []string{"speed=30"}, dev.sends(), "only the last value of the burst is sent")
}

func TestSetSpeed_VisualFiresImmediately(t *testing.T) {
	t.Parallel()
	dev := &mockDevice{fanErr: errors.New("down")}
	d, _ := newTestDispatcher(t, dev)
	d.SetDebounce(time.Hour) // no network send during the test

	var seen []int
	d.SetVisual(func(speed int) { seen = append(seen, speed) })

	d.SetSpeed(10)
	d.SetSpeed(120)
	d.SetSpeed(30)

	assert.Equal(t, []int{10, 100, 30}, seen, "visual feedback is unconditional and clamped")
	assert.Empty(t, dev.sends())
}

func TestSetSpeed_SeparatedBurstsSendTwice(t *testing.T) {
	t.Parallel()
	dev := &mockDevice{}
	d, _ := newTestDispatcher(t, dev)
	d.SetDebounce(30 * time.Millisecond)

	d.SetSpeed(10)
	time.Sleep(120 * time.Millisecond)
	d.SetSpeed(60)
	time.Sleep(120 * time.Millisecond)

	assert.Equal(t, []string{"speed=10", "speed=60"}, dev.sends())
}

func TestSendFan_EchoMergedAsGroundTruth(t *testing.T) {
	t.Parallel()
	dev := &mockDevice{}
	d, store := newTestDispatcher(t, dev)

	d.SetPower(true)

	got := store.Current()
	assert.True(t, got.Fan.On)
	assert.Equal(t, []string{"power=on"}, dev.sends())
}

func TestSendFan_FailureAbsorbed(t *testing.T) {
	t.Parallel()
	dev := &mockDevice{fanErr: errors.New("timeout")}
	d, store := newTestDispatcher(t, dev)

	d.SetTimer(60)

	assert.Equal(t, uint64(0), store.Seq(), "failed command must not touch state")
}

func TestSetIntervalTimes_TwoSingleKeyIntents(t *testing.T) {
	t.Parallel()
	dev := &mockDevice{}
	d, _ := newTestDispatcher(t, dev)

	d.SetIntervalTimes(5, 15)

	assert.Equal(t, []string{"interval_on=5", "interval_off=15"}, dev.sends())
}

func TestExplicitForms_Validation(t *testing.T) {
	t.Parallel()
	dev := &mockDevice{}
	d, _ := newTestDispatcher(t, dev)
	ctx := context.Background()

	_, err := d.SaveWifi(ctx, "", "pw")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = d.SaveMqtt(ctx, "broker", 0, "", "")
	assert.ErrorIs(t, err, ErrValidation)

	err = d.SetDeviceName(ctx, "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = d.RotatePasswords(ctx, "", "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = d.RotatePasswords(ctx, "ota-secret", "")
	require.NoError(t, err)
}

func TestSaveWifi_SurfacesDeviceError(t *testing.T) {
	t.Parallel()
	dev := &mockDevice{wifiErr: errors.New("flash write failed")}
	d, _ := newTestDispatcher(t, dev)

	_, err := d.SaveWifi(context.Background(), "home", "pw")
	assert.EqualError(t, err, "flash write failed")
}
