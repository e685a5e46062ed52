package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/anicoll/diffuser-panel/internal/pkg/model"
	"github.com/anicoll/diffuser-panel/internal/pkg/state"
)

// ErrValidation is returned for form input rejected before any request is
// issued.
var ErrValidation = errors.New("validation failed")

const defaultDebounce = 50 * time.Millisecond

type device interface {
	SendFan(ctx context.Context, key, value string) (*model.Snapshot, error)
	SaveWifi(ctx context.Context, ssid, password string) (string, error)
	SaveMqtt(ctx context.Context, host string, port int, user, password string) (string, error)
	SaveNight(ctx context.Context, settings model.NightSettings) error
	SetDeviceName(ctx context.Context, name string) error
	RotatePasswords(ctx context.Context, otaPassword, apPassword string) (string, error)
	Rfid(ctx context.Context, action model.RfidAction) (string, error)
	Reset(ctx context.Context) error
}

// Dispatcher turns user intents into device commands. Fan intents are
// ambient: failures are logged and the next poll reconciles the truth.
// Explicit form submissions return their error so the caller can
// acknowledge the user.
type Dispatcher struct {
	device  device
	store   *state.Store
	logger  *zap.Logger
	timeout time.Duration

	mu           sync.Mutex
	debounce     time.Duration
	pendingSpeed int
	speedTimer   *time.Timer
	visual       func(speed int)
}

func New(dev device, store *state.Store, timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		device:   dev,
		store:    store,
		logger:   zap.L(),
		timeout:  timeout,
		debounce: defaultDebounce,
		visual:   func(int) {},
	}
}

// SetVisual installs the immediate feedback hook for slider input. It fires
// on every SetSpeed call, before and regardless of network dispatch.
func (d *Dispatcher) SetVisual(fn func(speed int)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.visual = fn
}

// SetDebounce overrides the slider quiet period.
func (d *Dispatcher) SetDebounce(quiet time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.debounce = quiet
}

// Close cancels any pending debounced send.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.speedTimer != nil {
		d.speedTimer.Stop()
		d.speedTimer = nil
	}
}

// SetSpeed records a slider value. The visual hook fires immediately; the
// network send waits for the quiet period and carries only the last value
// of the burst.
func (d *Dispatcher) SetSpeed(speed int) {
	if speed < 0 {
		speed = 0
	}
	if speed > 100 {
		speed = 100
	}

	d.mu.Lock()
	d.pendingSpeed = speed
	visual := d.visual
	if d.speedTimer != nil {
		d.speedTimer.Stop()
	}
	d.speedTimer = time.AfterFunc(d.debounce, d.flushSpeed)
	d.mu.Unlock()

	visual(speed)
}

func (d *Dispatcher) flushSpeed() {
	d.mu.Lock()
	speed := d.pendingSpeed
	d.speedTimer = nil
	d.mu.Unlock()

	d.sendFan("speed", strconv.Itoa(speed))
}

func (d *Dispatcher) SetPower(on bool) {
	value := "off"
	if on {
		value = "on"
	}
	d.sendFan("power", value)
}

// SetTimer selects a timer bucket; 0 cancels the timer and leaves the fan
// running manually.
func (d *Dispatcher) SetTimer(minutes int) {
	d.sendFan("timer", strconv.Itoa(minutes))
}

func (d *Dispatcher) SetIntervalMode(enabled bool) {
	d.sendFan("interval", strconv.FormatBool(enabled))
}

// SetIntervalTimes posts the on/off minute pair as two single-key intents.
func (d *Dispatcher) SetIntervalTimes(onMinutes, offMinutes int) {
	d.sendFan("interval_on", strconv.Itoa(onMinutes))
	d.sendFan("interval_off", strconv.Itoa(offMinutes))
}

// sendFan issues one fan intent and merges the echoed sub-state back as
// ground truth. Failures of any class are absorbed here.
func (d *Dispatcher) sendFan(key, value string) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	echo, err := d.device.SendFan(ctx, key, value)
	if err != nil {
		d.logger.Warn("fan command failed", zap.String("key", key), zap.String("value", value), zap.Error(err))
		return
	}
	d.store.Apply(echo, state.OriginEcho)
}

// SaveWifi validates and submits station credentials; the device's message
// is surfaced to the caller.
func (d *Dispatcher) SaveWifi(ctx context.Context, ssid, password string) (string, error) {
	if ssid == "" {
		return "", fmt.Errorf("%w: ssid is required", ErrValidation)
	}
	return d.device.SaveWifi(ctx, ssid, password)
}

func (d *Dispatcher) SaveMqtt(ctx context.Context, host string, port int, user, password string) (string, error) {
	if host == "" {
		return "", fmt.Errorf("%w: host is required", ErrValidation)
	}
	if port <= 0 || port > 65535 {
		return "", fmt.Errorf("%w: port %d out of range", ErrValidation, port)
	}
	return d.device.SaveMqtt(ctx, host, port, user, password)
}

func (d *Dispatcher) SaveNight(ctx context.Context, settings model.NightSettings) error {
	if settings.Brightness < 0 || settings.Brightness > 100 {
		return fmt.Errorf("%w: brightness %d out of range", ErrValidation, settings.Brightness)
	}
	return d.device.SaveNight(ctx, settings)
}

func (d *Dispatcher) SetDeviceName(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("%w: device name is required", ErrValidation)
	}
	return d.device.SetDeviceName(ctx, name)
}

// RotatePasswords requires at least one of the two passwords, checked
// before the request goes out.
func (d *Dispatcher) RotatePasswords(ctx context.Context, otaPassword, apPassword string) (string, error) {
	if otaPassword == "" && apPassword == "" {
		return "", fmt.Errorf("%w: enter at least one password to change", ErrValidation)
	}
	return d.device.RotatePasswords(ctx, otaPassword, apPassword)
}

func (d *Dispatcher) Rfid(ctx context.Context, action model.RfidAction) (string, error) {
	return d.device.Rfid(ctx, action)
}

func (d *Dispatcher) Reset(ctx context.Context) error {
	return d.device.Reset(ctx)
}
