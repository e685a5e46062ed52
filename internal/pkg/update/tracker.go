package update

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/anicoll/diffuser-panel/internal/pkg/model"
	"github.com/anicoll/diffuser-panel/internal/pkg/state"
)

// ErrUnsupported is returned for update actions on platforms without the
// firmware update checker.
var ErrUnsupported = errors.New("platform does not support update checks")

type device interface {
	UpdateStatus(ctx context.Context) (*model.UpdateSnapshot, error)
	TriggerUpdateCheck(ctx context.Context) error
	TriggerUpdateInstall(ctx context.Context) error
}

// Tracker drives the firmware update lifecycle purely through polling: the
// device pushes nothing. Check actions are followed by two delayed status
// fetches; install actions by a short fixed-interval poll until the state
// machine returns to a terminal state. The scheduled polling runs on the
// daemon context given to New, not on the context of the request that
// triggered it, so it outlives the HTTP handler.
type Tracker struct {
	ctx    context.Context
	device device
	store  *state.Store
	logger *zap.Logger

	initialDelay    time.Duration
	backgroundEvery time.Duration
	checkDelays     []time.Duration
	installInterval time.Duration

	mu         sync.Mutex
	installing bool
}

func New(ctx context.Context, dev device, store *state.Store) *Tracker {
	return &Tracker{
		ctx:             ctx,
		device:          dev,
		store:           store,
		logger:          zap.L(),
		initialDelay:    3 * time.Second,
		backgroundEvery: 30 * time.Second,
		checkDelays:     []time.Duration{3 * time.Second, 6 * time.Second},
		installInterval: time.Second,
	}
}

// disabled is decided from the platform field once it has been observed.
// An unknown platform keeps polling; the device may simply not have
// answered the first full snapshot yet.
func (t *Tracker) disabled() bool {
	return t.store.Platform() == model.PlatformESP8266
}

// Run performs the initial delayed status fetch (to catch the device's own
// boot-time check already in progress) and the slow background refresh that
// lets the update banner appear without user interaction.
func (t *Tracker) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(t.initialDelay):
	}
	t.refresh(ctx)

	c := cron.New()
	if _, err := c.AddFunc("@every "+t.backgroundEvery.String(), func() {
		t.refresh(ctx)
	}); err != nil {
		return err
	}
	c.Start()
	defer c.Stop()

	<-ctx.Done()
	return ctx.Err()
}

// Check triggers a device-side release check and schedules two delayed
// status fetches to pick up the terminal state without busy-polling.
func (t *Tracker) Check(ctx context.Context) error {
	if t.disabled() {
		return ErrUnsupported
	}
	if err := t.device.TriggerUpdateCheck(ctx); err != nil {
		return err
	}
	for _, delay := range t.checkDelays {
		d := delay
		go func() {
			select {
			case <-t.ctx.Done():
			case <-time.After(d):
				t.refresh(t.ctx)
			}
		}()
	}
	return nil
}

// Install triggers the in-place OTA download and polls status until the
// tracker reaches Ready or Error again. A second Install while one is being
// tracked only keeps the existing polling.
func (t *Tracker) Install(ctx context.Context) error {
	if t.disabled() {
		return ErrUnsupported
	}
	cur := t.store.Current()
	if cur.Update == nil || !cur.Update.CanAutoUpdate {
		return ErrUnsupported
	}
	if err := t.device.TriggerUpdateInstall(ctx); err != nil {
		return err
	}

	t.mu.Lock()
	if t.installing {
		t.mu.Unlock()
		return nil
	}
	t.installing = true
	t.mu.Unlock()

	go t.trackInstall(t.ctx)
	return nil
}

func (t *Tracker) trackInstall(ctx context.Context) {
	defer func() {
		t.mu.Lock()
		t.installing = false
		t.mu.Unlock()
	}()

	ticker := time.NewTicker(t.installInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status := t.refresh(ctx)
			if status != nil && status.State != nil && status.State.Terminal() {
				return
			}
		}
	}
}

// Refresh fetches the update status once, on demand (panel section opened).
func (t *Tracker) Refresh(ctx context.Context) {
	if t.disabled() {
		return
	}
	t.refresh(ctx)
}

func (t *Tracker) refresh(ctx context.Context) *model.UpdateSnapshot {
	if t.disabled() {
		return nil
	}
	status, err := t.device.UpdateStatus(ctx)
	if err != nil {
		t.logger.Warn("update status fetch failed", zap.Error(err))
		return nil
	}
	t.store.Apply(&model.Snapshot{Update: status}, state.OriginEcho)
	return status
}
