package update

import (
	"context"
	"net/http"
	"net/http/httptest"
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

type fakeUpdater struct {
	mu       sync.Mutex
	statuses []*model.UpdateSnapshot
	calls    int
	checks   int
	installs int
}

func (f *fakeUpdater) UpdateStatus(ctx context.Context) (*model.UpdateSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	idx := f.calls - 1
	if idx >= len(f.statuses) {
		idx = len(f.statuses) - 1
	}
	return f.statuses[idx], nil
}

func (f *fakeUpdater) TriggerUpdateCheck(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	return nil
}

func (f *fakeUpdater) TriggerUpdateInstall(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.installs++
	return nil
}

func (f *fakeUpdater) statusCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func ptr[T any](v T) *T { return &v }

func statusSnap(st model.UpdateState, available bool, latest string, progress int) *model.UpdateSnapshot {
	return &model.UpdateSnapshot{
		State:         ptr(st),
		Available:     ptr(available),
		Latest:        ptr(latest),
		Progress:      ptr(progress),
		CanAutoUpdate: ptr(true),
	}
}

func newTestTracker(t *testing.T, dev *fakeUpdater, platform model.Platform) (*Tracker, *state.Store) {
	t.Helper()
	original := zap.L()
	zap.ReplaceGlobals(zaptest.NewLogger(t))
	t.Cleanup(func() { zap.ReplaceGlobals(original) })

	store := state.NewStore()
	if platform != "" {
		store.Apply(&model.Snapshot{Device: &model.DeviceSnapshot{Platform: &platform}}, state.OriginEcho)
	}
	tr := New(context.Background(), dev, store)
	tr.initialDelay = 5 * time.Millisecond
	tr.checkDelays = []time.Duration{10 * time.Millisecond, 25 * time.Millisecond}
	tr.installInterval = 10 * time.Millisecond
	return tr, store
}

func TestCheck_PicksUpTerminalStateAndStops(t *testing.T) {
	t.Parallel()
	dev := &fakeUpdater{statuses: []*model.UpdateSnapshot{
		statusSnap(model.UpdateChecking, false, "", 0),
		statusSnap(model.UpdateReady, true, "2.0", 0),
	}}
	tr, store := newTestTracker(t, dev, model.PlatformESP32)

	require.NoError(t, tr.Check(context.Background()))
	time.Sleep(80 * time.Millisecond)

	got := store.Current()
	require.NotNil(t, got.Update)
	assert.True(t, got.Update.Available)
	assert.Equal(t, "2.0", got.Update.Latest)
	assert.Equal(t, model.UpdateReady, got.Update.State)

	// the two scheduled fetches are all the polling a check gets
	assert.Equal(t, 2, dev.statusCalls())
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, dev.statusCalls())
}

func TestCheck_PollsOutliveRequestContext(t *testing.T) {
	t.Parallel()
	dev := &fakeUpdater{statuses: []*model.UpdateSnapshot{
		statusSnap(model.UpdateChecking, false, "", 0),
		statusSnap(model.UpdateReady, true, "2.0", 0),
	}}
	tr, store := newTestTracker(t, dev, model.PlatformESP32)

	// the handler's context is cancelled as soon as it returns; the
	// scheduled fetches must keep running on the daemon context
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, tr.Check(r.Context()))
	}))
	defer srv.Close()

	resp, err := http.Post(srv.URL, "application/json", nil)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 2, dev.statusCalls())
	got := store.Current()
	require.NotNil(t, got.Update)
	assert.True(t, got.Update.Available)
	assert.Equal(t, model.UpdateReady, got.Update.State)
}

func TestInstall_PollingOutlivesRequestContext(t *testing.T) {
	t.Parallel()
	dev := &fakeUpdater{statuses: []*model.UpdateSnapshot{
		statusSnap(model.UpdateDownloading, false, "2.0", 50),
		statusSnap(model.UpdateReady, false, "2.0", 100),
	}}
	tr, store := newTestTracker(t, dev, model.PlatformESP32)
	store.Apply(&model.Snapshot{Update: statusSnap(model.UpdateReady, true, "2.0", 0)}, state.OriginEcho)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, tr.Install(r.Context()))
	}))
	defer srv.Close()

	resp, err := http.Post(srv.URL, "application/json", nil)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	time.Sleep(100 * time.Millisecond)
	assert.GreaterOrEqual(t, dev.statusCalls(), 2)
	require.NotNil(t, store.Current().Update)
	assert.Equal(t, model.UpdateReady, store.Current().Update.State)
	assert.Equal(t, 100, store.Current().Update.Progress)
}

func TestInstall_PollsUntilTerminal(t *testing.T) {
	t.Parallel()
	dev := &fakeUpdater{statuses: []*model.UpdateSnapshot{
		statusSnap(model.UpdateDownloading, false, "2.0", 40),
		statusSnap(model.UpdateDownloading, false, "2.0", 80),
		statusSnap(model.UpdateReady, false, "2.0", 100),
	}}
	tr, store := newTestTracker(t, dev, model.PlatformESP32)
	store.Apply(&model.Snapshot{Update: statusSnap(model.UpdateReady, true, "2.0", 0)}, state.OriginEcho)

	require.NoError(t, tr.Install(context.Background()))
	time.Sleep(100 * time.Millisecond)

	calls := dev.statusCalls()
	assert.GreaterOrEqual(t, calls, 3, "polls until terminal state observed")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, calls, dev.statusCalls(), "polling stops at terminal state")

	got := store.Current()
	require.NotNil(t, got.Update)
	assert.Equal(t, model.UpdateReady, got.Update.State)
	assert.Equal(t, 100, got.Update.Progress)
}

func TestInstall_ErrorIsTerminalToo(t *testing.T) {
	t.Parallel()
	dev := &fakeUpdater{statuses: []*model.UpdateSnapshot{
		statusSnap(model.UpdateDownloading, false, "2.0", 10),
		statusSnap(model.UpdateError, false, "2.0", 10),
	}}
	tr, store := newTestTracker(t, dev, model.PlatformESP32)
	store.Apply(&model.Snapshot{Update: statusSnap(model.UpdateReady, true, "2.0", 0)}, state.OriginEcho)

	require.NoError(t, tr.Install(context.Background()))
	time.Sleep(80 * time.Millisecond)

	calls := dev.statusCalls()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, calls, dev.statusCalls())
	assert.Equal(t, model.UpdateError, store.Current().Update.State)
}

func TestUnsupportedPlatform_NoActionsNoPolling(t *testing.T) {
	t.Parallel()
	dev := &fakeUpdater{statuses: []*model.UpdateSnapshot{statusSnap(model.UpdateReady, false, "", 0)}}
	tr, _ := newTestTracker(t, dev, model.PlatformESP8266)

	assert.ErrorIs(t, tr.Check(context.Background()), ErrUnsupported)
	assert.ErrorIs(t, tr.Install(context.Background()), ErrUnsupported)
	tr.Refresh(context.Background())

	assert.Equal(t, 0, dev.statusCalls())
	assert.Equal(t, 0, dev.checks)
	assert.Equal(t, 0, dev.installs)
}

func TestInstall_RequiresAutoUpdateCapability(t *testing.T) {
	t.Parallel()
	dev := &fakeUpdater{statuses: []*model.UpdateSnapshot{statusSnap(model.UpdateReady, true, "2.0", 0)}}
	tr, store := newTestTracker(t, dev, model.PlatformESP32)

	manual := statusSnap(model.UpdateReady, true, "2.0", 0)
	manual.CanAutoUpdate = ptr(false)
	store.Apply(&model.Snapshot{Update: manual}, state.OriginEcho)

	assert.ErrorIs(t, tr.Install(context.Background()), ErrUnsupported)
	assert.Equal(t, 0, dev.installs)
}

func TestRun_InitialDelayedFetch(t *testing.T) {
	t.Parallel()
	dev := &fakeUpdater{statuses: []*model.UpdateSnapshot{statusSnap(model.UpdateReady, true, "2.0", 0)}}
	tr, store := newTestTracker(t, dev, model.PlatformESP32)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	err := tr.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.GreaterOrEqual(t, dev.statusCalls(), 1, "boot-time check picked up without user action")
	require.NotNil(t, store.Current().Update)
	assert.True(t, store.Current().Update.Available)
}
