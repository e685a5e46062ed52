package poller

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/anicoll/diffuser-panel/internal/pkg/model"
)

type buttonSource interface {
	ButtonStates(ctx context.Context) (*model.ButtonStates, error)
}

// ButtonPoller polls the physical button states, but only while the
// diagnostics panel is open. Closing the panel stops the cycle synchronously;
// a request already in flight may finish, but its result is discarded.
type ButtonPoller struct {
	device   buttonSource
	interval time.Duration
	apply    func(model.ButtonStates)
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	gen    int
}

func NewButtonPoller(device buttonSource, interval time.Duration, apply func(model.ButtonStates)) *ButtonPoller {
	return &ButtonPoller{
		device:   device,
		interval: interval,
		apply:    apply,
		logger:   zap.L(),
	}
}

// Open starts the cycle. Opening an already-open poller is a no-op.
func (b *ButtonPoller) Open(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.gen++
	go b.loop(ctx, b.gen)
}

// Close stops the cycle. No apply fires after Close returns, even for a
// response that was already on the wire.
func (b *ButtonPoller) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel == nil {
		return
	}
	b.cancel()
	b.cancel = nil
}

// IsOpen reports whether the cycle is currently running.
func (b *ButtonPoller) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cancel != nil
}

func (b *ButtonPoller) loop(ctx context.Context, gen int) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.poll(ctx, gen)
		}
	}
}

func (b *ButtonPoller) poll(ctx context.Context, gen int) {
	buttons, err := b.device.ButtonStates(ctx)
	if err != nil {
		b.logger.Debug("button poll failed, skipping tick", zap.Error(err))
		return
	}

	// the panel may have closed (or reopened) while the request was in
	// flight; the apply is guarded on the current state, not the captured
	// timer handle
	b.mu.Lock()
	stale := b.cancel == nil || b.gen != gen
	b.mu.Unlock()
	if stale {
		return
	}
	b.apply(*buttons)
}
