package poller

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/anicoll/diffuser-panel/internal/pkg/model"
	"github.com/anicoll/diffuser-panel/internal/pkg/state"
)

type statusFetcher interface {
	Status(ctx context.Context) (*model.Snapshot, error)
	StatusLite(ctx context.Context) (*model.Snapshot, error)
}

// Poller owns the repeating lite cycle against the device. The full
// snapshot is fetched once at startup and otherwise only on demand, to keep
// load off the constrained device.
//
// Each cycle is serialized: the next tick is not taken before the previous
// response has been applied or failed, so a slow poll can never overwrite a
// later one's data.
type Poller struct {
	device   statusFetcher
	store    *state.Store
	interval time.Duration
	logger   *zap.Logger
}

func New(device statusFetcher, store *state.Store, interval time.Duration) *Poller {
	return &Poller{
		device:   device,
		store:    store,
		interval: interval,
		logger:   zap.L(),
	}
}

// Run blocks until ctx is done. A failed poll is logged and skipped; it
// never clears known state and never stops the cycle.
func (p *Poller) Run(ctx context.Context) error {
	if err := p.RefreshFull(ctx); err != nil {
		p.logger.Warn("initial full snapshot failed", zap.Error(err))
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.pollLite(ctx)
		}
	}
}

func (p *Poller) pollLite(ctx context.Context) {
	snap, err := p.device.StatusLite(ctx)
	if err != nil {
		p.logger.Warn("lite poll failed, skipping tick", zap.Error(err))
		return
	}
	p.store.Apply(snap, state.OriginLite)
}

// RefreshFull fetches and applies a full snapshot. Used at startup and when
// an operator explicitly reloads the panel.
func (p *Poller) RefreshFull(ctx context.Context) error {
	snap, err := p.device.Status(ctx)
	if err != nil {
		return err
	}
	p.store.Apply(snap, state.OriginFull)
	return nil
}
