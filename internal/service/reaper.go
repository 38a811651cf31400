package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// HoldReleaser releases expired holds; implemented by LedgerServiceImpl.
type HoldReleaser interface {
	ReleaseExpiredHolds(ctx context.Context) (int, error)
}

// OrderSyncer settles pending deposit orders; implemented by DepositOrderService.
type OrderSyncer interface {
	SyncPending(ctx context.Context) (int, error)
}

// Reaper runs a periodic sweep: expired holds back to cash, or pending
// deposit orders against their provider.
type Reaper struct {
	name     string
	sweep    func(ctx context.Context) (int, error)
	interval time.Duration
	log      zerolog.Logger
}

// NewReaper creates a hold reaper that runs every interval.
func NewReaper(releaser HoldReleaser, interval time.Duration, log zerolog.Logger) *Reaper {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Reaper{name: "hold reaper", sweep: releaser.ReleaseExpiredHolds, interval: interval, log: log}
}

// NewOrderSyncer creates a sweep that polls pending deposit orders.
func NewOrderSyncer(syncer OrderSyncer, interval time.Duration, log zerolog.Logger) *Reaper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reaper{name: "deposit order sync", sweep: syncer.SyncPending, interval: interval, log: log}
}

// RunOnce performs a single sweep.
func (r *Reaper) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()
	n, err := r.sweep(ctx)
	if err != nil {
		r.log.Error().Err(err).Int("processed", n).Msg(r.name + " sweep failed")
		return n, err
	}
	r.log.Info().Int("processed", n).Dur("took", time.Since(start)).Msg(r.name + " sweep finished")
	return n, nil
}

// Start runs the sweep loop in the background. The returned channel closes
// once ctx is done and any sweep in flight has returned.
func (r *Reaper) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx)
	}()
	return done
}

// Run sweeps immediately and then on every tick until ctx is done.
// Sweep errors are logged and retried on the next tick.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.RunOnce(ctx) //nolint:errcheck
	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg(r.name + " stopped")
			return
		case <-ticker.C:
			r.RunOnce(ctx) //nolint:errcheck
		}
	}
}
