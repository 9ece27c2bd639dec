// Package sweeper expires overdue pending reservations in the background
// so abandoned checkouts hand their seats back.
package sweeper

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const DefaultInterval = time.Minute

type ReservationSweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

type Sweeper struct {
	capacity ReservationSweeper
	interval time.Duration
}

func New(capacity ReservationSweeper, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Sweeper{
		capacity: capacity,
		interval: interval,
	}
}

// Run blocks until ctx is cancelled, sweeping once per interval. A failed
// sweep is logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	zap.L().Info("reservation sweeper started", zap.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("reservation sweeper stopped")
			return
		case <-ticker.C:
			expired, err := s.capacity.SweepExpired(ctx)
			if err != nil {
				zap.L().Error("reservation sweep failed", zap.Error(err))
				continue
			}
			if expired > 0 {
				zap.L().Info("expired overdue reservations", zap.Int("count", expired))
			}
		}
	}
}
