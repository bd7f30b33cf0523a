// Package worker runs the in-process maintenance loops.
package worker

import (
	"context"
	"log/slog"
	"time"
)

// CitizenSweeps is the slice of the citizen service the sweeper drives.
type CitizenSweeps interface {
	SweepExpiredPermissions(ctx context.Context) error
	PurgeExpiredIdentities(ctx context.Context) (int, error)
}

// Sweeper periodically revokes expired voting permissions and purges expired
// identity records. Both operations are idempotent, so an overlapping or
// repeated run is harmless.
type Sweeper struct {
	citizens CitizenSweeps
	interval time.Duration
	logger   *slog.Logger
}

func NewSweeper(citizens CitizenSweeps, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{citizens: citizens, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled, sweeping once per interval. The first
// sweep runs immediately so a restart does not delay overdue revocations.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	if err := s.citizens.SweepExpiredPermissions(ctx); err != nil {
		s.logger.Error("permission sweep failed", "error", err)
	}
	purged, err := s.citizens.PurgeExpiredIdentities(ctx)
	if err != nil {
		s.logger.Error("identity purge failed", "error", err)
		return
	}
	if purged > 0 {
		s.logger.Info("purged expired identities", "users", purged)
	}
}
