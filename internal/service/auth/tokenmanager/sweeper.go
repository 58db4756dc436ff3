package tokenmanager

import (
	"context"
	"time"

	"github.com/nkiryanov/authbase/internal/logger"
	"github.com/nkiryanov/authbase/internal/repository"
)

const defaultSweepInterval = time.Hour

// Sweeper periodically deletes expired token records
// Deleting runs alongside normal reads and writes, nothing is locked exclusively
type Sweeper struct {
	interval time.Duration
	tokens   repository.TokenRepo
	logger   logger.Logger
	now      func() time.Time
}

func NewSweeper(interval time.Duration, tokens repository.TokenRepo, l logger.Logger) *Sweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}

	return &Sweeper{
		interval: interval,
		tokens:   tokens,
		logger:   l,
		now:      time.Now,
	}
}

// Sweep once
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	return s.tokens.DeleteExpired(ctx, s.now())
}

// Run sweeping until context is cancelled
// Returned channel is closed when sweeper stopped
func (s *Sweeper) Run(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})
	s.logger.Debug("Starting token sweeper", "interval", s.interval)

	go func() {
		defer close(idleStopped)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Debug("Token sweeper stopped by context")
				return

			case <-ticker.C:
				deleted, err := s.Sweep(ctx)
				if err != nil {
					s.logger.Error("Failed to delete expired tokens", "error", err)
					continue
				}
				s.logger.Debug("Expired tokens deleted", "count", deleted)
			}
		}
	}()

	return idleStopped
}
