package snapshot

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Collector assembles the current world state into a snapshot.
type Collector func(ctx context.Context) (*Snapshot, error)

// Scheduler takes periodic captures and prunes old ones.
type Scheduler struct {
	service  *Service
	collect  Collector
	interval time.Duration
	keep     int
	logger   *zap.SugaredLogger
}

func NewScheduler(service *Service, collect Collector, interval time.Duration, keep int, logger *zap.SugaredLogger) *Scheduler {
	if keep < 1 {
		keep = 5
	}
	return &Scheduler{
		service:  service,
		collect:  collect,
		interval: interval,
		keep:     keep,
		logger:   logger,
	}
}

// Run blocks until the context is cancelled. Capture failures are logged
// and retried on the next tick.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.takeOnce(ctx)
		}
	}
}

func (s *Scheduler) takeOnce(ctx context.Context) {
	snap, err := s.collect(ctx)
	if err != nil {
		s.logger.Warnw("snapshot collection failed", "error", err)
		return
	}

	name, err := s.service.Take(ctx, snap)
	if err != nil {
		s.logger.Warnw("snapshot capture failed", "error", err)
		return
	}
	s.logger.Infow("snapshot captured", "name", name)

	if err := s.service.Prune(ctx, s.keep); err != nil {
		s.logger.Warnw("snapshot prune failed", "error", err)
	}
}
