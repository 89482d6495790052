package ingest

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Scheduler runs RefreshAll on a fixed interval.
type Scheduler struct {
	refresher *Refresher
	interval  time.Duration
	onStartup bool
	logger    *zap.Logger
	ticker    *time.Ticker
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

func NewScheduler(refresher *Refresher, interval time.Duration, onStartup bool, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		refresher: refresher,
		interval:  interval,
		onStartup: onStartup,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	s.ticker = time.NewTicker(s.interval)

	s.logger.Info("Refresh scheduler started",
		zap.Duration("interval", s.interval),
		zap.Bool("on_startup", s.onStartup))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if s.onStartup {
			s.run(ctx)
		}

		for {
			select {
			case <-s.ticker.C:
				s.run(ctx)
			case <-s.stopCh:
				s.logger.Info("Refresh scheduler stopped")
				return
			case <-ctx.Done():
				s.logger.Info("Refresh scheduler context cancelled")
				return
			}
		}
	}()
}

// Stop halts the ticker and waits for an in-flight run to return.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
	})
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	report, err := s.refresher.RefreshAll(ctx)
	if err != nil {
		s.logger.Error("Scheduled refresh failed", zap.Error(err))
		return
	}
	if report.Failed > 0 {
		s.logger.Warn("Scheduled refresh finished with failures",
			zap.String("run", report.RunID),
			zap.Int("failed", report.Failed))
	}
}
