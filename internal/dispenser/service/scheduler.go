package service

import (
	"context"
	"time"

	"github.com/pillbox/pillbox-backend/pkg/logger"
)

// StockScheduler periodically re-reads every box so the stock gauges stay
// current between reports and low stock is logged even when no controller
// reports.
type StockScheduler struct {
	service  *DispenserService
	interval time.Duration
	logger   *logger.Logger
	cancel   context.CancelFunc
}

// NewStockScheduler creates a new stock scheduler
func NewStockScheduler(svc *DispenserService, interval time.Duration, log *logger.Logger) *StockScheduler {
	return &StockScheduler{
		service:  svc,
		interval: interval,
		logger:   log,
	}
}

// Start runs an initial scan and then one per interval in a background
// goroutine until ctx is cancelled or Stop is called.
func (s *StockScheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	go func() {
		s.logger.Info().Dur("interval", s.interval).Msg("stock scheduler started")

		s.runScan(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("stock scheduler stopped")
				return
			case <-ticker.C:
				s.runScan(ctx)
			}
		}
	}()
}

// Stop stops the scheduler goroutine
func (s *StockScheduler) Stop() {
	if s != nil && s.cancel != nil {
		s.cancel()
	}
}

func (s *StockScheduler) runScan(ctx context.Context) {
	start := time.Now()

	counts, err := s.scan(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("stock scan failed")
		return
	}

	s.logger.Info().
		Dur("duration", time.Since(start)).
		Int("empty", counts[AlertEmpty]).
		Int("critical", counts[AlertCritical]).
		Int("warning", counts[AlertWarning]).
		Msg("stock scan completed")
}

// scan refreshes the gauges and returns the number of alerts per kind
func (s *StockScheduler) scan(ctx context.Context) (map[AlertKind]int, error) {
	dash, err := s.service.Dashboard(ctx)
	if err != nil {
		return nil, err
	}

	counts := make(map[AlertKind]int)
	for _, a := range dash.Alerts {
		counts[a.Kind]++
		s.logger.WithBox(a.BoxID).Warn().
			Str("kind", string(a.Kind)).
			Int("remaining", a.Count).
			Msg(a.Message())
	}
	return counts, nil
}
