// Package sweeper resolves purchases stranded in initiated or pending,
// typically after transport failures or process crashes between the provider
// call and settlement. It requeries the provider and settles each purchase
// through the orchestrator's shared outcome path, so the refund and
// finalize invariants hold identically here.
package sweeper

import (
	"context"
	"time"

	"quicksurf/internal/models"
	"quicksurf/internal/repositories"
	"quicksurf/internal/services/purchase"

	"go.uber.org/zap"
)

// Config tunes one sweep.
type Config struct {
	// MinAge keeps the sweeper off purchases the live flow is still
	// actively settling.
	MinAge   time.Duration
	MaxBatch int
	Interval time.Duration
}

func DefaultConfig() Config {
	return Config{
		MinAge:   2 * time.Minute,
		MaxBatch: 100,
		Interval: 5 * time.Minute,
	}
}

// Stats summarizes one sweep.
type Stats struct {
	Scanned    int
	Successful int
	Refunded   int
	StillOpen  int
	Errors     int
}

type Service struct {
	purchases    repositories.PurchaseRepository
	orchestrator *purchase.Service
	logger       *zap.Logger
	cfg          Config
}

func NewService(purchases repositories.PurchaseRepository, orchestrator *purchase.Service, logger *zap.Logger, cfg Config) *Service {
	if purchases == nil {
		panic("purchase repository is required")
	}
	if orchestrator == nil {
		panic("purchase orchestrator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MinAge == 0 {
		cfg.MinAge = 2 * time.Minute
	}
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = 100
	}
	if cfg.Interval == 0 {
		cfg.Interval = 5 * time.Minute
	}
	return &Service{purchases: purchases, orchestrator: orchestrator, logger: logger, cfg: cfg}
}

// RunOnce sweeps one batch, oldest first. A failure on one purchase is
// reported and skipped; it never aborts the batch.
func (s *Service) RunOnce(ctx context.Context) (Stats, error) {
	var stats Stats

	cutoff := time.Now().Add(-s.cfg.MinAge)
	open, err := s.purchases.ListOpenBefore(ctx, cutoff, s.cfg.MaxBatch)
	if err != nil {
		return stats, err
	}
	stats.Scanned = len(open)

	for i := range open {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		p := &open[i]

		settled, err := s.orchestrator.Requery(ctx, 0, p.ClientReference)
		if err != nil {
			stats.Errors++
			s.logger.Error("sweep item failed",
				zap.String("client_reference", p.ClientReference),
				zap.Error(err),
			)
			continue
		}

		switch {
		case settled.Status != p.Status && settled.Status == models.PurchaseStatusSuccessful:
			stats.Successful++
		case settled.Status != p.Status && settled.Status == models.PurchaseStatusFailed:
			stats.Refunded++
		default:
			stats.StillOpen++
		}
	}

	s.logger.Info("sweep complete",
		zap.Int("scanned", stats.Scanned),
		zap.Int("successful", stats.Successful),
		zap.Int("refunded", stats.Refunded),
		zap.Int("still_open", stats.StillOpen),
		zap.Int("errors", stats.Errors),
	)
	return stats, nil
}

// Run sweeps immediately, then on every tick until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	if _, err := s.RunOnce(ctx); err != nil && ctx.Err() != nil {
		return ctx.Err()
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logger.Error("sweep failed", zap.Error(err))
			}
		}
	}
}
