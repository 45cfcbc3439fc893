// Package sweeper expires handoffs left unacknowledged past their window.
package sweeper

import (
	"context"
	"log"
	"time"

	"handoff-backend/config"
)

// Expirer moves stale pending handoffs to expired.
type Expirer interface {
	Expire(ctx context.Context, cutoff time.Time) (batchID string, expired int, err error)
}

// Service runs the periodic expiry sweep.
type Service struct {
	cfg   *config.HandoffConfig
	store Expirer
	now   func() time.Time
}

// NewService creates a sweeper over the given store.
func NewService(cfg *config.HandoffConfig, store Expirer) *Service {
	return &Service{cfg: cfg, store: store, now: time.Now}
}

// Run sweeps once immediately and then every sweep interval until ctx ends.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.SweepEnabled {
		log.Println("Expiry sweeper is disabled. Not starting.")
		return
	}
	log.Println("Starting expiry sweeper...")

	s.SweepOnce(ctx)

	timer := time.NewTimer(s.cfg.SweepInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Expiry sweeper shutting down.")
			return
		case <-timer.C:
			s.SweepOnce(ctx)
			timer.Reset(s.cfg.SweepInterval)
		}
	}
}

// SweepOnce expires every handoff pending since before now minus the expiry
// window and reports how many moved.
func (s *Service) SweepOnce(ctx context.Context) int {
	cutoff := s.now().UTC().Add(-s.cfg.ExpireAfter)
	batchID, n, err := s.store.Expire(ctx, cutoff)
	if err != nil {
		log.Printf("Expiry sweep failed: %v", err)
		return 0
	}
	if n > 0 {
		log.Printf("Expired %d handoffs submitted before %s (batch %s)", n, cutoff.Format(time.RFC3339), batchID)
	}
	return n
}
