package bot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/flor3z/redeem-bot/internal/redeem"
)

// Sweeper periodically re-surfaces pending requests the notifier has not
// posted yet (e.g. after a restart) and purges stale cooldown rows. The sweep
// body runs synchronously inside the ticker loop, so a slow cycle delays the
// next one instead of overlapping it.
type Sweeper struct {
	service  *redeem.Service
	notifier *ReviewNotifier
	interval time.Duration

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewSweeper creates a new Sweeper
func NewSweeper(service *redeem.Service, notifier *ReviewNotifier, intervalSeconds int) *Sweeper {
	return &Sweeper{
		service:  service,
		notifier: notifier,
		interval: time.Duration(intervalSeconds) * time.Second,
		stopChan: make(chan struct{}),
	}
}

// Start begins the sweep loop
func (s *Sweeper) Start(ctx context.Context) {
	slog.Info("Starting pending sweeper", "interval", s.interval)

	s.wg.Add(1)
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Initial sweep
	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Sweeper stopped (context cancelled)")
			return
		case <-s.stopChan:
			slog.Info("Sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// Stop signals the sweeper to stop
func (s *Sweeper) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}

// sweep surfaces any pending request without a review message
func (s *Sweeper) sweep(ctx context.Context) {
	pending, err := s.service.ListPending(ctx)
	if err != nil {
		slog.Error("Failed to list pending requests", "error", err)
		return
	}

	if len(pending) == 0 {
		slog.Debug("No pending requests to surface")
	}

	for _, req := range pending {
		select {
		case <-ctx.Done():
			return
		default:
			// OnCreated is a no-op for requests already surfaced.
			s.notifier.OnCreated(ctx, req)
		}
	}

	if err := s.service.PurgeCooldowns(); err != nil {
		slog.Warn("Failed to purge cooldowns", "error", err)
	}
}
