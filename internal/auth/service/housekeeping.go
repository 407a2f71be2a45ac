package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/arvicollection/authcore/internal/auth/notify"
	"github.com/arvicollection/authcore/internal/auth/store"
)

// DefaultRetention is how long expired records are kept before housekeeping
// deletes them.
const DefaultRetention = 24 * time.Hour

// HousekeepingService periodically cleans up expired records to prevent
// unbounded growth of verification codes, MFA challenges and password reset
// requests.
type HousekeepingService struct {
	Store     store.Store
	Logger    *slog.Logger
	Interval  time.Duration
	Retention time.Duration
	Now       func() time.Time

	// Limiter is optional; per-destination send limiters idle for a whole
	// interval are dropped on each run.
	Limiter *notify.RateLimiter

	// Internal channels for lifecycle management
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a new housekeeping service with the given interval.
// If interval is 0 or negative, defaults to 1 hour; retention defaults to
// DefaultRetention.
func NewHousekeepingService(store store.Store, logger *slog.Logger, interval, retention time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}
	if retention <= 0 {
		retention = DefaultRetention
	}

	return &HousekeepingService{
		Store:     store,
		Logger:    logger,
		Interval:  interval,
		Retention: retention,
		Now:       time.Now,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start begins the background worker that periodically runs cleanup.
// This is non-blocking and should be called after the store is ready.
// Call Stop() to gracefully shutdown the worker.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval, "retention", s.Retention)
}

// Stop gracefully shuts down the background worker.
// Blocks until the worker has finished any in-progress cleanup.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

// run is the main background worker loop.
func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run cleanup immediately on startup
	s.Cleanup(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup deletes records that expired more than Retention ago and returns
// how many were removed. Each deletion is independent - failures in one
// won't stop the others.
func (s *HousekeepingService) Cleanup(ctx context.Context) int {
	cutoff := s.Now().UTC().Add(-s.Retention)
	s.Logger.Debug("starting housekeeping cleanup", "cutoff", cutoff)

	sweeps := []struct {
		name string
		fn   func(context.Context, time.Time) (int, error)
	}{
		{"verification codes", s.Store.VerificationCodes().DeleteCodesExpiredBefore},
		{"MFA challenges", s.Store.Challenges().DeleteChallengesExpiredBefore},
		{"password resets", s.Store.PasswordResets().DeleteResetsExpiredBefore},
	}

	var total int
	for _, sweep := range sweeps {
		n, err := sweep.fn(ctx, cutoff)
		if err != nil {
			s.Logger.Error("failed to delete expired "+sweep.name, "error", err)
			continue
		}
		total += n
	}

	if s.Limiter != nil {
		if n := s.Limiter.Prune(s.Interval); n > 0 {
			s.Logger.Debug("pruned idle send limiters", "count", n)
		}
	}

	s.Logger.Info("housekeeping cleanup completed", "deleted", total)
	return total
}
