package cleanup

import (
	"context"
	"log/slog"
	"time"
)

// Expirer closes sessions that have been idle for too long
type Expirer interface {
	ExpireIdle(ctx context.Context, maxIdle time.Duration) (int, error)
}

// Sweeper handles periodic expiry of idle engagement sessions
type Sweeper struct {
	expirer  Expirer
	interval time.Duration
	maxIdle  time.Duration
}

// NewSweeper creates a new sweeper worker
func NewSweeper(expirer Expirer, interval, maxIdle time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if maxIdle <= 0 {
		maxIdle = 2 * time.Hour
	}

	return &Sweeper{
		expirer:  expirer,
		interval: interval,
		maxIdle:  maxIdle,
	}
}

// Start begins the sweeper in a goroutine. The returned channel closes
// once the loop has exited.
func (s *Sweeper) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.run(ctx)
	}()
	return done
}

func (s *Sweeper) run(ctx context.Context) {
	slog.Info("session sweeper started", "interval", s.interval, "max_idle", s.maxIdle)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run immediately on start
	s.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("session sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one expiry cycle
func (s *Sweeper) Sweep(ctx context.Context) {
	slog.Debug("running sweep cycle")

	n, err := s.expirer.ExpireIdle(ctx, s.maxIdle)
	if err != nil {
		slog.Error("failed to expire idle sessions", "error", err)
		return
	}

	if n == 0 {
		slog.Debug("no idle sessions found")
		return
	}

	slog.Info("idle sessions expired", "count", n)
}
