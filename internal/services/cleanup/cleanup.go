package cleanup

import (
	"context"
	"log/slog"
	"time"

	"budgetauth/internal/domain/models"
	"budgetauth/internal/lib/sl"
)

type TokenSweeper interface {
	SweepTokens(ctx context.Context, now time.Time, maxAge time.Duration) (models.SweepResult, error)
}

// Sweeper periodically invalidates stale ledger records and purges invalidated
// ones. The same sweep runs on the interval ticker and on demand via Trigger;
// both paths go through one worker goroutine so an HTTP caller never waits on
// a full-table scan.
type Sweeper struct {
	logger   *slog.Logger
	ledger   TokenSweeper
	interval time.Duration
	maxAge   time.Duration
	trigger  chan struct{}
}

func New(logger *slog.Logger, ledger TokenSweeper, interval, maxAge time.Duration) *Sweeper {
	return &Sweeper{
		logger:   logger,
		ledger:   ledger,
		interval: interval,
		maxAge:   maxAge,
		trigger:  make(chan struct{}, 1),
	}
}

// Trigger enqueues an on-demand sweep. Requests arriving while one is already
// queued collapse into it.
func (s *Sweeper) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is cancelled, sweeping on every tick and on every
// trigger. Sweep failures are logged and never stop the loop; a partial sweep
// self-corrects on the next run.
func (s *Sweeper) Run(ctx context.Context) {
	const op = "cleanup.Run"
	log := s.logger.With(slog.String("op", op))
	log.Info("sweeper started", slog.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx, log)
		case <-s.trigger:
			s.sweep(ctx, log)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context, log *slog.Logger) {
	res, err := s.ledger.SweepTokens(ctx, time.Now(), s.maxAge)
	if err != nil {
		log.Error("sweep failed", sl.Err(err))
		return
	}
	log.Info("sweep completed",
		slog.Int64("invalidated", res.Invalidated),
		slog.Int64("purged", res.Purged),
	)
}
