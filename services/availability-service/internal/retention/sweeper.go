package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/buildlance/buildlance/libs/db"
	"github.com/buildlance/buildlance/services/availability-service/internal/storage"
)

// Sweeper deletes exceptions (and their slots) older than the keep
// horizon. Resolution never looks backwards, so expired overrides are
// pure dead weight.
type Sweeper struct {
	pool        *db.Pool
	repo        *storage.Repository
	logger      *slog.Logger
	keepDays    int
	batchSize   int
	advisoryKey int64
}

type Config struct {
	KeepDays        int
	BatchSize       int
	AdvisoryLockKey int64
}

func NewSweeper(pool *db.Pool, repo *storage.Repository, logger *slog.Logger, cfg Config) *Sweeper {
	keep := cfg.KeepDays
	if keep <= 0 {
		keep = 90
	}
	bs := cfg.BatchSize
	if bs <= 0 {
		bs = 200
	}
	lockKey := cfg.AdvisoryLockKey
	if lockKey == 0 {
		// Stable-ish default; override via env if you run multiple availability instances.
		lockKey = 8082001
	}
	return &Sweeper{
		pool:        pool,
		repo:        repo,
		logger:      logger,
		keepDays:    keep,
		batchSize:   bs,
		advisoryKey: lockKey,
	}
}

func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	// Best-effort leader election for multi-instance deployments.
	// Only the instance holding the advisory lock will sweep.
	for {
		if ctx.Err() != nil {
			return
		}
		var locked bool
		if err := s.pool.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, s.advisoryKey).Scan(&locked); err != nil {
			s.logger.Error("retention sweep: failed to acquire advisory lock", "err", err)
			time.Sleep(5 * time.Second)
			continue
		}
		if !locked {
			s.logger.Info("retention sweep: advisory lock held by another instance", "lock_key", s.advisoryKey)
			time.Sleep(30 * time.Second)
			continue
		}
		s.logger.Info("retention sweep: advisory lock acquired", "lock_key", s.advisoryKey)
		defer func() {
			_, _ = s.pool.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, s.advisoryKey)
		}()
		break
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run immediately on startup to catch up after downtime.
	s.sweepOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.keepDays)
	cutoff = time.Date(cutoff.Year(), cutoff.Month(), cutoff.Day(), 0, 0, 0, 0, time.UTC)

	var total int64
	for {
		if ctx.Err() != nil {
			return
		}
		n, err := s.repo.DeleteExceptionsBefore(ctx, cutoff, s.batchSize)
		if err != nil {
			s.logger.Error("retention sweep: delete batch failed", "err", err)
			return
		}
		total += n
		if n < int64(s.batchSize) {
			break
		}
	}
	if total > 0 {
		s.logger.Info("retention sweep: expired exceptions removed", "deleted", total, "cutoff", cutoff.Format("2006-01-02"))
	}
}
