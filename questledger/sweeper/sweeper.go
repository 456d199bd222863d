package sweeper

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wayfarerlabs/questledger/questledger/database/repositories"
	"github.com/wayfarerlabs/questledger/questledger/engine"
	"github.com/wayfarerlabs/questledger/questledger/logger"
)

// Config tunes the expiry sweep.
type Config struct {
	Interval    time.Duration
	BatchSize   int
	Concurrency int
}

func DefaultConfig() Config {
	return Config{
		Interval:    time.Minute,
		BatchSize:   500,
		Concurrency: 8,
	}
}

// StaleLister finds non-terminal progress on quests whose window elapsed.
// Satisfied by repositories.ProgressRepository.
type StaleLister interface {
	ListStale(ctx context.Context, now time.Time, limit int) ([]repositories.StaleProgress, error)
}

// EventSubmitter is the engine's write entry point.
type EventSubmitter interface {
	SubmitEvent(ctx context.Context, ev engine.Event) (*engine.EventOutcome, error)
}

// Sweeper periodically expires non-terminal progress on elapsed quests. It
// injects synthetic expire events through the same admission and state-machine
// path as client events, so expiry is idempotent and auditable like everything
// else. The scan itself takes no entity locks; each record goes through the
// engine's per-entity serialization.
type Sweeper struct {
	progressRepo StaleLister
	eng          EventSubmitter
	cfg          Config
}

func New(progressRepo StaleLister, eng EventSubmitter, cfg Config) *Sweeper {
	if cfg.Interval <= 0 {
		cfg = DefaultConfig()
	}
	return &Sweeper{
		progressRepo: progressRepo,
		eng:          eng,
		cfg:          cfg,
	}
}

// Run loops until the context is canceled. Intended for the background
// process manager.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				slog.Error("Expiry sweep failed", slog.Any("error", err))
			}
		}
	}
}

// SweepOnce expires one batch of stale records. A quest ending mid-tick is
// fine: whatever this pass misses, the next one picks up.
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	start := time.Now()
	stale, err := s.progressRepo.ListStale(ctx, start, s.cfg.BatchSize)
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	var expired atomic.Int64
	for _, record := range stale {
		record := record
		g.Go(func() error {
			ev := engine.NewExpireEvent(record.ParticipantID, record.QuestID, record.QuestEndTime)
			outcome, err := s.eng.SubmitEvent(gctx, ev)
			if err != nil {
				slog.Error("Failed to expire progress",
					slog.String("participant_id", record.ParticipantID),
					slog.String("quest_id", record.QuestID),
					slog.Any("error", err))
				return nil // keep sweeping the rest of the batch
			}
			if outcome.Status == engine.StatusAccepted {
				expired.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	logger.LogSweep(len(stale), int(expired.Load()), time.Since(start))
	return nil
}
