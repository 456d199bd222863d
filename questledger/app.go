package questledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/wayfarerlabs/questledger/questledger/database"
	"github.com/wayfarerlabs/questledger/questledger/database/repositories"
	"github.com/wayfarerlabs/questledger/questledger/engine"
	"github.com/wayfarerlabs/questledger/questledger/leaderboard"
	"github.com/wayfarerlabs/questledger/questledger/services"
	"github.com/wayfarerlabs/questledger/questledger/sweeper"
	"github.com/wayfarerlabs/questledger/questledger/utils"
)

func New(cfg Config, version string) *App {
	return &App{
		Cfg:       cfg,
		Version:   version,
		Processes: utils.NewBackgroundProcessManager(),
	}
}

// App wires the ledger core together: database, engine, aggregator, read
// services and background processes.
type App struct {
	Cfg     Config
	Version string

	DB               *database.DB
	Engine           *engine.Engine
	Aggregator       *leaderboard.Aggregator
	Sweeper          *sweeper.Sweeper
	QuestRepository  repositories.QuestRepository
	ProgressRepo     repositories.ProgressRepository
	RewardRepository repositories.RewardRepository
	ProgressService  *services.ProgressService
	ArchiveService   *services.ArchiveService
	Processes        *utils.BackgroundProcessManager
}

// EngineConfig converts the TOML knobs into the engine's config, falling back
// to defaults for anything unset.
func (a *App) EngineConfig() engine.Config {
	cfg := engine.DefaultConfig()
	if a.Cfg.Engine.DedupWindowSize > 0 {
		cfg.DedupWindowSize = a.Cfg.Engine.DedupWindowSize
	}
	if a.Cfg.Engine.DedupWindowAgeSec > 0 {
		cfg.DedupWindowAge = time.Duration(a.Cfg.Engine.DedupWindowAgeSec) * time.Second
	}
	if a.Cfg.Engine.AccuracyThresholdM > 0 {
		cfg.Geofence.AccuracyThresholdM = a.Cfg.Engine.AccuracyThresholdM
	}
	if a.Cfg.Engine.MaxAccuracyMarginM > 0 {
		cfg.Geofence.MaxAccuracyMarginM = a.Cfg.Engine.MaxAccuracyMarginM
	}
	if a.Cfg.Engine.MaxRetries > 0 {
		cfg.MaxRetries = a.Cfg.Engine.MaxRetries
	}
	if a.Cfg.Engine.RetryBackoffMs > 0 {
		cfg.RetryBackoff = time.Duration(a.Cfg.Engine.RetryBackoffMs) * time.Millisecond
	}
	return cfg
}

// SweeperConfig converts the TOML knobs into the sweeper's config.
func (a *App) SweeperConfig() sweeper.Config {
	cfg := sweeper.DefaultConfig()
	if a.Cfg.Sweeper.IntervalSec > 0 {
		cfg.Interval = time.Duration(a.Cfg.Sweeper.IntervalSec) * time.Second
	}
	if a.Cfg.Sweeper.BatchSize > 0 {
		cfg.BatchSize = a.Cfg.Sweeper.BatchSize
	}
	if a.Cfg.Sweeper.Concurrency > 0 {
		cfg.Concurrency = a.Cfg.Sweeper.Concurrency
	}
	return cfg
}

// Close shuts down background processes and the database.
func (a *App) Close(ctx context.Context) {
	slog.Info("Shutting down",
		slog.String("version", a.Version))

	if a.Processes != nil {
		if err := a.Processes.Shutdown(10 * time.Second); err != nil {
			slog.Warn("Background processes did not stop in time", slog.Any("error", err))
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
