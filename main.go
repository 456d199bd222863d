package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wayfarerlabs/questledger/questledger"
	"github.com/wayfarerlabs/questledger/questledger/database"
	"github.com/wayfarerlabs/questledger/questledger/database/repositories"
	"github.com/wayfarerlabs/questledger/questledger/engine"
	"github.com/wayfarerlabs/questledger/questledger/leaderboard"
	"github.com/wayfarerlabs/questledger/questledger/logger"
	"github.com/wayfarerlabs/questledger/questledger/services"
	"github.com/wayfarerlabs/questledger/questledger/sweeper"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	seedDemo := flag.Bool("seed-demo", false, "Seed the demo quest catalog on startup")
	path := flag.String("config", "config.toml", "path to config")
	flag.Parse()

	cfg, err := questledger.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}

	slog.SetDefault(slog.New(logger.NewHandler(cfg.Log.Level)))
	slog.Info("Starting quest ledger",
		slog.String("version", version),
		slog.String("commit", commit))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dbStartTime := time.Now()
	db, err := database.New(ctx, database.DBConfig{
		Host:         cfg.DB.Host,
		Port:         cfg.DB.Port,
		User:         cfg.DB.User,
		Password:     cfg.DB.Password,
		Database:     cfg.DB.Database,
		PoolSize:     cfg.DB.PoolSize,
		MaxIdleConns: cfg.DB.MaxIdleConns,
		MaxLifetime:  cfg.DB.MaxLifetime,
	})
	if err != nil {
		slog.Error("Database connection failed",
			slog.Any("error", err),
			slog.Duration("attempted_for", time.Since(dbStartTime)))
		os.Exit(-1)
	}

	if err := db.InitializeSchema(ctx); err != nil {
		slog.Error("Failed to initialize database schema", slog.Any("error", err))
		os.Exit(-1)
	}
	slog.Info("Database ready",
		slog.String("database", cfg.DB.Database),
		slog.Duration("took", time.Since(dbStartTime)))

	if *seedDemo {
		if err := db.SeedDemoQuests(ctx); err != nil {
			slog.Error("Failed to seed demo quests", slog.Any("error", err))
			os.Exit(-1)
		}
	}

	app := questledger.New(*cfg, version)
	app.DB = db

	app.QuestRepository = repositories.NewQuestRepository(db.BunDB())
	app.ProgressRepo = repositories.NewProgressRepository(db.BunDB())
	app.RewardRepository = repositories.NewRewardRepository(db.BunDB())

	app.Engine = engine.New(database.NewLedgerStore(db.BunDB()), app.EngineConfig())

	app.Aggregator = leaderboard.NewAggregator()
	if err := app.Aggregator.Rebuild(ctx, app.RewardRepository); err != nil {
		slog.Error("Failed to rebuild leaderboard from ledger", slog.Any("error", err))
		os.Exit(-1)
	}
	app.Engine.AddListener(app.Aggregator)

	app.ProgressService = services.NewProgressService(app.ProgressRepo, app.RewardRepository, app.Aggregator)

	app.Sweeper = sweeper.New(app.ProgressRepo, app.Engine, app.SweeperConfig())
	app.Processes.StartProcess("expiry-sweeper", app.Sweeper.Run)

	if cfg.Archive.Enabled {
		archive, err := services.NewArchiveService(
			cfg.Archive.Key,
			cfg.Archive.Secret,
			cfg.Archive.Region,
			cfg.Archive.Bucket,
			cfg.Archive.Prefix,
		)
		if err != nil {
			slog.Error("Failed to initialize ledger archive", slog.Any("error", err))
			os.Exit(-1)
		}
		app.ArchiveService = archive

		interval := 24 * time.Hour
		if cfg.Archive.IntervalHours > 0 {
			interval = time.Duration(cfg.Archive.IntervalHours) * time.Hour
		}
		app.Processes.StartProcess("ledger-archiver", func(ctx context.Context) {
			archive.Run(ctx, app.RewardRepository, interval)
		})
	}

	logger.LogSystem("Quest ledger is running. Press CTRL-C to exit.")
	s := make(chan os.Signal, 1)
	signal.Notify(s, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-s

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	app.Close(shutdownCtx)
}
