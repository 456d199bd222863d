package questledger

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/pelletier/go-toml/v2"
)

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type Config struct {
	Log     LogConfig     `toml:"log"`
	DB      DBConfig      `toml:"db"`
	Engine  EngineConfig  `toml:"engine"`
	Sweeper SweeperConfig `toml:"sweeper"`
	Archive ArchiveConfig `toml:"archive"`
}

type LogConfig struct {
	Level slog.Level `toml:"level"`
}

type DBConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	Database     string `toml:"database"`
	PoolSize     int    `toml:"pool_size"`
	MaxIdleConns int    `toml:"max_idle_conns"`
	MaxLifetime  int    `toml:"max_lifetime"`
}

// EngineConfig exposes the event-pipeline knobs the design leaves tunable:
// dedup window, accuracy margin and conflict retry behavior.
type EngineConfig struct {
	DedupWindowSize    int     `toml:"dedup_window_size"`
	DedupWindowAgeSec  int     `toml:"dedup_window_age_sec"`
	AccuracyThresholdM float64 `toml:"accuracy_threshold_m"`
	MaxAccuracyMarginM float64 `toml:"max_accuracy_margin_m"`
	MaxRetries         int     `toml:"max_retries"`
	RetryBackoffMs     int     `toml:"retry_backoff_ms"`
}

type SweeperConfig struct {
	IntervalSec int `toml:"interval_sec"`
	BatchSize   int `toml:"batch_size"`
	Concurrency int `toml:"concurrency"`
}

type ArchiveConfig struct {
	Enabled      bool   `toml:"enabled"`
	Key          string `toml:"key"`
	Secret       string `toml:"secret"`
	Region       string `toml:"region"`
	Bucket       string `toml:"bucket"`
	Prefix       string `toml:"prefix"`
	IntervalHours int   `toml:"interval_hours"`
}
