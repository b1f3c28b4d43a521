// Package config loads studio service configuration from TOML with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/podstudio-labs/podstudio-go/internal/platform/env"
)

// HTTPConfig holds HTTP listener settings.
type HTTPConfig struct {
	Addr            string        `toml:"addr"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
	StaticDir       string        `toml:"static_dir"`
}

// StorageConfig holds on-disk state settings.
type StorageConfig struct {
	DataDir     string `toml:"data_dir"`
	HistoryFile string `toml:"history_file"`
	PresetsFile string `toml:"presets_file"`
	MaxHistory  int    `toml:"max_history"`
}

// RunsConfig holds run admission settings.
type RunsConfig struct {
	MaxConcurrent int `toml:"max_concurrent"`
}

// PipelineConfig holds pipeline execution settings.
type PipelineConfig struct {
	Binary    string `toml:"binary"`
	Simulated bool   `toml:"simulated"`
	RulesFile string `toml:"rules_file"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// DefaultsConfig holds fallback values applied to run configs that leave
// the corresponding fields unset.
type DefaultsConfig struct {
	ASRModel      string  `toml:"asr_model"`
	Compute       string  `toml:"compute"`
	DeepcastModel string  `toml:"deepcast_model"`
	DeepcastTemp  float64 `toml:"deepcast_temp"`
	NotionDB      string  `toml:"notion_db"`
	PodcastProp   string  `toml:"podcast_prop"`
	DateProp      string  `toml:"date_prop"`
	EpisodeProp   string  `toml:"episode_prop"`
}

// Config is the main configuration struct for the studio service.
type Config struct {
	HTTP     HTTPConfig     `toml:"http"`
	Storage  StorageConfig  `toml:"storage"`
	Runs     RunsConfig     `toml:"runs"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Logging  LoggingConfig  `toml:"logging"`
	Defaults DefaultsConfig `toml:"defaults"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:            ":8000",
			ShutdownTimeout: 10 * time.Second,
			StaticDir:       "web/static",
		},
		Storage: StorageConfig{
			DataDir:     "data",
			HistoryFile: "history.json",
			PresetsFile: "presets.json",
			MaxHistory:  20,
		},
		Runs: RunsConfig{
			MaxConcurrent: 1,
		},
		Pipeline: PipelineConfig{
			Binary:    "podx",
			Simulated: false,
			RulesFile: "",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Defaults: DefaultsConfig{
			ASRModel:      "large-v3-turbo",
			Compute:       "int8",
			DeepcastModel: "gpt-4.1",
			DeepcastTemp:  0.2,
			NotionDB:      "",
			PodcastProp:   "Podcast",
			DateProp:      "Date",
			EpisodeProp:   "Episode",
		},
	}
}

// Load loads configuration from file, merging with defaults. A missing
// file is not an error. Environment overrides apply last.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	} else {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides file values with STUDIO_* environment variables.
func (c *Config) applyEnv() error {
	c.HTTP.Addr = env.String("STUDIO_HTTP_ADDR", c.HTTP.Addr)
	c.HTTP.StaticDir = env.String("STUDIO_STATIC_DIR", c.HTTP.StaticDir)
	c.Storage.DataDir = env.String("STUDIO_DATA_DIR", c.Storage.DataDir)
	c.Pipeline.Binary = env.String("STUDIO_PIPELINE_BINARY", c.Pipeline.Binary)
	c.Pipeline.RulesFile = env.String("STUDIO_PROGRESS_RULES", c.Pipeline.RulesFile)
	c.Logging.Level = env.String("STUDIO_LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = env.String("STUDIO_LOG_FORMAT", c.Logging.Format)
	c.Defaults.ASRModel = env.String("STUDIO_ASR_MODEL", c.Defaults.ASRModel)
	c.Defaults.Compute = env.String("STUDIO_COMPUTE", c.Defaults.Compute)
	c.Defaults.DeepcastModel = env.String("STUDIO_DEEPCAST_MODEL", c.Defaults.DeepcastModel)
	c.Defaults.NotionDB = env.String("STUDIO_NOTION_DB", c.Defaults.NotionDB)

	var err error
	if c.HTTP.ShutdownTimeout, err = env.Duration("STUDIO_SHUTDOWN_TIMEOUT", c.HTTP.ShutdownTimeout); err != nil {
		return err
	}
	if c.Storage.MaxHistory, err = env.Int("STUDIO_MAX_HISTORY", c.Storage.MaxHistory); err != nil {
		return err
	}
	if c.Runs.MaxConcurrent, err = env.Int("STUDIO_MAX_CONCURRENT", c.Runs.MaxConcurrent); err != nil {
		return err
	}
	if c.Pipeline.Simulated, err = env.Bool("STUDIO_PIPELINE_SIMULATED", c.Pipeline.Simulated); err != nil {
		return err
	}
	if c.Defaults.DeepcastTemp, err = env.Float64("STUDIO_DEEPCAST_TEMP", c.Defaults.DeepcastTemp); err != nil {
		return err
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http addr is required")
	}
	if c.Storage.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.Storage.MaxHistory <= 0 {
		return fmt.Errorf("max_history must be positive")
	}
	if c.Runs.MaxConcurrent <= 0 {
		return fmt.Errorf("max_concurrent must be positive")
	}
	if !c.Pipeline.Simulated && c.Pipeline.Binary == "" {
		return fmt.Errorf("pipeline binary is required unless simulated")
	}
	return nil
}

// HistoryPath returns the absolute run history file path.
func (c *Config) HistoryPath() string {
	if filepath.IsAbs(c.Storage.HistoryFile) {
		return c.Storage.HistoryFile
	}
	return filepath.Join(c.Storage.DataDir, c.Storage.HistoryFile)
}

// PresetsPath returns the absolute presets file path.
func (c *Config) PresetsPath() string {
	if filepath.IsAbs(c.Storage.PresetsFile) {
		return c.Storage.PresetsFile
	}
	return filepath.Join(c.Storage.DataDir, c.Storage.PresetsFile)
}
