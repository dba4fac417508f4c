package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/ritzau/rag-pipeline-designer/pkg/logging"
	"github.com/ritzau/rag-pipeline-designer/pkg/simulation"
	"github.com/spf13/pflag"
)

// FileName is the optional config file looked up in the working directory
const FileName = "rag-designer.toml"

// EnvPrefix prefixes environment overrides, e.g. RAG_DESIGNER_PORT=9090
const EnvPrefix = "RAG_DESIGNER_"

// Config holds all configuration for the application
type Config struct {
	WebMode    bool             `koanf:"web"`
	Port       int              `koanf:"port"`
	Open       bool             `koanf:"open"`
	GraphFile  string           `koanf:"graph"`
	Presets    string           `koanf:"presets"`
	Simulate   bool             `koanf:"simulate"`
	Watch      bool             `koanf:"watch"`
	Verbosity  string           `koanf:"verbosity"`
	VerboseCnt int              `koanf:"verbose"`
	JSONLogs   bool             `koanf:"json_logs"`
	Store      StoreConfig      `koanf:"store"`
	History    HistoryConfig    `koanf:"history"`
	Simulation SimulationConfig `koanf:"simulation"`
}

// StoreConfig selects where the active pipeline projection is published
type StoreConfig struct {
	Driver string `koanf:"driver"` // file, memory or postgres
	Path   string `koanf:"path"`
	DSN    string `koanf:"dsn"`
	Key    string `koanf:"key"`
}

// HistoryConfig bounds the undo stack
type HistoryConfig struct {
	Capacity int `koanf:"capacity"`
}

// SimulationConfig controls simulation pacing
type SimulationConfig struct {
	Ticks       int `koanf:"ticks"`
	TickMs      int `koanf:"tick_ms"`
	EdgePauseMs int `koanf:"edge_pause_ms"`
}

// Defaults returns the built-in configuration values. Sections are nested maps so
// they merge with the file, env and flag layers key by key.
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"web":       false,
		"port":      8080,
		"open":      false,
		"graph":     "",
		"presets":   "",
		"simulate":  false,
		"watch":     false,
		"verbosity": "",
		"verbose":   0,
		"json_logs": false,
		"store": map[string]interface{}{
			"driver": "file",
			"path":   "active_pipeline.json",
			"dsn":    "",
			"key":    "active_pipeline",
		},
		"history": map[string]interface{}{
			"capacity": 20,
		},
		"simulation": map[string]interface{}{
			"ticks":         10,
			"tick_ms":       50,
			"edge_pause_ms": 800,
		},
	}
}

// Load loads configuration from defaults, config file, environment variables, and flags.
// Priority: Flags > Env > Config File > Defaults
func Load(f *pflag.FlagSet) (*Config, error) {
	return LoadFile(FileName, f)
}

// LoadFile is Load with an explicit config file path
func LoadFile(path string, f *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(makeMapProvider(Defaults()), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config File (optional) - errors ignored as the file might not exist
	if path != "" {
		_ = k.Load(file.Provider(path), toml.Parser())
	}

	// 3. Environment Variables
	// RAG_DESIGNER_STORE__DRIVER -> store.driver, RAG_DESIGNER_JSON_LOGS -> json_logs
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	if f != nil {
		if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// envKey maps an environment variable name to a koanf key.
// A double underscore separates nesting levels; single underscores are kept.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// Validate rejects values the rest of the program cannot work with
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "file", "memory":
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Simulation.Ticks < 1 {
		return fmt.Errorf("simulation.ticks must be at least 1, got %d", c.Simulation.Ticks)
	}
	if c.Simulation.TickMs < 0 || c.Simulation.EdgePauseMs < 0 {
		return fmt.Errorf("simulation durations must not be negative")
	}
	return nil
}

// SimulationTiming converts the simulation section into engine pacing
func (c *Config) SimulationTiming() simulation.Timing {
	return simulation.Timing{
		Ticks:        c.Simulation.Ticks,
		TickInterval: time.Duration(c.Simulation.TickMs) * time.Millisecond,
		EdgePause:    time.Duration(c.Simulation.EdgePauseMs) * time.Millisecond,
	}
}

// LogLevel derives the slog level from verbosity settings.
// An explicit verbosity name wins over the -v count.
func (c *Config) LogLevel() slog.Level {
	switch strings.ToLower(c.Verbosity) {
	case "trace":
		return logging.LevelTrace
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	switch {
	case c.VerboseCnt >= 2:
		return logging.LevelTrace
	case c.VerboseCnt == 1:
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// Helper to use map as a provider
type mapProvider struct {
	m map[string]interface{}
}

func makeMapProvider(m map[string]interface{}) *mapProvider {
	return &mapProvider{m: m}
}

func (p *mapProvider) Read() (map[string]interface{}, error) {
	return p.m, nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}
