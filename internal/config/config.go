package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	RepoPath      string        `toml:"repo_path"`
	Exclude       Exclude       `toml:"exclude"`
	Collector     Collector     `toml:"collector"`
	Detector      Detector      `toml:"detector"`
	Fix           Fix           `toml:"fix"`
	Watch         Watch         `toml:"watch"`
	History       History       `toml:"history"`
	Observability Observability `toml:"observability"`
}

type Exclude struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

// Collector tunes the runtime error collector.
type Collector struct {
	MaxErrors         int  `toml:"max_errors"`
	MaxStackDepth     int  `toml:"max_stack_depth"`
	CollectVariables  bool `toml:"collect_variables"`
	VariableMaxLength int  `toml:"variable_max_length"`
}

// Detector tunes the static error detector.
type Detector struct {
	Tools       []Tool        `toml:"tools"`
	ToolTimeout time.Duration `toml:"tool_timeout"`
	Workers     int           `toml:"workers"`
	// Per-tool subprocess launch rate (tokens/sec) and burst.
	LaunchRate  float64 `toml:"launch_rate"`
	LaunchBurst int     `toml:"launch_burst"`
}

// Tool describes one external analysis tool invocation.
type Tool struct {
	Name string   `toml:"name"`
	Args []string `toml:"args"`
}

type Fix struct {
	ActionTimeout  time.Duration `toml:"action_timeout"`
	ResolveWorkers int           `toml:"resolve_workers"`
}

type Watch struct {
	Debounce time.Duration `toml:"debounce"`
}

type History struct {
	Path string `toml:"path"`
}

type Observability struct {
	ListenAddr   string `toml:"listen_addr"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// Default returns a configuration with every tunable at its default.
func Default() *Config {
	cfg := &Config{Collector: Collector{CollectVariables: true}}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields in place.
func (cfg *Config) ApplyDefaults() {
	if cfg.RepoPath == "" {
		cfg.RepoPath = "."
	}
	if cfg.Collector.MaxErrors == 0 {
		cfg.Collector.MaxErrors = 1000
	}
	if cfg.Collector.MaxStackDepth == 0 {
		cfg.Collector.MaxStackDepth = 50
	}
	if cfg.Collector.VariableMaxLength == 0 {
		cfg.Collector.VariableMaxLength = 200
	}
	if len(cfg.Detector.Tools) == 0 {
		cfg.Detector.Tools = []Tool{
			{Name: "flake8", Args: []string{"--format=%(path)s:%(row)d:%(col)d:%(code)s:%(text)s"}},
			{Name: "pyflakes"},
		}
	}
	if cfg.Detector.ToolTimeout == 0 {
		cfg.Detector.ToolTimeout = 30 * time.Second
	}
	if cfg.Detector.Workers == 0 {
		cfg.Detector.Workers = 4
	}
	if cfg.Detector.LaunchRate == 0 {
		cfg.Detector.LaunchRate = 20
	}
	if cfg.Detector.LaunchBurst == 0 {
		cfg.Detector.LaunchBurst = 5
	}
	if cfg.Fix.ActionTimeout == 0 {
		cfg.Fix.ActionTimeout = 10 * time.Second
	}
	if cfg.Fix.ResolveWorkers == 0 {
		cfg.Fix.ResolveWorkers = 4
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if len(cfg.Exclude.Dirs) == 0 {
		cfg.Exclude.Dirs = []string{".git", "node_modules", "__pycache__", ".venv", "venv"}
	}
}
