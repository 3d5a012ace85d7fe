// Package config holds all stepwright configuration, loaded from
// .stepwright/config.yaml with STEPWRIGHT_* environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full configuration tree.
type Config struct {
	Journeys JourneysConfig `yaml:"journeys"`
	Mapper   MapperConfig   `yaml:"mapper"`
	LLKB     LLKBConfig     `yaml:"llkb"`
	Healing  HealingConfig  `yaml:"healing"`
	Runner   RunnerConfig   `yaml:"runner"`
	Probe    ProbeConfig    `yaml:"probe"`
	Report   ReportConfig   `yaml:"report"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// JourneysConfig locates journey documents and the user glossary.
type JourneysConfig struct {
	Dir      string `yaml:"dir"`
	Glossary string `yaml:"glossary"` // optional user glossary YAML
}

// MapperConfig configures step mapping.
type MapperConfig struct {
	MinConfidence float64 `yaml:"min_confidence"` // learned-pattern threshold
	DisableLLKB   bool    `yaml:"disable_llkb"`
}

// LLKBConfig configures the learned pattern store.
type LLKBConfig struct {
	StorePath            string  `yaml:"store_path"`
	PruneMinConfidence   float64 `yaml:"prune_min_confidence"`
	PruneMinApplications int     `yaml:"prune_min_applications"`
	ExportTop            int     `yaml:"export_top"`
}

// HealingConfig configures the self-healing engine.
type HealingConfig struct {
	Enabled      bool     `yaml:"enabled"`
	MaxAttempts  int      `yaml:"max_attempts"`
	AllowedFixes []string `yaml:"allowed_fixes"` // empty means rule defaults
	LogDir       string   `yaml:"log_dir"`
}

// RunnerConfig configures the external test runner subprocess.
type RunnerConfig struct {
	Binary   string   `yaml:"binary"`
	Args     []string `yaml:"args"`
	Dir      string   `yaml:"dir"`
	Workers  int      `yaml:"workers"`
	Retries  int      `yaml:"retries"`
	Timeout  string   `yaml:"timeout"` // per-test, e.g. "30s"
	Reporter string   `yaml:"reporter"`
}

// TimeoutDuration parses the per-test timeout, defaulting to 30s.
func (r RunnerConfig) TimeoutDuration() time.Duration {
	return parseDuration(r.Timeout, 30*time.Second)
}

// ProbeConfig configures the locator liveness probe.
type ProbeConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ControlURL string `yaml:"control_url"` // empty launches a headless browser
	Timeout    string `yaml:"timeout"`
	BaseURL    string `yaml:"base_url"`
}

// TimeoutDuration parses the probe timeout, defaulting to 5s.
func (p ProbeConfig) TimeoutDuration() time.Duration {
	return parseDuration(p.Timeout, 5*time.Second)
}

// ReportConfig configures healing-log aggregation.
type ReportConfig struct {
	IndexPath string `yaml:"index_path"` // SQLite index for stats runs
}

// LoggingConfig configures the category file logger. It mirrors the
// logging section read independently by internal/logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	JSONFormat bool            `yaml:"json_format"`
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// Default returns the baseline configuration rooted at workspace.
func Default(workspace string) Config {
	root := filepath.Join(workspace, ".stepwright")
	return Config{
		Journeys: JourneysConfig{Dir: filepath.Join(workspace, "journeys")},
		Mapper:   MapperConfig{MinConfidence: 0.7},
		LLKB: LLKBConfig{
			StorePath:            filepath.Join(root, "llkb.json"),
			PruneMinConfidence:   0.3,
			PruneMinApplications: 5,
			ExportTop:            20,
		},
		Healing: HealingConfig{
			Enabled:     true,
			MaxAttempts: 3,
			LogDir:      filepath.Join(root, "healing"),
		},
		Runner: RunnerConfig{
			Binary:   "npx",
			Args:     []string{"playwright", "test"},
			Workers:  1,
			Timeout:  "30s",
			Reporter: "json",
		},
		Probe:   ProbeConfig{Timeout: "5s"},
		Report:  ReportConfig{IndexPath: filepath.Join(root, "report.db")},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads workspace/.stepwright/config.yaml layered over Default. A
// missing file yields the defaults; a malformed one is an error, since
// silently ignoring a config the user wrote is worse than failing.
func Load(workspace string) (Config, error) {
	cfg := Default(workspace)
	path := filepath.Join(workspace, ".stepwright", "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides lets CI tune hot settings without editing the file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("STEPWRIGHT_MIN_CONFIDENCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 && f <= 1 {
			c.Mapper.MinConfidence = f
		}
	}
	if v := os.Getenv("STEPWRIGHT_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Healing.MaxAttempts = n
		}
	}
	if v := os.Getenv("STEPWRIGHT_HEALING_ENABLED"); v != "" {
		c.Healing.Enabled = v == "1" || v == "true"
	}
	if v := os.Getenv("STEPWRIGHT_RUNNER_BINARY"); v != "" {
		c.Runner.Binary = v
	}
	if v := os.Getenv("STEPWRIGHT_LLKB_PATH"); v != "" {
		c.LLKB.StorePath = v
	}
	if v := os.Getenv("STEPWRIGHT_DEBUG"); v != "" {
		c.Logging.DebugMode = v == "1" || v == "true"
	}
}
