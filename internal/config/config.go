package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains input and output directory configuration.
type Paths struct {
	DataDir      string `toml:"data_dir"`
	ProcessedDir string `toml:"processed_dir"`
	SplitsDir    string `toml:"splits_dir"`
	LogDir       string `toml:"log_dir"`
}

// Labels lists the raw rhythm labels that map to each binary class.
type Labels struct {
	Positive []string `toml:"positive"`
	Negative []string `toml:"negative"`
}

// Segmentation contains configuration for annotation-driven segment extraction.
type Segmentation struct {
	// StopAtUnclassified ends a kept segment at the next annotation of any
	// class instead of bridging over unclassified rhythm spans.
	StopAtUnclassified bool `toml:"stop_at_unclassified"`
	// SignalIndex selects the channel read from multi-signal recordings.
	SignalIndex int `toml:"signal_index"`
}

// Windowing contains configuration for sliding-window generation.
type Windowing struct {
	WindowSeconds float64 `toml:"window_seconds"`
	OverlapRatio  float64 `toml:"overlap_ratio"`
	Normalization string  `toml:"normalization"`
}

// Processing contains configuration for the per-record fan-out stage.
type Processing struct {
	Workers   int  `toml:"workers"`
	DCRemoval bool `toml:"dc_removal"`
}

// Split contains configuration for stratified record allocation.
type Split struct {
	TestRatio              float64 `toml:"test_ratio"`
	ValRatio               float64 `toml:"val_ratio"`
	Seed                   int64   `toml:"seed"`
	PositiveHeavyThreshold float64 `toml:"positive_heavy_threshold"`
	NegativeHeavyThreshold float64 `toml:"negative_heavy_threshold"`
}

// Validation contains thresholds for post-allocation split checks.
type Validation struct {
	RatioTolerance  float64 `toml:"ratio_tolerance"`
	MinClassWindows int     `toml:"min_class_windows"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for rhythmset.
//
// Configuration sections by subsystem:
//   - Paths: input records, processed artifacts, split outputs, logs/catalog
//   - Labels: raw rhythm labels for the positive and negative classes
//   - Segmentation: extraction behaviour and signal channel selection
//   - Windowing: window length, overlap and normalization method
//   - Processing: worker count and signal conditioning
//   - Split: allocation ratios, seed and categorization thresholds
//   - Validation: balance tolerance and per-class window floor
//   - Logging: log format and level
type Config struct {
	Paths        Paths        `toml:"paths"`
	Labels       Labels       `toml:"labels"`
	Segmentation Segmentation `toml:"segmentation"`
	Windowing    Windowing    `toml:"windowing"`
	Processing   Processing   `toml:"processing"`
	Split        Split        `toml:"split"`
	Validation   Validation   `toml:"validation"`
	Logging      Logging      `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/rhythmset/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("rhythmset.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the output directories used by the pipeline.
// The data directory is input-only and is never created.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.ProcessedDir, c.Paths.SplitsDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// CatalogPath returns the location of the SQLite run catalog.
func (c *Config) CatalogPath() string {
	return filepath.Join(c.Paths.LogDir, "catalog.db")
}

// LogFilePath returns the location of the persistent log file.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.Paths.LogDir, "rhythmset.log")
}

// LockPath returns the location of the lock file guarding output directories.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "rhythmset.lock")
}

// WorkerCount resolves the configured worker count, defaulting to the CPU count.
func (c *Config) WorkerCount() int {
	if c.Processing.Workers > 0 {
		return c.Processing.Workers
	}
	return runtime.NumCPU()
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
