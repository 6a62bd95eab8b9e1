package testsupport

import (
	"path/filepath"
	"testing"

	"rhythmset/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.ProcessedDir = filepath.Join(base, "processed")
	cfgVal.Paths.SplitsDir = filepath.Join(base, "splits")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Processing.Workers = 2
	cfgVal.Validation.MinClassWindows = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return builder.cfg
}

// WithWindowing overrides the window length and overlap.
func WithWindowing(seconds, overlap float64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Windowing.WindowSeconds = seconds
		b.cfg.Windowing.OverlapRatio = overlap
	}
}

// WithSplit overrides the split ratios and seed.
func WithSplit(testRatio, valRatio float64, seed int64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Split.TestRatio = testRatio
		b.cfg.Split.ValRatio = valRatio
		b.cfg.Split.Seed = seed
	}
}

// WithWorkers sets the fan-out width.
func WithWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Processing.Workers = n
	}
}

// WithMinClassWindows sets the validation floor.
func WithMinClassWindows(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Validation.MinClassWindows = n
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.ProcessedDir)
}
