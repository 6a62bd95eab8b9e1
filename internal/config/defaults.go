package config

const (
	defaultDataDir                = "~/.local/share/rhythmset/data"
	defaultProcessedDir           = "~/.local/share/rhythmset/processed"
	defaultSplitsDir              = "~/.local/share/rhythmset/splits"
	defaultLogDir                 = "~/.local/share/rhythmset/logs"
	defaultSignalIndex            = 0
	defaultWindowSeconds          = 10.0
	defaultOverlapRatio           = 0.5
	defaultNormalization          = "zscore"
	defaultDCRemoval              = true
	defaultTestRatio              = 0.2
	defaultValRatio               = 0.2
	defaultSeed                   = 42
	defaultPositiveHeavyThreshold = 0.7
	defaultNegativeHeavyThreshold = 0.3
	defaultRatioTolerance         = 0.15
	defaultMinClassWindows        = 100
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

var (
	defaultPositiveLabels = []string{"(AFIB", "AFIB"}
	defaultNegativeLabels = []string{"(N", "N", "NSR"}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:      defaultDataDir,
			ProcessedDir: defaultProcessedDir,
			SplitsDir:    defaultSplitsDir,
			LogDir:       defaultLogDir,
		},
		Labels: Labels{
			Positive: append([]string(nil), defaultPositiveLabels...),
			Negative: append([]string(nil), defaultNegativeLabels...),
		},
		Segmentation: Segmentation{
			SignalIndex: defaultSignalIndex,
		},
		Windowing: Windowing{
			WindowSeconds: defaultWindowSeconds,
			OverlapRatio:  defaultOverlapRatio,
			Normalization: defaultNormalization,
		},
		Processing: Processing{
			DCRemoval: defaultDCRemoval,
		},
		Split: Split{
			TestRatio:              defaultTestRatio,
			ValRatio:               defaultValRatio,
			Seed:                   defaultSeed,
			PositiveHeavyThreshold: defaultPositiveHeavyThreshold,
			NegativeHeavyThreshold: defaultNegativeHeavyThreshold,
		},
		Validation: Validation{
			RatioTolerance:  defaultRatioTolerance,
			MinClassWindows: defaultMinClassWindows,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
