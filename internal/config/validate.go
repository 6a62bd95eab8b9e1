package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLabels(); err != nil {
		return err
	}
	if err := c.validateSegmentation(); err != nil {
		return err
	}
	if err := c.validateWindowing(); err != nil {
		return err
	}
	if err := c.validateProcessing(); err != nil {
		return err
	}
	if err := c.validateSplit(); err != nil {
		return err
	}
	if err := c.validateValidation(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLabels() error {
	if len(c.Labels.Positive) == 0 {
		return errors.New("labels.positive must list at least one label")
	}
	if len(c.Labels.Negative) == 0 {
		return errors.New("labels.negative must list at least one label")
	}
	positive := make(map[string]struct{}, len(c.Labels.Positive))
	for _, label := range c.Labels.Positive {
		positive[label] = struct{}{}
	}
	for _, label := range c.Labels.Negative {
		if _, ok := positive[label]; ok {
			return fmt.Errorf("label %q is listed in both labels.positive and labels.negative", label)
		}
	}
	return nil
}

func (c *Config) validateSegmentation() error {
	if c.Segmentation.SignalIndex < 0 {
		return errors.New("segmentation.signal_index must not be negative")
	}
	return nil
}

func (c *Config) validateWindowing() error {
	if c.Windowing.WindowSeconds <= 0 {
		return errors.New("windowing.window_seconds must be positive")
	}
	if c.Windowing.OverlapRatio < 0 || c.Windowing.OverlapRatio >= 1 {
		return errors.New("windowing.overlap_ratio must be in [0, 1)")
	}
	switch c.Windowing.Normalization {
	case "zscore", "minmax", "none":
	default:
		return fmt.Errorf("windowing.normalization: unsupported value %q (use zscore, minmax or none)", c.Windowing.Normalization)
	}
	return nil
}

func (c *Config) validateProcessing() error {
	if c.Processing.Workers < 0 {
		return errors.New("processing.workers must not be negative")
	}
	return nil
}

func (c *Config) validateSplit() error {
	if c.Split.TestRatio < 0 || c.Split.TestRatio >= 1 {
		return errors.New("split.test_ratio must be in [0, 1)")
	}
	if c.Split.ValRatio < 0 || c.Split.ValRatio >= 1 {
		return errors.New("split.val_ratio must be in [0, 1)")
	}
	if c.Split.TestRatio+c.Split.ValRatio >= 1 {
		return errors.New("split.test_ratio + split.val_ratio must be less than 1")
	}
	if c.Split.PositiveHeavyThreshold < 0 || c.Split.PositiveHeavyThreshold > 1 {
		return errors.New("split.positive_heavy_threshold must be between 0 and 1")
	}
	if c.Split.NegativeHeavyThreshold < 0 || c.Split.NegativeHeavyThreshold > 1 {
		return errors.New("split.negative_heavy_threshold must be between 0 and 1")
	}
	if c.Split.NegativeHeavyThreshold >= c.Split.PositiveHeavyThreshold {
		return errors.New("split.negative_heavy_threshold must be less than split.positive_heavy_threshold")
	}
	return nil
}

func (c *Config) validateValidation() error {
	if c.Validation.RatioTolerance < 0 || c.Validation.RatioTolerance > 1 {
		return errors.New("validation.ratio_tolerance must be between 0 and 1")
	}
	if c.Validation.MinClassWindows < 0 {
		return errors.New("validation.min_class_windows must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
