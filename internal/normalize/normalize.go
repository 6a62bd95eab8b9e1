// Package normalize rescales window amplitudes.
package normalize

import (
	"fmt"
	"strings"

	"github.com/montanaflynn/stats"
)

// Method names a normalization strategy.
type Method string

const (
	// ZScore centers each window and scales it to unit population variance.
	ZScore Method = "zscore"
	// MinMax maps the whole window set into [0,1] using its global extremes.
	MinMax Method = "minmax"
	// None leaves samples untouched.
	None Method = "none"
)

// ParseMethod resolves a configured method name.
func ParseMethod(value string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(value))); m {
	case ZScore, MinMax, None:
		return m, nil
	case "":
		return ZScore, nil
	default:
		return "", fmt.Errorf("unknown normalization method %q", value)
	}
}

// Apply normalizes the windows in place.
func Apply(method Method, windows [][]float64) error {
	switch method {
	case ZScore:
		for i, w := range windows {
			if err := zscore(w); err != nil {
				return fmt.Errorf("zscore window %d: %w", i, err)
			}
		}
		return nil
	case MinMax:
		return minMax(windows)
	case None:
		return nil
	default:
		return fmt.Errorf("unknown normalization method %q", method)
	}
}

// zscore subtracts the mean and divides by σ; a flat window is only centered.
func zscore(w []float64) error {
	if len(w) == 0 {
		return nil
	}
	mean, err := stats.Mean(w)
	if err != nil {
		return err
	}
	sd, err := stats.StandardDeviationPopulation(w)
	if err != nil {
		return err
	}
	for i, v := range w {
		if sd > 0 {
			w[i] = (v - mean) / sd
		} else {
			w[i] = v - mean
		}
	}
	return nil
}

func minMax(windows [][]float64) error {
	var lo, hi float64
	seen := false
	for _, w := range windows {
		if len(w) == 0 {
			continue
		}
		wMin, err := stats.Min(w)
		if err != nil {
			return fmt.Errorf("minmax: %w", err)
		}
		wMax, err := stats.Max(w)
		if err != nil {
			return fmt.Errorf("minmax: %w", err)
		}
		if !seen || wMin < lo {
			lo = wMin
		}
		if !seen || wMax > hi {
			hi = wMax
		}
		seen = true
	}
	span := hi - lo
	for _, w := range windows {
		for i, v := range w {
			if span > 0 {
				w[i] = (v - lo) / span
			} else {
				w[i] = 0
			}
		}
	}
	return nil
}
