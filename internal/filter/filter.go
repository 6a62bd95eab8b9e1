// Package filter conditions raw signals before segmentation.
package filter

import (
	"fmt"

	"github.com/montanaflynn/stats"
)

// Filter transforms a signal sampled at fs and returns the conditioned copy.
type Filter interface {
	Apply(signal []float64, fs float64) ([]float64, error)
}

// Identity returns the signal unchanged.
type Identity struct{}

func (Identity) Apply(signal []float64, _ float64) ([]float64, error) {
	return signal, nil
}

// DCRemoval subtracts the signal mean.
type DCRemoval struct{}

func (DCRemoval) Apply(signal []float64, _ float64) ([]float64, error) {
	if len(signal) == 0 {
		return signal, nil
	}
	mean, err := stats.Mean(signal)
	if err != nil {
		return nil, fmt.Errorf("dc removal: %w", err)
	}
	out := make([]float64, len(signal))
	for i, v := range signal {
		out[i] = v - mean
	}
	return out, nil
}

// Chain applies filters in order.
type Chain []Filter

func (c Chain) Apply(signal []float64, fs float64) ([]float64, error) {
	var err error
	for _, f := range c {
		if signal, err = f.Apply(signal, fs); err != nil {
			return nil, err
		}
	}
	return signal, nil
}

// FromConfig returns the conditioning chain selected by configuration.
func FromConfig(dcRemoval bool) Filter {
	if dcRemoval {
		return Chain{DCRemoval{}}
	}
	return Identity{}
}
