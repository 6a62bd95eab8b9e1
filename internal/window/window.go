// Package window slides fixed-length windows across extracted segments.
package window

import (
	"errors"
	"fmt"
	"math"

	"rhythmset/internal/segment"
)

// ErrInvalidParams indicates window parameters that cannot produce windows.
var ErrInvalidParams = errors.New("invalid window parameters")

// Params describes the sliding window geometry.
type Params struct {
	WindowSeconds float64
	Overlap       float64
	SampleRate    float64
}

// Sizes returns the window length and step in samples.
func (p Params) Sizes() (size, step int, err error) {
	switch {
	case !(p.WindowSeconds > 0):
		return 0, 0, fmt.Errorf("%w: window seconds must be positive, got %v", ErrInvalidParams, p.WindowSeconds)
	case !(p.SampleRate > 0):
		return 0, 0, fmt.Errorf("%w: sample rate must be positive, got %v", ErrInvalidParams, p.SampleRate)
	case p.Overlap < 0 || p.Overlap >= 1 || math.IsNaN(p.Overlap):
		return 0, 0, fmt.Errorf("%w: overlap must be in [0,1), got %v", ErrInvalidParams, p.Overlap)
	}
	size = int(math.Round(p.WindowSeconds * p.SampleRate))
	if size < 1 {
		return 0, 0, fmt.Errorf("%w: window of %v s at %v Hz is shorter than one sample", ErrInvalidParams, p.WindowSeconds, p.SampleRate)
	}
	step = int(math.Round(float64(size) * (1 - p.Overlap)))
	if step < 1 {
		return 0, 0, fmt.Errorf("%w: overlap %v leaves a zero-sample step", ErrInvalidParams, p.Overlap)
	}
	return size, step, nil
}

// Window is a fixed-length slice of the clean signal owned by one record.
// Start and End are clean-signal coordinates.
type Window struct {
	RecordID string
	Start    int
	End      int
	Label    uint8
	Samples  []float64
}

// Generate emits every full window inside each segment. Windows never cross
// a segment boundary and the remainder of each segment is discarded.
func Generate(recordID string, clean []float64, segments []segment.Segment, p Params) ([]Window, error) {
	size, step, err := p.Sizes()
	if err != nil {
		return nil, err
	}
	var windows []Window
	for _, seg := range segments {
		label, ok := seg.Class.Label()
		if !ok {
			continue
		}
		end := min(seg.End, len(clean))
		for start := seg.Start; start+size <= end; start += step {
			samples := make([]float64, size)
			copy(samples, clean[start:start+size])
			windows = append(windows, Window{
				RecordID: recordID,
				Start:    start,
				End:      start + size,
				Label:    label,
				Samples:  samples,
			})
		}
	}
	return windows, nil
}
