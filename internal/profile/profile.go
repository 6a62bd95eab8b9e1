// Package profile summarizes windowed records and buckets them by class balance.
package profile

import "rhythmset/internal/record"

// Category buckets a record by its positive window ratio.
type Category string

const (
	PositiveHeavy Category = "positive_heavy"
	NegativeHeavy Category = "negative_heavy"
	Balanced      Category = "balanced"
)

// Categories is the fixed allocation order of categories.
var Categories = []Category{PositiveHeavy, NegativeHeavy, Balanced}

// Thresholds are the inclusive ratio bounds of the heavy categories.
type Thresholds struct {
	PositiveHeavy float64
	NegativeHeavy float64
}

// DefaultThresholds returns 0.7 / 0.3.
func DefaultThresholds() Thresholds {
	return Thresholds{PositiveHeavy: 0.7, NegativeHeavy: 0.3}
}

// Categorize buckets a positive ratio.
func (t Thresholds) Categorize(ratio float64) Category {
	switch {
	case ratio >= t.PositiveHeavy:
		return PositiveHeavy
	case ratio <= t.NegativeHeavy:
		return NegativeHeavy
	default:
		return Balanced
	}
}

// Profile is the per-record aggregate used for allocation.
type Profile struct {
	RecordID        string       `json:"record_id"`
	Group           record.Group `json:"group"`
	TotalWindows    int          `json:"total_windows"`
	PositiveWindows int          `json:"positive_windows"`
}

// New counts the positive labels of a record's windows.
func New(recordID string, group record.Group, labels []uint8) Profile {
	p := Profile{RecordID: recordID, Group: group, TotalWindows: len(labels)}
	for _, l := range labels {
		if l == 1 {
			p.PositiveWindows++
		}
	}
	return p
}

// NegativeWindows returns the number of negative windows.
func (p Profile) NegativeWindows() int { return p.TotalWindows - p.PositiveWindows }

// PositiveRatio returns positive/total, or 0 for a record without windows.
func (p Profile) PositiveRatio() float64 {
	if p.TotalWindows == 0 {
		return 0
	}
	return float64(p.PositiveWindows) / float64(p.TotalWindows)
}
