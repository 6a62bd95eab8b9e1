// Package validate checks a finished allocation for record leakage and
// reports class balance and size warnings.
package validate

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/montanaflynn/stats"

	"rhythmset/internal/allocate"
	"rhythmset/internal/logging"
	"rhythmset/internal/profile"
)

// ErrRecordLeakage indicates a record present in more than one split.
var ErrRecordLeakage = errors.New("record present in more than one split")

// Code identifies a warning kind.
type Code string

const (
	EmptySplit    Code = "empty_split"
	RatioSpread   Code = "ratio_spread"
	LowClassCount Code = "low_class_count"
)

// Warning is a non-fatal validation finding.
type Warning struct {
	Code    Code           `json:"code"`
	Split   allocate.Split `json:"split,omitempty"`
	Message string         `json:"message"`
}

// Options holds the warning thresholds.
type Options struct {
	RatioTolerance  float64
	MinClassWindows int
}

// DefaultOptions returns a 0.15 ratio tolerance and a 100 window floor.
func DefaultOptions() Options {
	return Options{RatioTolerance: 0.15, MinClassWindows: 100}
}

// Membership lists the records of one split.
type Membership struct {
	Split    allocate.Split
	Profiles []profile.Profile
}

// Memberships extracts split membership from an allocation in split order.
func Memberships(res *allocate.Result) []Membership {
	out := make([]Membership, 0, len(allocate.Splits))
	for _, split := range allocate.Splits {
		out = append(out, Membership{Split: split, Profiles: res.Members(split)})
	}
	return out
}

// SplitStats aggregates one split.
type SplitStats struct {
	Split           allocate.Split `json:"split"`
	Records         int            `json:"records"`
	Windows         int            `json:"windows"`
	PositiveWindows int            `json:"positive_windows"`
	NegativeWindows int            `json:"negative_windows"`
	PositiveRatio   float64        `json:"positive_ratio"`
}

// Report is the outcome of a validation pass.
type Report struct {
	Stats       []SplitStats `json:"stats"`
	RatioSpread float64      `json:"ratio_spread"`
	Warnings    []Warning    `json:"warnings"`
}

// Summarize computes per-split statistics.
func Summarize(memberships []Membership) []SplitStats {
	out := make([]SplitStats, 0, len(memberships))
	for _, m := range memberships {
		s := SplitStats{Split: m.Split, Records: len(m.Profiles)}
		for _, p := range m.Profiles {
			s.Windows += p.TotalWindows
			s.PositiveWindows += p.PositiveWindows
		}
		s.NegativeWindows = s.Windows - s.PositiveWindows
		if s.Windows > 0 {
			s.PositiveRatio = float64(s.PositiveWindows) / float64(s.Windows)
		}
		out = append(out, s)
	}
	return out
}

// Check verifies that splits are disjoint and collects warnings. Leakage is
// returned as an error wrapping ErrRecordLeakage.
func Check(memberships []Membership, opts Options) (Report, error) {
	owner := make(map[string]allocate.Split)
	var leaked []string
	for _, m := range memberships {
		for _, p := range m.Profiles {
			if prev, ok := owner[p.RecordID]; ok && prev != m.Split {
				leaked = append(leaked, fmt.Sprintf("%s (%s/%s)", p.RecordID, prev, m.Split))
				continue
			}
			owner[p.RecordID] = m.Split
		}
	}
	if len(leaked) > 0 {
		return Report{}, fmt.Errorf("%w: %s", ErrRecordLeakage, strings.Join(leaked, ", "))
	}

	report := Report{Stats: Summarize(memberships)}
	var ratios []float64
	for _, s := range report.Stats {
		if s.Records == 0 {
			report.Warnings = append(report.Warnings, Warning{
				Code:    EmptySplit,
				Split:   s.Split,
				Message: fmt.Sprintf("%s split has no records", s.Split),
			})
			continue
		}
		if s.Windows > 0 {
			ratios = append(ratios, s.PositiveRatio)
		}
		if s.Split == allocate.Train {
			continue
		}
		for _, class := range []struct {
			name  string
			count int
		}{{"positive", s.PositiveWindows}, {"negative", s.NegativeWindows}} {
			if class.count < opts.MinClassWindows {
				report.Warnings = append(report.Warnings, Warning{
					Code:    LowClassCount,
					Split:   s.Split,
					Message: fmt.Sprintf("%s split has %d %s windows (minimum %d)", s.Split, class.count, class.name, opts.MinClassWindows),
				})
			}
		}
	}

	if len(ratios) > 1 {
		hi, _ := stats.Max(ratios)
		lo, _ := stats.Min(ratios)
		report.RatioSpread = hi - lo
		if report.RatioSpread > opts.RatioTolerance {
			report.Warnings = append(report.Warnings, Warning{
				Code:    RatioSpread,
				Message: fmt.Sprintf("positive ratio differs by %.3f across splits (tolerance %.3f)", report.RatioSpread, opts.RatioTolerance),
			})
		}
	}
	return report, nil
}

// Log emits one structured warning per finding.
func (r Report) Log(logger *slog.Logger) {
	for _, w := range r.Warnings {
		attrs := []logging.Attr{logging.String("code", string(w.Code))}
		if w.Split != "" {
			attrs = append(attrs, logging.String("split", string(w.Split)))
		}
		attrs = append(attrs,
			logging.String(logging.FieldErrorHint, hintFor(w.Code)),
			logging.String(logging.FieldImpact, "split is usable but may bias evaluation"),
		)
		logging.WarnWithContext(logger, w.Message, "split_validation", attrs...)
	}
}

func hintFor(code Code) string {
	switch code {
	case EmptySplit:
		return "add records or lower split.test_ratio / split.val_ratio"
	case RatioSpread:
		return "try another split.seed or add records to the sparse category"
	case LowClassCount:
		return "add records or lower validation.min_class_windows"
	default:
		return "check logs for details"
	}
}
