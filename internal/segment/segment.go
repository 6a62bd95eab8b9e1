// Package segment reconstructs labeled rhythm intervals from a record's
// annotation stream and concatenates them into a clean signal.
package segment

import (
	"errors"
	"strings"

	"rhythmset/internal/record"
	"rhythmset/internal/rhythm"
)

var (
	// ErrNoAnnotations indicates a record without any annotation events.
	ErrNoAnnotations = errors.New("record has no annotations")
	// ErrUnclassifiedRecord indicates a single-label record whose label is neither class.
	ErrUnclassifiedRecord = errors.New("single label is unclassified")
	// ErrNoClassifiableLabels indicates a multi-label record without any kept annotation.
	ErrNoClassifiableLabels = errors.New("no classifiable annotations")
	// ErrInsufficientAnnotations indicates fewer than two kept annotations.
	ErrInsufficientAnnotations = errors.New("insufficient annotations")
	// ErrNoSegments indicates every candidate interval was empty or out of range.
	ErrNoSegments = errors.New("no segments extracted")
)

// Segment is a labeled interval in clean-signal coordinates. SourceStart and
// SourceEnd locate the same interval in the original signal.
type Segment struct {
	Start       int
	End         int
	SourceStart int
	SourceEnd   int
	Class       rhythm.Class
	SourceLabel string
}

// Len returns the number of samples covered by the segment.
func (s Segment) Len() int { return s.End - s.Start }

// Options tunes extraction.
type Options struct {
	// StopAtUnclassified ends a kept segment at the next annotation of any
	// class instead of running to the next kept annotation.
	StopAtUnclassified bool
}

// Result is the output of a successful extraction.
type Result struct {
	Clean    []float64
	Segments []Segment
	Group    record.Group
	Labels   []string
}

// Extract builds the clean signal and its ordered segments.
func Extract(signal []float64, events []record.Event, classifier *rhythm.Classifier, opts Options) (Result, error) {
	if len(events) == 0 {
		return Result{}, ErrNoAnnotations
	}
	sorted := record.SortEvents(events)
	labels := record.DistinctLabels(sorted)
	group := record.GroupFor(labels)

	if group == record.SingleEvent {
		return wholeSignal(signal, labels[0], classifier, group, labels)
	}

	keep := make([]int, 0, len(sorted))
	for i, ev := range sorted {
		if classifier.Classify(ev.Label).Kept() {
			keep = append(keep, i)
		}
	}
	switch {
	case len(keep) == 0:
		return Result{}, ErrNoClassifiableLabels
	case len(keep) < 2:
		return Result{}, ErrInsufficientAnnotations
	}

	res := Result{Group: group, Labels: labels}
	for k := 0; k+1 < len(keep); k++ {
		first := sorted[keep[k]]
		endIdx := keep[k+1]
		if opts.StopAtUnclassified {
			endIdx = keep[k] + 1
		}
		start, end := first.Sample, sorted[endIdx].Sample
		if start < 0 || end > len(signal) || end <= start {
			continue
		}
		res.appendSegment(signal[start:end], start, classifier.Classify(first.Label), strings.TrimSpace(first.Label))
	}
	if len(res.Segments) == 0 {
		return Result{}, ErrNoSegments
	}
	return res, nil
}

func wholeSignal(signal []float64, label string, classifier *rhythm.Classifier, group record.Group, labels []string) (Result, error) {
	class := classifier.Classify(label)
	if !class.Kept() {
		return Result{}, ErrUnclassifiedRecord
	}
	if len(signal) == 0 {
		return Result{}, ErrNoSegments
	}
	res := Result{Group: group, Labels: labels}
	res.appendSegment(signal, 0, class, label)
	return res, nil
}

func (r *Result) appendSegment(slice []float64, sourceStart int, class rhythm.Class, label string) {
	start := len(r.Clean)
	r.Clean = append(r.Clean, slice...)
	r.Segments = append(r.Segments, Segment{
		Start:       start,
		End:         len(r.Clean),
		SourceStart: sourceStart,
		SourceEnd:   sourceStart + len(slice),
		Class:       class,
		SourceLabel: label,
	})
}
