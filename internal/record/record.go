// Package record holds the immutable input recording model.
package record

import (
	"cmp"
	"slices"
	"strings"
)

// Event is a rhythm-change annotation at a sample index.
type Event struct {
	Sample int    `csv:"sample"`
	Label  string `csv:"label"`
}

// Record is one recording: a single signal channel and its annotations.
type Record struct {
	ID         string
	SampleRate float64
	Signal     []float64
	Events     []Event
}

// Group is the annotation-density group of a record.
type Group string

const (
	MultiEvent  Group = "multi_event"
	SingleEvent Group = "single_event"
)

// Groups is the fixed processing order of density groups.
var Groups = []Group{MultiEvent, SingleEvent}

// SortEvents stably orders events by sample index.
func SortEvents(events []Event) []Event {
	sorted := slices.Clone(events)
	slices.SortStableFunc(sorted, func(a, b Event) int { return cmp.Compare(a.Sample, b.Sample) })
	return sorted
}

// DistinctLabels returns the sorted set of trimmed raw labels.
func DistinctLabels(events []Event) []string {
	seen := make(map[string]struct{}, len(events))
	labels := make([]string, 0, 4)
	for _, ev := range events {
		label := strings.TrimSpace(ev.Label)
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		labels = append(labels, label)
	}
	slices.Sort(labels)
	return labels
}

// GroupFor classifies a record by the number of distinct labels it carries.
func GroupFor(labels []string) Group {
	if len(labels) == 1 {
		return SingleEvent
	}
	return MultiEvent
}
