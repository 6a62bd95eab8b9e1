package record_test

import (
	"math"
	"slices"
	"testing"

	"rhythmset/internal/record"
)

func TestSortEventsIsStable(t *testing.T) {
	events := []record.Event{{Sample: 30, Label: "(N"}, {Sample: 10, Label: "(AFIB"}, {Sample: 10, Label: "(AFL"}}
	sorted := record.SortEvents(events)
	want := []record.Event{{Sample: 10, Label: "(AFIB"}, {Sample: 10, Label: "(AFL"}, {Sample: 30, Label: "(N"}}
	if !slices.Equal(sorted, want) {
		t.Fatalf("SortEvents = %v, want %v", sorted, want)
	}
	if events[0].Sample != 30 {
		t.Fatal("SortEvents must not reorder its input")
	}
}

func TestSortEventsExtremeSamples(t *testing.T) {
	events := []record.Event{{Sample: math.MaxInt, Label: "(N"}, {Sample: math.MinInt + 1, Label: "(AFIB"}, {Sample: 0, Label: "(AFL"}}
	sorted := record.SortEvents(events)
	want := []int{math.MinInt + 1, 0, math.MaxInt}
	for i, ev := range sorted {
		if ev.Sample != want[i] {
			t.Fatalf("SortEvents[%d].Sample = %d, want %d", i, ev.Sample, want[i])
		}
	}
}

func TestDistinctLabelsAndGroup(t *testing.T) {
	events := []record.Event{{Label: "(N"}, {Label: " (N"}, {Label: "(AFIB"}}
	labels := record.DistinctLabels(events)
	if !slices.Equal(labels, []string{"(AFIB", "(N"}) {
		t.Fatalf("DistinctLabels = %v", labels)
	}
	if record.GroupFor(labels) != record.MultiEvent {
		t.Fatal("expected multi-event group")
	}
	if record.GroupFor([]string{"(AFIB"}) != record.SingleEvent {
		t.Fatal("expected single-event group")
	}
}
