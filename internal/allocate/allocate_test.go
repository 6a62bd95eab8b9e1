package allocate_test

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"testing"

	"rhythmset/internal/allocate"
	"rhythmset/internal/profile"
	"rhythmset/internal/record"
)

func defaultOptions() allocate.Options {
	return allocate.Options{TestRatio: 0.2, ValRatio: 0.2, Thresholds: profile.DefaultThresholds()}
}

func profiles(prefix string, n int, group record.Group, positive int) []profile.Profile {
	out := make([]profile.Profile, n)
	for i := range out {
		out[i] = profile.Profile{
			RecordID:        fmt.Sprintf("%s%02d", prefix, i),
			Group:           group,
			TotalWindows:    10,
			PositiveWindows: positive,
		}
	}
	return out
}

func TestGroupSizes(t *testing.T) {
	tests := []struct {
		n                   int
		testRatio, valRatio float64
		wantTest, wantVal   int
	}{
		{n: 5, testRatio: 0.2, valRatio: 0.2, wantTest: 1, wantVal: 1},
		{n: 2, testRatio: 0.2, valRatio: 0.2, wantTest: 0, wantVal: 1},
		{n: 1, testRatio: 0.2, valRatio: 0.2, wantTest: 0, wantVal: 0},
		{n: 3, testRatio: 0.9, valRatio: 0.9, wantTest: 1, wantVal: 1},
		{n: 2, testRatio: 0.9, valRatio: 0.9, wantTest: 1, wantVal: 0},
		{n: 10, testRatio: 0.3, valRatio: 0.2, wantTest: 3, wantVal: 2},
		{n: 4, testRatio: 0, valRatio: 0, wantTest: 1, wantVal: 1},
	}
	for _, tt := range tests {
		gotTest, gotVal := allocate.GroupSizes(tt.n, tt.testRatio, tt.valRatio)
		if gotTest != tt.wantTest || gotVal != tt.wantVal {
			t.Fatalf("GroupSizes(%d, %v, %v) = %d/%d, want %d/%d", tt.n, tt.testRatio, tt.valRatio, gotTest, gotVal, tt.wantTest, tt.wantVal)
		}
	}
}

func TestGroupSizesAlwaysLeavesTrain(t *testing.T) {
	ratios := []float64{0, 0.1, 0.2, 0.33, 0.5, 0.9, 0.99}
	for n := 1; n <= 60; n++ {
		for _, tr := range ratios {
			for _, vr := range ratios {
				nTest, nVal := allocate.GroupSizes(n, tr, vr)
				if n-nTest-nVal < 1 {
					t.Fatalf("n=%d ratios %v/%v leaves no training record (%d/%d)", n, tr, vr, nTest, nVal)
				}
			}
		}
	}
}

func TestAllocateCoversEveryRecordOnce(t *testing.T) {
	input := slices.Concat(
		profiles("ph", 5, record.MultiEvent, 9),
		profiles("ps", 2, record.SingleEvent, 9),
		profiles("nh", 7, record.MultiEvent, 1),
		profiles("ns", 1, record.SingleEvent, 0),
		profiles("r", 3, record.MultiEvent, 5),
	)
	res, err := allocate.Allocate(input, defaultOptions(), allocate.NewRand(42))
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if len(res.Assignments) != len(input) {
		t.Fatalf("assigned %d of %d records", len(res.Assignments), len(input))
	}

	seen := map[string]allocate.Split{}
	for _, split := range allocate.Splits {
		for _, id := range res.MemberIDs(split) {
			if prev, dup := seen[id]; dup {
				t.Fatalf("record %s in both %s and %s", id, prev, split)
			}
			seen[id] = split
		}
	}
	if len(seen) != len(input) {
		t.Fatalf("splits hold %d records, want %d", len(seen), len(input))
	}

	counts := map[string]map[allocate.Split]int{}
	for _, a := range res.Assignments {
		k := string(a.Category) + "/" + string(a.Profile.Group)
		if counts[k] == nil {
			counts[k] = map[allocate.Split]int{}
		}
		counts[k][a.Split]++
	}
	want := map[string]map[allocate.Split]int{
		"positive_heavy/multi_event":  {allocate.Test: 1, allocate.Val: 1, allocate.Train: 3},
		"positive_heavy/single_event": {allocate.Val: 1, allocate.Train: 1},
		"negative_heavy/multi_event":  {allocate.Test: 1, allocate.Val: 1, allocate.Train: 5},
		"negative_heavy/single_event": {allocate.Train: 1},
		"balanced/multi_event":        {allocate.Test: 1, allocate.Val: 1, allocate.Train: 1},
	}
	for k, w := range want {
		if !maps.Equal(counts[k], w) {
			t.Fatalf("%s counts = %v, want %v", k, counts[k], w)
		}
	}
}

func TestAllocateGroupSizeCases(t *testing.T) {
	tests := []struct {
		name                string
		n                   int
		testRatio, valRatio float64
		want                map[allocate.Split]int
	}{
		{"five records", 5, 0.2, 0.2, map[allocate.Split]int{allocate.Test: 1, allocate.Val: 1, allocate.Train: 3}},
		{"two records", 2, 0.2, 0.2, map[allocate.Split]int{allocate.Val: 1, allocate.Train: 1}},
		{"one record", 1, 0.2, 0.2, map[allocate.Split]int{allocate.Train: 1}},
		{"oversized ratios", 3, 0.9, 0.9, map[allocate.Split]int{allocate.Test: 1, allocate.Val: 1, allocate.Train: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := allocate.Options{TestRatio: tt.testRatio, ValRatio: tt.valRatio, Thresholds: profile.DefaultThresholds()}
			res, err := allocate.Allocate(profiles("g", tt.n, record.MultiEvent, 9), opts, allocate.NewRand(42))
			if err != nil {
				t.Fatalf("Allocate(n=%d, %v/%v): %v", tt.n, tt.testRatio, tt.valRatio, err)
			}
			got := map[allocate.Split]int{}
			for _, a := range res.Assignments {
				got[a.Split]++
			}
			if !maps.Equal(got, tt.want) {
				t.Fatalf("split counts = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAllocateIsDeterministic(t *testing.T) {
	input := slices.Concat(profiles("a", 9, record.MultiEvent, 8), profiles("b", 6, record.MultiEvent, 2))
	first, err := allocate.Allocate(input, defaultOptions(), allocate.NewRand(7))
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	reversed := slices.Clone(input)
	slices.Reverse(reversed)
	second, err := allocate.Allocate(reversed, defaultOptions(), allocate.NewRand(7))
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if !maps.Equal(first.Mapping(), second.Mapping()) {
		t.Fatalf("same seed and record set produced different mappings:\n%v\n%v", first.Mapping(), second.Mapping())
	}

	differs := false
	for seed := int64(0); seed < 20 && !differs; seed++ {
		other, err := allocate.Allocate(input, defaultOptions(), allocate.NewRand(seed))
		if err != nil {
			t.Fatalf("Allocate: %v", err)
		}
		differs = !maps.Equal(first.Mapping(), other.Mapping())
	}
	if !differs {
		t.Fatal("expected some seed to produce a different mapping")
	}
}

func TestAllocateRejectsBadInput(t *testing.T) {
	input := profiles("bm", 3, record.MultiEvent, 5)
	if _, err := allocate.Allocate(input, allocate.Options{TestRatio: 1, ValRatio: 0.2}, allocate.NewRand(1)); !errors.Is(err, allocate.ErrInvalidRatio) {
		t.Fatalf("expected ErrInvalidRatio, got %v", err)
	}
	if _, err := allocate.Allocate(input, allocate.Options{TestRatio: -0.1}, allocate.NewRand(1)); !errors.Is(err, allocate.ErrInvalidRatio) {
		t.Fatalf("expected ErrInvalidRatio, got %v", err)
	}
	dup := append(slices.Clone(input), input[0])
	if _, err := allocate.Allocate(dup, defaultOptions(), allocate.NewRand(1)); !errors.Is(err, allocate.ErrDuplicateRecord) {
		t.Fatalf("expected ErrDuplicateRecord, got %v", err)
	}
	if _, err := allocate.Allocate(input, defaultOptions(), nil); err == nil {
		t.Fatal("expected error without random source")
	}
}

func TestTableOrdersBySplit(t *testing.T) {
	res, err := allocate.Allocate(profiles("r", 5, record.MultiEvent, 10), defaultOptions(), allocate.NewRand(42))
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	rows := res.Table()
	var order []allocate.Split
	for _, row := range rows {
		if len(order) == 0 || order[len(order)-1] != row.Split {
			order = append(order, row.Split)
		}
	}
	if !slices.Equal(order, allocate.Splits) {
		t.Fatalf("table split order = %v", order)
	}
	if split, ok := res.SplitOf(rows[0].Profile.RecordID); !ok || split != allocate.Train {
		t.Fatalf("SplitOf(%s) = %s, %v", rows[0].Profile.RecordID, split, ok)
	}
	if _, ok := res.SplitOf("missing"); ok {
		t.Fatal("SplitOf should miss unknown ids")
	}
}
