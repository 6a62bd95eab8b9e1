package profile_test

import (
	"testing"

	"rhythmset/internal/profile"
	"rhythmset/internal/record"
)

func TestNewCountsLabels(t *testing.T) {
	p := profile.New("04043", record.MultiEvent, []uint8{1, 0, 1, 1})
	if p.TotalWindows != 4 || p.PositiveWindows != 3 || p.NegativeWindows() != 1 {
		t.Fatalf("unexpected profile %+v", p)
	}
	if p.PositiveRatio() != 0.75 {
		t.Fatalf("ratio = %v", p.PositiveRatio())
	}
	if profile.New("empty", record.SingleEvent, nil).PositiveRatio() != 0 {
		t.Fatal("empty profile ratio should be 0")
	}
}

func TestCategorizeBoundariesAreInclusive(t *testing.T) {
	th := profile.DefaultThresholds()
	cases := []struct {
		ratio float64
		want  profile.Category
	}{
		{1, profile.PositiveHeavy},
		{0.7, profile.PositiveHeavy},
		{0.69, profile.Balanced},
		{0.31, profile.Balanced},
		{0.3, profile.NegativeHeavy},
		{0, profile.NegativeHeavy},
	}
	for _, tc := range cases {
		if got := th.Categorize(tc.ratio); got != tc.want {
			t.Fatalf("Categorize(%v) = %s, want %s", tc.ratio, got, tc.want)
		}
	}
}
