package normalize_test

import (
	"math"
	"testing"

	"github.com/montanaflynn/stats"

	"rhythmset/internal/normalize"
)

func TestZScorePerWindow(t *testing.T) {
	windows := [][]float64{{1, 2, 3, 4}, {10, 10, 10, 10}}
	if err := normalize.Apply(normalize.ZScore, windows); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	mean, _ := stats.Mean(windows[0])
	sd, _ := stats.StandardDeviationPopulation(windows[0])
	if math.Abs(mean) > 1e-12 || math.Abs(sd-1) > 1e-12 {
		t.Fatalf("window 0 mean=%v sd=%v", mean, sd)
	}
	for _, v := range windows[1] {
		if v != 0 {
			t.Fatalf("flat window should only be centered, got %v", windows[1])
		}
	}
}

func TestMinMaxIsGlobal(t *testing.T) {
	windows := [][]float64{{0, 5}, {10, 2.5}}
	if err := normalize.Apply(normalize.MinMax, windows); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	want := [][]float64{{0, 0.5}, {1, 0.25}}
	for i := range want {
		for j := range want[i] {
			if math.Abs(windows[i][j]-want[i][j]) > 1e-12 {
				t.Fatalf("windows = %v, want %v", windows, want)
			}
		}
	}

	flat := [][]float64{{3, 3}, {3}}
	if err := normalize.Apply(normalize.MinMax, flat); err != nil {
		t.Fatalf("Apply flat: %v", err)
	}
	if flat[0][0] != 0 || flat[1][0] != 0 {
		t.Fatalf("flat set should map to 0, got %v", flat)
	}
}

func TestParseMethod(t *testing.T) {
	for in, want := range map[string]normalize.Method{"": normalize.ZScore, " MinMax ": normalize.MinMax, "none": normalize.None} {
		got, err := normalize.ParseMethod(in)
		if err != nil || got != want {
			t.Fatalf("ParseMethod(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := normalize.ParseMethod("robust"); err == nil {
		t.Fatal("expected error for unknown method")
	}
	if err := normalize.Apply(normalize.Method("robust"), nil); err == nil {
		t.Fatal("expected Apply to reject unknown method")
	}
}
