package validate_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"rhythmset/internal/allocate"
	"rhythmset/internal/logging"
	"rhythmset/internal/profile"
	"rhythmset/internal/record"
	"rhythmset/internal/validate"
)

func prof(id string, total, positive int) profile.Profile {
	return profile.Profile{RecordID: id, Group: record.MultiEvent, TotalWindows: total, PositiveWindows: positive}
}

func TestCheckDetectsLeakage(t *testing.T) {
	memberships := []validate.Membership{
		{Split: allocate.Train, Profiles: []profile.Profile{prof("a", 10, 5), prof("b", 10, 5)}},
		{Split: allocate.Val, Profiles: []profile.Profile{prof("c", 10, 5)}},
		{Split: allocate.Test, Profiles: []profile.Profile{prof("b", 10, 5)}},
	}
	_, err := validate.Check(memberships, validate.DefaultOptions())
	if !errors.Is(err, validate.ErrRecordLeakage) {
		t.Fatalf("expected leakage error, got %v", err)
	}
	if !strings.Contains(err.Error(), "b (train/test)") {
		t.Fatalf("leak message should name the record: %v", err)
	}
}

func TestCheckBalancedSplitsHaveNoWarnings(t *testing.T) {
	memberships := []validate.Membership{
		{Split: allocate.Train, Profiles: []profile.Profile{prof("a", 1000, 500)}},
		{Split: allocate.Val, Profiles: []profile.Profile{prof("b", 400, 180)}},
		{Split: allocate.Test, Profiles: []profile.Profile{prof("c", 400, 220)}},
	}
	report, err := validate.Check(memberships, validate.DefaultOptions())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(report.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %+v", report.Warnings)
	}
	if report.Stats[1].NegativeWindows != 220 || report.Stats[2].PositiveRatio != 0.55 {
		t.Fatalf("unexpected stats: %+v", report.Stats)
	}
	if report.RatioSpread < 0.099 || report.RatioSpread > 0.101 {
		t.Fatalf("ratio spread = %v", report.RatioSpread)
	}
}

func TestCheckWarnings(t *testing.T) {
	memberships := []validate.Membership{
		{Split: allocate.Train, Profiles: []profile.Profile{prof("a", 1000, 900)}},
		{Split: allocate.Val, Profiles: []profile.Profile{prof("b", 300, 30)}},
		{Split: allocate.Test},
	}
	report, err := validate.Check(memberships, validate.DefaultOptions())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	codes := map[validate.Code]int{}
	for _, w := range report.Warnings {
		codes[w.Code]++
	}
	if codes[validate.EmptySplit] != 1 || codes[validate.RatioSpread] != 1 || codes[validate.LowClassCount] != 1 {
		t.Fatalf("unexpected warnings: %+v", report.Warnings)
	}

	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	report.Log(logger)
	if got := strings.Count(buf.String(), `"event_type":"split_validation"`); got != 3 {
		t.Fatalf("expected 3 logged warnings, got %d: %s", got, buf.String())
	}
}

func TestCheckWarnsOnEmptyTrain(t *testing.T) {
	memberships := []validate.Membership{
		{Split: allocate.Train},
		{Split: allocate.Val, Profiles: []profile.Profile{prof("b", 300, 150)}},
		{Split: allocate.Test, Profiles: []profile.Profile{prof("c", 300, 150)}},
	}
	report, err := validate.Check(memberships, validate.DefaultOptions())
	if err != nil {
		t.Fatalf("empty train must not be fatal: %v", err)
	}
	if len(report.Warnings) != 1 || report.Warnings[0].Split != allocate.Train {
		t.Fatalf("unexpected warnings: %+v", report.Warnings)
	}
}

func TestMembershipsFollowAllocation(t *testing.T) {
	res, err := allocate.Allocate([]profile.Profile{prof("x", 10, 10)}, allocate.Options{TestRatio: 0.2, ValRatio: 0.2, Thresholds: profile.DefaultThresholds()}, allocate.NewRand(1))
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	m := validate.Memberships(res)
	if len(m) != 3 || m[0].Split != allocate.Train || len(m[0].Profiles) != 1 {
		t.Fatalf("unexpected memberships: %+v", m)
	}
}
