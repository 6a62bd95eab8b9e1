package artifact_test

import (
	"errors"
	"os"
	"slices"
	"testing"
	"time"

	"rhythmset/internal/allocate"
	"rhythmset/internal/artifact"
	"rhythmset/internal/profile"
	"rhythmset/internal/record"
	"rhythmset/internal/validate"
)

func newStore(t *testing.T) *artifact.Store {
	t.Helper()
	base := t.TempDir()
	return artifact.NewStore(base+"/processed", base+"/splits")
}

func TestRecordArtifactRoundTrip(t *testing.T) {
	store := newStore(t)
	in := &artifact.RecordArtifact{
		RecordID:        "04015",
		Group:           record.MultiEvent,
		SampleRate:      250,
		WindowSeconds:   10,
		Overlap:         0.5,
		WindowSamples:   2500,
		StepSamples:     1250,
		Normalization:   "zscore",
		Windows:         [][]float32{{0.5, -0.5}, {1, 2}},
		Labels:          []uint8{1, 0},
		TotalWindows:    2,
		PositiveWindows: 1,
		NegativeWindows: 1,
		Segments: []artifact.SegmentInfo{
			{Start: 0, End: 2500, SourceStart: 10, SourceEnd: 2510, DurationSeconds: 10, Label: 1, SourceLabel: "(AFIB"},
		},
		AnnotationLabels: []string{"(AFIB", "(N"},
	}
	if err := store.WriteRecord(in); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	out, err := store.ReadRecord("04015")
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if out.RecordID != in.RecordID || out.Group != in.Group || len(out.Windows) != 2 || out.Windows[1][1] != 2 {
		t.Fatalf("round trip mismatch: %+v", out)
	}
	if !slices.Equal(out.Labels, in.Labels) || out.Segments[0] != in.Segments[0] {
		t.Fatalf("round trip mismatch: %+v", out)
	}

	ids, err := store.ListRecords()
	if err != nil || !slices.Equal(ids, []string{"04015"}) {
		t.Fatalf("ListRecords = %v, %v", ids, err)
	}
	if err := store.RemoveRecord("04015"); err != nil {
		t.Fatalf("RemoveRecord: %v", err)
	}
	if err := store.RemoveRecord("04015"); err != nil {
		t.Fatalf("RemoveRecord twice: %v", err)
	}
	if ids, _ := store.ListRecords(); len(ids) != 0 {
		t.Fatalf("expected no records, got %v", ids)
	}
}

func TestSplitArtifactIntegrity(t *testing.T) {
	store := newStore(t)
	in := &artifact.SplitArtifact{
		Split:         allocate.Val,
		Windows:       [][]float32{{1}, {2}, {3}},
		Labels:        []uint8{0, 1, 1},
		RecordMapping: []string{"a", "b", "b"},
		Members:       []string{"a", "b"},
		Stats:         validate.SplitStats{Split: allocate.Val, Records: 2, Windows: 3, PositiveWindows: 2, NegativeWindows: 1},
	}
	info, err := store.WriteSplit(in)
	if err != nil {
		t.Fatalf("WriteSplit: %v", err)
	}
	if info.Path != "val_data.rsw" || info.Size == 0 || len(info.SHA256) != 64 {
		t.Fatalf("unexpected file info %+v", info)
	}
	if err := store.VerifySplit(allocate.Val, info); err != nil {
		t.Fatalf("VerifySplit: %v", err)
	}
	out, err := store.ReadSplit(allocate.Val)
	if err != nil {
		t.Fatalf("ReadSplit: %v", err)
	}
	if !slices.Equal(out.RecordMapping, in.RecordMapping) || out.Stats != in.Stats {
		t.Fatalf("round trip mismatch: %+v", out)
	}

	if err := os.WriteFile(store.SplitPath(allocate.Test), []byte("not an artifact"), 0o644); err != nil {
		t.Fatalf("write junk: %v", err)
	}
	if _, err := store.ReadSplit(allocate.Test); !errors.Is(err, artifact.ErrBadFormat) {
		t.Fatalf("expected ErrBadFormat, got %v", err)
	}
	if err := store.VerifySplit(allocate.Test, info); err == nil {
		t.Fatal("expected integrity failure for a different file")
	}
}

func TestSummaryAndMetadataJSON(t *testing.T) {
	store := newStore(t)
	summary := &artifact.PreprocessSummary{
		RunID:       "run-1",
		CreatedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Succeeded:   []string{"a", "b"},
		Failed:      []artifact.Failure{{RecordID: "c", Reason: "insufficient_annotations", Error: "insufficient annotations"}},
		SingleEvent: []string{"b"},
		MultiEvent:  []string{"a"},
	}
	if err := store.WriteSummary(summary); err != nil {
		t.Fatalf("WriteSummary: %v", err)
	}
	gotSummary, err := store.ReadSummary()
	if err != nil {
		t.Fatalf("ReadSummary: %v", err)
	}
	if gotSummary.RunID != "run-1" || len(gotSummary.Failed) != 1 || !gotSummary.CreatedAt.Equal(summary.CreatedAt) {
		t.Fatalf("summary mismatch: %+v", gotSummary)
	}

	meta := &artifact.SplitMetadata{
		RunID:    "run-2",
		Method:   "stratified_record_level",
		Members:  map[allocate.Split][]string{allocate.Train: {"a"}, allocate.Test: {"b"}},
		Warnings: []validate.Warning{{Code: validate.EmptySplit, Split: allocate.Val, Message: "val split has no records"}},
	}
	if err := store.WriteMetadata(meta); err != nil {
		t.Fatalf("WriteMetadata: %v", err)
	}
	gotMeta, err := store.ReadMetadata()
	if err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if !slices.Equal(gotMeta.Members[allocate.Test], []string{"b"}) || gotMeta.Warnings[0].Code != validate.EmptySplit {
		t.Fatalf("metadata mismatch: %+v", gotMeta)
	}
}

func TestAllocationCSV(t *testing.T) {
	store := newStore(t)
	res, err := allocate.Allocate([]profile.Profile{
		{RecordID: "b", Group: record.MultiEvent, TotalWindows: 10, PositiveWindows: 8},
		{RecordID: "a", Group: record.SingleEvent, TotalWindows: 4, PositiveWindows: 0},
	}, allocate.Options{TestRatio: 0.2, ValRatio: 0.2, Thresholds: profile.DefaultThresholds()}, allocate.NewRand(42))
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if err := store.WriteAllocation(artifact.AllocationRows(res)); err != nil {
		t.Fatalf("WriteAllocation: %v", err)
	}
	rows, err := store.ReadAllocation()
	if err != nil {
		t.Fatalf("ReadAllocation: %v", err)
	}
	if len(rows) != 2 || rows[0].RecordID != "a" || rows[1].PositiveRatio != 0.8 || rows[1].Category != "positive_heavy" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	data, err := os.ReadFile(store.AllocationPath())
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if got := firstLine(string(data)); got != "record_id,split,record_type,category,total_windows,af_windows,af_ratio" {
		t.Fatalf("unexpected header %q", got)
	}
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' || r == '\r' {
			return s[:i]
		}
	}
	return s
}
