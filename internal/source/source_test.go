package source_test

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"rhythmset/internal/logging"
	"rhythmset/internal/record"
	"rhythmset/internal/source"
	"rhythmset/internal/testsupport"
)

func TestDirListsCompleteRecordsOnly(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteRecord(t, dir, testsupport.Record("04043", 128, testsupport.Span{Label: "(N", Seconds: 2}))
	testsupport.WriteRecord(t, dir, testsupport.Record("04015", 128, testsupport.Span{Label: "(AFIB", Seconds: 2}))
	testsupport.WriteRecord(t, dir, testsupport.Record("08219", 128, testsupport.Span{Label: "(N", Seconds: 1}))
	if err := os.Remove(filepath.Join(dir, "08219.ann.csv")); err != nil {
		t.Fatalf("remove sidecar: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write stray file: %v", err)
	}

	src := source.NewDir(dir, 0, logging.NewNop())
	ids, err := src.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !slices.Equal(ids, []string{"04015", "04043"}) {
		t.Fatalf("List = %v", ids)
	}
}

func TestDirLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := testsupport.Record("04048", 250,
		testsupport.Span{Label: "(N", Seconds: 3},
		testsupport.Span{Label: "(AFIB", Seconds: 2},
	)
	testsupport.WriteRecord(t, dir, want)

	got, err := source.Load(context.Background(), source.NewDir(dir, 0, nil), "04048")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.SampleRate != 250 {
		t.Fatalf("sample rate = %v", got.SampleRate)
	}
	if len(got.Signal) != len(want.Signal) {
		t.Fatalf("signal length = %d, want %d", len(got.Signal), len(want.Signal))
	}
	for i := range want.Signal {
		if math.Abs(got.Signal[i]-want.Signal[i]) > 0.001 {
			t.Fatalf("sample %d = %v, want %v", i, got.Signal[i], want.Signal[i])
		}
	}
	if !slices.Equal(got.Events, want.Events) {
		t.Fatalf("events = %v, want %v", got.Events, want.Events)
	}
}

func TestDirMissingRecord(t *testing.T) {
	src := source.NewDir(t.TempDir(), 0, nil)
	if _, _, err := src.LoadSignal(context.Background(), "nope"); !errors.Is(err, source.ErrNotFound) {
		t.Fatalf("LoadSignal error = %v", err)
	}
	if _, err := src.LoadEvents(context.Background(), "nope"); !errors.Is(err, source.ErrNotFound) {
		t.Fatalf("LoadEvents error = %v", err)
	}
	if _, err := source.NewDir(filepath.Join(t.TempDir(), "absent"), 0, nil).List(context.Background()); err == nil {
		t.Fatal("expected error for missing data dir")
	}
}

func TestDirRejectsBadChannel(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteRecord(t, dir, testsupport.Record("04015", 128, testsupport.Span{Label: "(AFIB", Seconds: 1}))
	if _, _, err := source.NewDir(dir, 3, nil).LoadSignal(context.Background(), "04015"); err == nil {
		t.Fatal("expected channel error")
	}
}

func TestMemorySource(t *testing.T) {
	rec := record.Record{ID: "b", SampleRate: 100, Signal: []float64{1, 2}, Events: []record.Event{{Label: "(N"}}}
	src := source.NewMemory(rec, record.Record{ID: "a"})
	ids, _ := src.List(context.Background())
	if !slices.Equal(ids, []string{"a", "b"}) {
		t.Fatalf("List = %v", ids)
	}
	samples, fs, err := src.LoadSignal(context.Background(), "b")
	if err != nil || fs != 100 || len(samples) != 2 {
		t.Fatalf("LoadSignal = %v %v %v", samples, fs, err)
	}
	samples[0] = 99
	if again, _, _ := src.LoadSignal(context.Background(), "b"); again[0] != 1 {
		t.Fatal("memory source leaked its backing slice")
	}
	if _, err := src.LoadEvents(context.Background(), "zzz"); !errors.Is(err, source.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
