package testsupport

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"rhythmset/internal/edf"
	"rhythmset/internal/record"
	"rhythmset/internal/source"
)

// WriteRecord stores rec as `<id>.edf` plus `<id>.ann.csv` under dir. The
// signal length must be a whole number of seconds.
func WriteRecord(t testing.TB, dir string, rec record.Record) {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	fs := int(rec.SampleRate)
	if fs <= 0 || len(rec.Signal)%fs != 0 {
		t.Fatalf("record %s: %d samples is not a whole number of seconds at %d Hz", rec.ID, len(rec.Signal), fs)
	}

	f, err := os.OpenFile(filepath.Join(dir, rec.ID+".edf"), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		t.Fatalf("create edf: %v", err)
	}
	defer f.Close()

	w, err := edf.Create(f, edf.Header{
		PatientID:          rec.ID,
		RecordingID:        "synthetic",
		StartTime:          time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		DataRecordDuration: time.Second,
		Signals: []edf.Signal{{
			Label:             "ECG1",
			PhysicalDimension: "mV",
			PhysicalMin:       -5,
			PhysicalMax:       5,
			DigitalMin:        -32768,
			DigitalMax:        32767,
			SamplesPerRecord:  fs,
		}},
	})
	if err != nil {
		t.Fatalf("edf.Create: %v", err)
	}
	for start := 0; start < len(rec.Signal); start += fs {
		if err := w.WriteRecord([][]float64{rec.Signal[start : start+fs]}); err != nil {
			t.Fatalf("write data record: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close edf: %v", err)
	}

	if err := source.WriteEvents(filepath.Join(dir, rec.ID+".ann.csv"), rec.Events); err != nil {
		t.Fatalf("write annotations: %v", err)
	}
}
