// Package source discovers and loads input recordings.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gocarina/gocsv"

	"rhythmset/internal/edf"
	"rhythmset/internal/logging"
	"rhythmset/internal/record"
)

// ErrNotFound indicates an unknown record id.
var ErrNotFound = errors.New("record not found")

const (
	signalExt     = ".edf"
	annotationExt = ".ann.csv"
)

// Source lists and loads records.
type Source interface {
	List(ctx context.Context) ([]string, error)
	LoadSignal(ctx context.Context, id string) ([]float64, float64, error)
	LoadEvents(ctx context.Context, id string) ([]record.Event, error)
}

// Load reads the signal and annotations of one record.
func Load(ctx context.Context, src Source, id string) (record.Record, error) {
	samples, fs, err := src.LoadSignal(ctx, id)
	if err != nil {
		return record.Record{}, fmt.Errorf("load signal: %w", err)
	}
	events, err := src.LoadEvents(ctx, id)
	if err != nil {
		return record.Record{}, fmt.Errorf("load annotations: %w", err)
	}
	return record.Record{ID: id, SampleRate: fs, Signal: samples, Events: events}, nil
}

// Dir reads `<id>.edf` signals with `<id>.ann.csv` annotation sidecars.
// The sidecar holds `sample,label` rows.
type Dir struct {
	root        string
	signalIndex int
	logger      *slog.Logger
}

// NewDir returns a directory source reading one EDF channel.
func NewDir(root string, signalIndex int, logger *slog.Logger) *Dir {
	return &Dir{
		root:        root,
		signalIndex: signalIndex,
		logger:      logging.NewComponentLogger(logger, "source"),
	}
}

// List returns the sorted ids of records whose signal and annotation files
// both exist. Incomplete records are logged and skipped.
func (d *Dir) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}
	var ids []string
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := entry.Name()
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(name), signalExt) {
			continue
		}
		id := strings.TrimSuffix(name, filepath.Ext(name))
		if _, err := os.Stat(d.annotationPath(id)); err != nil {
			logging.WarnWithContext(d.logger, "skipping record without annotations", "record_incomplete",
				logging.String(logging.FieldRecordID, id),
				logging.String("expected", filepath.Base(d.annotationPath(id))),
				logging.String(logging.FieldErrorHint, "export annotations as <id>.ann.csv with sample,label columns"),
				logging.String(logging.FieldImpact, "record excluded from preprocessing"),
			)
			continue
		}
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// LoadSignal reads the configured channel and its sampling rate.
func (d *Dir) LoadSignal(ctx context.Context, id string) ([]float64, float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	f, err := os.Open(d.signalPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, 0, err
	}
	defer f.Close()

	reader, err := edf.Open(f)
	if err != nil {
		return nil, 0, fmt.Errorf("open edf %s: %w", id, err)
	}
	fs, err := reader.Header().SampleRate(d.signalIndex)
	if err != nil {
		return nil, 0, fmt.Errorf("sample rate %s: %w", id, err)
	}
	samples, err := reader.ReadSignal(d.signalIndex)
	if err != nil {
		return nil, 0, fmt.Errorf("read signal %s: %w", id, err)
	}
	return samples, fs, nil
}

// LoadEvents decodes the annotation sidecar.
func (d *Dir) LoadEvents(ctx context.Context, id string) ([]record.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(d.annotationPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	defer f.Close()

	events := []record.Event{}
	if err := gocsv.UnmarshalFile(f, &events); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode annotations %s: %w", id, err)
	}
	for i := range events {
		events[i].Label = strings.TrimSpace(events[i].Label)
	}
	return events, nil
}

func (d *Dir) signalPath(id string) string {
	return filepath.Join(d.root, id+signalExt)
}

func (d *Dir) annotationPath(id string) string {
	return filepath.Join(d.root, id+annotationExt)
}

// WriteEvents encodes annotations in the sidecar format.
func WriteEvents(path string, events []record.Event) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	rows := slices.Clone(events)
	if err := gocsv.MarshalFile(&rows, f); err != nil {
		return fmt.Errorf("encode annotations: %w", err)
	}
	return f.Close()
}

// Memory serves records held in memory.
type Memory struct {
	records map[string]record.Record
}

// NewMemory returns a source over the given records.
func NewMemory(records ...record.Record) *Memory {
	m := &Memory{records: make(map[string]record.Record, len(records))}
	for _, r := range records {
		m.records[r.ID] = r
	}
	return m
}

// List returns the held record ids in sorted order.
func (m *Memory) List(context.Context) ([]string, error) {
	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// LoadSignal returns a copy of a record's samples and sampling rate.
func (m *Memory) LoadSignal(_ context.Context, id string) ([]float64, float64, error) {
	r, ok := m.records[id]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return slices.Clone(r.Signal), r.SampleRate, nil
}

// LoadEvents returns a copy of a record's annotation events.
func (m *Memory) LoadEvents(_ context.Context, id string) ([]record.Event, error) {
	r, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return slices.Clone(r.Events), nil
}
