package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gocarina/gocsv"

	"rhythmset/internal/allocate"
	"rhythmset/internal/fileutil"
)

const (
	recordExt          = ".rsw"
	summaryFile        = "preprocessing_summary.json"
	metadataFile       = "split_metadata.json"
	allocationFile     = "record_allocation.csv"
	splitDataSuffix    = "_data" + recordExt
	recordArtifactsDir = "records"
)

// Store reads and writes artifacts under the processed and splits roots.
type Store struct {
	processedDir string
	splitsDir    string
}

// NewStore returns a store rooted at the given directories.
func NewStore(processedDir, splitsDir string) *Store {
	return &Store{processedDir: processedDir, splitsDir: splitsDir}
}

// RecordPath returns the artifact path of a record.
func (s *Store) RecordPath(id string) string {
	return filepath.Join(s.processedDir, recordArtifactsDir, id+recordExt)
}

// SplitPath returns the artifact path of a split.
func (s *Store) SplitPath(split allocate.Split) string {
	return filepath.Join(s.splitsDir, string(split)+splitDataSuffix)
}

// SummaryPath returns the location of the preprocessing summary.
func (s *Store) SummaryPath() string { return filepath.Join(s.processedDir, summaryFile) }

// MetadataPath returns the location of the split metadata.
func (s *Store) MetadataPath() string { return filepath.Join(s.splitsDir, metadataFile) }

// AllocationPath returns the location of the allocation table.
func (s *Store) AllocationPath() string { return filepath.Join(s.splitsDir, allocationFile) }

// WriteRecord persists one record artifact.
func (s *Store) WriteRecord(a *RecordArtifact) error {
	if a == nil || a.RecordID == "" {
		return errors.New("write record artifact: missing record id")
	}
	if err := writeBinary(s.RecordPath(a.RecordID), a); err != nil {
		return fmt.Errorf("write record artifact %s: %w", a.RecordID, err)
	}
	return nil
}

// ReadRecord loads one record artifact.
func (s *Store) ReadRecord(id string) (*RecordArtifact, error) {
	var a RecordArtifact
	if err := readBinary(s.RecordPath(id), &a); err != nil {
		return nil, fmt.Errorf("read record artifact %s: %w", id, err)
	}
	return &a, nil
}

// ListRecords returns the ids of stored record artifacts in sorted order.
func (s *Store) ListRecords() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.processedDir, recordArtifactsDir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), recordExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), recordExt))
	}
	slices.Sort(ids)
	return ids, nil
}

// RemoveRecord deletes a stale record artifact. Missing files are ignored.
func (s *Store) RemoveRecord(id string) error {
	if err := os.Remove(s.RecordPath(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// WriteSplit persists one split artifact and returns its integrity info.
func (s *Store) WriteSplit(a *SplitArtifact) (FileInfo, error) {
	path := s.SplitPath(a.Split)
	if err := writeBinary(path, a); err != nil {
		return FileInfo{}, fmt.Errorf("write split artifact %s: %w", a.Split, err)
	}
	sum, size, err := fileutil.SHA256File(path)
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{Path: filepath.Base(path), SHA256: sum, Size: size}, nil
}

// ReadSplit loads one split artifact.
func (s *Store) ReadSplit(split allocate.Split) (*SplitArtifact, error) {
	var a SplitArtifact
	if err := readBinary(s.SplitPath(split), &a); err != nil {
		return nil, fmt.Errorf("read split artifact %s: %w", split, err)
	}
	return &a, nil
}

// VerifySplit checks a split artifact against recorded integrity info.
func (s *Store) VerifySplit(split allocate.Split, info FileInfo) error {
	return fileutil.VerifySHA256(s.SplitPath(split), info.SHA256, info.Size)
}

// WriteSummary persists the preprocessing summary.
func (s *Store) WriteSummary(summary *PreprocessSummary) error {
	return writeJSON(s.SummaryPath(), summary)
}

// ReadSummary loads the preprocessing summary.
func (s *Store) ReadSummary() (*PreprocessSummary, error) {
	var summary PreprocessSummary
	if err := readJSON(s.SummaryPath(), &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// WriteMetadata persists the split metadata.
func (s *Store) WriteMetadata(meta *SplitMetadata) error {
	return writeJSON(s.MetadataPath(), meta)
}

// ReadMetadata loads the split metadata.
func (s *Store) ReadMetadata() (*SplitMetadata, error) {
	var meta SplitMetadata
	if err := readJSON(s.MetadataPath(), &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// WriteAllocation persists the allocation table as CSV.
func (s *Store) WriteAllocation(rows []AllocationRow) error {
	return fileutil.WriteAtomic(s.AllocationPath(), 0o644, func(w io.Writer) error {
		if err := gocsv.Marshal(&rows, w); err != nil {
			return fmt.Errorf("encode allocation table: %w", err)
		}
		return nil
	})
}

// ReadAllocation loads the allocation table.
func (s *Store) ReadAllocation() ([]AllocationRow, error) {
	f, err := os.Open(s.AllocationPath())
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows := []AllocationRow{}
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("decode allocation table: %w", err)
	}
	return rows, nil
}

func writeJSON(path string, v any) error {
	return fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
		}
		return nil
	})
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}
