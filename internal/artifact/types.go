package artifact

import (
	"time"

	"rhythmset/internal/allocate"
	"rhythmset/internal/record"
	"rhythmset/internal/validate"
)

// SegmentInfo describes one extracted segment of a record.
type SegmentInfo struct {
	Start           int
	End             int
	SourceStart     int
	SourceEnd       int
	DurationSeconds float64
	Label           uint8
	SourceLabel     string
}

// RecordArtifact is the windowed output of one record.
type RecordArtifact struct {
	RecordID         string
	Group            record.Group
	SampleRate       float64
	WindowSeconds    float64
	Overlap          float64
	WindowSamples    int
	StepSamples      int
	Normalization    string
	Windows          [][]float32
	Labels           []uint8
	TotalWindows     int
	PositiveWindows  int
	NegativeWindows  int
	Segments         []SegmentInfo
	AnnotationLabels []string
}

// SplitArtifact is the materialized data of one split. RecordMapping[i] owns
// Windows[i].
type SplitArtifact struct {
	Split         allocate.Split
	Windows       [][]float32
	Labels        []uint8
	RecordMapping []string
	Members       []string
	Stats         validate.SplitStats
}

// FileInfo identifies a written artifact for integrity checks.
type FileInfo struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// SplitMetadata is written as split_metadata.json.
type SplitMetadata struct {
	RunID          string                      `json:"run_id"`
	CreatedAt      time.Time                   `json:"created_at"`
	Method         string                      `json:"method"`
	Seed           int64                       `json:"seed"`
	TestRatio      float64                     `json:"test_ratio"`
	ValRatio       float64                     `json:"val_ratio"`
	WindowSamples  int                         `json:"window_samples"`
	Thresholds     map[string]float64          `json:"category_thresholds"`
	Members        map[allocate.Split][]string `json:"members"`
	Stats          []validate.SplitStats       `json:"stats"`
	RatioSpread    float64                     `json:"ratio_spread"`
	Warnings       []validate.Warning          `json:"warnings"`
	Files          map[allocate.Split]FileInfo `json:"files"`
	CategoryCounts map[string]map[string]int   `json:"category_counts"`
}

// Failure names a record excluded during preprocessing.
type Failure struct {
	RecordID string `json:"record_id"`
	Reason   string `json:"reason"`
	Error    string `json:"error"`
}

// ProcessingEcho records the settings a preprocess run used.
type ProcessingEcho struct {
	WindowSeconds      float64  `json:"window_seconds"`
	OverlapRatio       float64  `json:"overlap_ratio"`
	Normalization      string   `json:"normalization"`
	DCRemoval          bool     `json:"dc_removal"`
	StopAtUnclassified bool     `json:"stop_at_unclassified"`
	SignalIndex        int      `json:"signal_index"`
	PositiveLabels     []string `json:"positive_labels"`
	NegativeLabels     []string `json:"negative_labels"`
}

// PreprocessSummary is written as preprocessing_summary.json.
type PreprocessSummary struct {
	RunID           string         `json:"run_id"`
	CreatedAt       time.Time      `json:"created_at"`
	Succeeded       []string       `json:"succeeded"`
	Failed          []Failure      `json:"failed"`
	SingleEvent     []string       `json:"single_event_records"`
	MultiEvent      []string       `json:"multi_event_records"`
	TotalWindows    int            `json:"total_windows"`
	PositiveWindows int            `json:"positive_windows"`
	NegativeWindows int            `json:"negative_windows"`
	Processing      ProcessingEcho `json:"processing"`
}

// AllocationRow is one line of record_allocation.csv.
type AllocationRow struct {
	RecordID        string  `csv:"record_id"`
	Split           string  `csv:"split"`
	RecordType      string  `csv:"record_type"`
	Category        string  `csv:"category"`
	TotalWindows    int     `csv:"total_windows"`
	PositiveWindows int     `csv:"af_windows"`
	PositiveRatio   float64 `csv:"af_ratio"`
}

// AllocationRows converts an allocation into CSV rows in split then id order.
func AllocationRows(res *allocate.Result) []AllocationRow {
	table := res.Table()
	rows := make([]AllocationRow, len(table))
	for i, a := range table {
		rows[i] = AllocationRow{
			RecordID:        a.Profile.RecordID,
			Split:           string(a.Split),
			RecordType:      string(a.Profile.Group),
			Category:        string(a.Category),
			TotalWindows:    a.Profile.TotalWindows,
			PositiveWindows: a.Profile.PositiveWindows,
			PositiveRatio:   a.Profile.PositiveRatio(),
		}
	}
	return rows
}
