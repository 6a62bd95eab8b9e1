package catalog

import "time"

// RunKind distinguishes pipeline stages.
type RunKind string

const (
	KindPreprocess RunKind = "preprocess"
	KindSplit      RunKind = "split"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// Run is one preprocess or split invocation.
type Run struct {
	ID           string
	Kind         RunKind
	Status       RunStatus
	StartedAt    time.Time
	FinishedAt   time.Time
	ConfigTOML   string
	ErrorMessage string
	Succeeded    int
	Failed       int
}

// Outcome is the preprocessing result of one record.
type Outcome struct {
	RecordID        string
	OK              bool
	Reason          string
	ErrorMessage    string
	Group           string
	TotalWindows    int
	PositiveWindows int
}

// Allocation is one row of a split run's allocation table.
type Allocation struct {
	RecordID        string
	Split           string
	Category        string
	Group           string
	TotalWindows    int
	PositiveWindows int
}

// SplitStat aggregates one split of a split run.
type SplitStat struct {
	Split           string
	Records         int
	Windows         int
	PositiveWindows int
	NegativeWindows int
	PositiveRatio   float64
}

// Warning is a validation warning recorded for a split run.
type Warning struct {
	Code    string
	Split   string
	Message string
}
