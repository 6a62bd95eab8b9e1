package pipeline

import (
	"context"
	"errors"
	"fmt"

	"rhythmset/internal/segment"
	"rhythmset/internal/source"
	"rhythmset/internal/window"
)

var (
	// ErrNoRecords indicates an empty input record set.
	ErrNoRecords = errors.New("no records to process")
	// ErrNoWindows indicates a record whose segments were all shorter than one window.
	ErrNoWindows = errors.New("record produced no windows")
	// ErrLoadCheck indicates split artifacts that failed the read-back check.
	ErrLoadCheck = errors.New("split artifact check failed")
	// ErrLocked indicates another process holds the output lock.
	ErrLocked = errors.New("another rhythmset run holds the output lock")
)

// Stage names a per-record processing step.
type Stage string

const (
	StageLoad      Stage = "load"
	StageFilter    Stage = "filter"
	StageSegment   Stage = "segment"
	StageWindow    Stage = "window"
	StageNormalize Stage = "normalize"
	StagePersist   Stage = "persist"
)

// StageError attributes a per-record failure to a stage.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

var reasons = []struct {
	err    error
	reason string
}{
	{segment.ErrNoAnnotations, "no_annotations"},
	{segment.ErrUnclassifiedRecord, "unclassified_record"},
	{segment.ErrNoClassifiableLabels, "no_classifiable_labels"},
	{segment.ErrInsufficientAnnotations, "insufficient_annotations"},
	{segment.ErrNoSegments, "no_segments"},
	{ErrNoWindows, "no_windows"},
	{window.ErrInvalidParams, "invalid_window_params"},
	{source.ErrNotFound, "not_found"},
	{context.Canceled, "canceled"},
	{context.DeadlineExceeded, "canceled"},
}

// FailureReason maps a per-record error to a stable reason string.
func FailureReason(err error) string {
	if err == nil {
		return ""
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	var se *StageError
	if errors.As(err, &se) {
		return string(se.Stage) + "_failed"
	}
	return "unknown"
}
