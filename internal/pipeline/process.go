package pipeline

import (
	"fmt"

	"rhythmset/internal/artifact"
	"rhythmset/internal/config"
	"rhythmset/internal/filter"
	"rhythmset/internal/normalize"
	"rhythmset/internal/profile"
	"rhythmset/internal/record"
	"rhythmset/internal/rhythm"
	"rhythmset/internal/segment"
	"rhythmset/internal/window"
)

// Processor turns one loaded record into a record artifact. It holds no
// mutable state and is safe for concurrent use.
type Processor struct {
	classifier    *rhythm.Classifier
	filter        filter.Filter
	segmentOpts   segment.Options
	windowSeconds float64
	overlap       float64
	method        normalize.Method
}

// NewProcessor builds a processor from configuration.
func NewProcessor(cfg *config.Config) (*Processor, error) {
	classifier, err := rhythm.NewClassifier(cfg.Labels.Positive, cfg.Labels.Negative)
	if err != nil {
		return nil, fmt.Errorf("build classifier: %w", err)
	}
	method, err := normalize.ParseMethod(cfg.Windowing.Normalization)
	if err != nil {
		return nil, err
	}
	return &Processor{
		classifier:    classifier,
		filter:        filter.FromConfig(cfg.Processing.DCRemoval),
		segmentOpts:   segment.Options{StopAtUnclassified: cfg.Segmentation.StopAtUnclassified},
		windowSeconds: cfg.Windowing.WindowSeconds,
		overlap:       cfg.Windowing.OverlapRatio,
		method:        method,
	}, nil
}

// Process conditions, segments, windows and normalizes a record.
func (p *Processor) Process(rec record.Record) (*artifact.RecordArtifact, error) {
	params := window.Params{WindowSeconds: p.windowSeconds, Overlap: p.overlap, SampleRate: rec.SampleRate}
	size, step, err := params.Sizes()
	if err != nil {
		return nil, stageErr(StageWindow, err)
	}

	signal, err := p.filter.Apply(rec.Signal, rec.SampleRate)
	if err != nil {
		return nil, stageErr(StageFilter, err)
	}

	extracted, err := segment.Extract(signal, rec.Events, p.classifier, p.segmentOpts)
	if err != nil {
		return nil, stageErr(StageSegment, err)
	}

	windows, err := window.Generate(rec.ID, extracted.Clean, extracted.Segments, params)
	if err != nil {
		return nil, stageErr(StageWindow, err)
	}
	if len(windows) == 0 {
		return nil, stageErr(StageWindow, ErrNoWindows)
	}

	samples := make([][]float64, len(windows))
	labels := make([]uint8, len(windows))
	for i, w := range windows {
		samples[i] = w.Samples
		labels[i] = w.Label
	}
	if err := normalize.Apply(p.method, samples); err != nil {
		return nil, stageErr(StageNormalize, err)
	}

	prof := profile.New(rec.ID, extracted.Group, labels)
	out := &artifact.RecordArtifact{
		RecordID:         rec.ID,
		Group:            extracted.Group,
		SampleRate:       rec.SampleRate,
		WindowSeconds:    p.windowSeconds,
		Overlap:          p.overlap,
		WindowSamples:    size,
		StepSamples:      step,
		Normalization:    string(p.method),
		Windows:          toFloat32(samples),
		Labels:           labels,
		TotalWindows:     prof.TotalWindows,
		PositiveWindows:  prof.PositiveWindows,
		NegativeWindows:  prof.NegativeWindows(),
		Segments:         make([]artifact.SegmentInfo, 0, len(extracted.Segments)),
		AnnotationLabels: extracted.Labels,
	}
	for _, seg := range extracted.Segments {
		label, _ := seg.Class.Label()
		out.Segments = append(out.Segments, artifact.SegmentInfo{
			Start:           seg.Start,
			End:             seg.End,
			SourceStart:     seg.SourceStart,
			SourceEnd:       seg.SourceEnd,
			DurationSeconds: float64(seg.Len()) / rec.SampleRate,
			Label:           label,
			SourceLabel:     seg.SourceLabel,
		})
	}
	return out, nil
}

// ProfileOf derives the allocation profile of a record artifact.
func ProfileOf(a *artifact.RecordArtifact) profile.Profile {
	return profile.Profile{
		RecordID:        a.RecordID,
		Group:           a.Group,
		TotalWindows:    a.TotalWindows,
		PositiveWindows: a.PositiveWindows,
	}
}

func toFloat32(windows [][]float64) [][]float32 {
	out := make([][]float32, len(windows))
	for i, w := range windows {
		row := make([]float32, len(w))
		for j, v := range w {
			row[j] = float32(v)
		}
		out[i] = row
	}
	return out
}
