package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"rhythmset/internal/artifact"
	"rhythmset/internal/catalog"
	"rhythmset/internal/config"
	"rhythmset/internal/logging"
	"rhythmset/internal/record"
	"rhythmset/internal/source"
)

// Preprocessor runs the per-record fan-out stage.
type Preprocessor struct {
	cfg       *config.Config
	src       source.Source
	store     *artifact.Store
	catalog   *catalog.Store
	processor *Processor
	logger    *slog.Logger
}

// NewPreprocessor wires a preprocess stage. The catalog may be nil.
func NewPreprocessor(cfg *config.Config, src source.Source, store *artifact.Store, cat *catalog.Store, logger *slog.Logger) (*Preprocessor, error) {
	if cfg == nil || src == nil || store == nil {
		return nil, errors.New("preprocessor requires config, source, and artifact store")
	}
	processor, err := NewProcessor(cfg)
	if err != nil {
		return nil, err
	}
	return &Preprocessor{
		cfg:       cfg,
		src:       src,
		store:     store,
		catalog:   cat,
		processor: processor,
		logger:    logging.NewComponentLogger(logger, "preprocess"),
	}, nil
}

// PreprocessResult is the outcome of a preprocess run.
type PreprocessResult struct {
	RunID   string
	Summary *artifact.PreprocessSummary
}

type recordResult struct {
	id       string
	artifact *artifact.RecordArtifact
	err      error
}

// Run processes every listed record and writes the preprocessing summary.
func (p *Preprocessor) Run(ctx context.Context) (*PreprocessResult, error) {
	ids, err := p.src.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	if len(ids) == 0 {
		return nil, ErrNoRecords
	}
	slices.Sort(ids)

	runID, err := p.beginRun(ctx, catalog.KindPreprocess)
	if err != nil {
		return nil, err
	}
	ctx = logging.WithStage(logging.WithRunID(ctx, runID), "preprocess")
	logger := logging.WithContext(ctx, p.logger)
	workers := min(p.cfg.WorkerCount(), len(ids))
	logger.Info("preprocessing records",
		logging.Int("records", len(ids)),
		logging.Int("workers", workers),
	)

	started := time.Now()
	results := p.fanOut(ctx, ids, workers)
	if err := ctx.Err(); err != nil {
		p.finishRun(ctx, runID, err, 0, 0)
		return nil, err
	}

	summary, outcomes := p.summarize(runID, results)
	if err := p.store.WriteSummary(summary); err != nil {
		p.finishRun(ctx, runID, err, len(summary.Succeeded), len(summary.Failed))
		return nil, fmt.Errorf("write summary: %w", err)
	}
	if p.catalog != nil {
		if err := p.catalog.RecordOutcomes(ctx, runID, outcomes); err != nil {
			p.finishRun(ctx, runID, err, len(summary.Succeeded), len(summary.Failed))
			return nil, err
		}
	}
	p.finishRun(ctx, runID, nil, len(summary.Succeeded), len(summary.Failed))

	logger.Info("preprocessing complete",
		logging.Int("succeeded", len(summary.Succeeded)),
		logging.Int("failed", len(summary.Failed)),
		logging.Int("windows", summary.TotalWindows),
		logging.Int("positive_windows", summary.PositiveWindows),
		logging.Duration("elapsed", time.Since(started)),
	)
	return &PreprocessResult{RunID: runID, Summary: summary}, nil
}

// fanOut processes ids across workers. Each worker owns the result slots of
// the indices it receives.
func (p *Preprocessor) fanOut(ctx context.Context, ids []string, workers int) []recordResult {
	results := make([]recordResult, len(ids))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for range max(workers, 1) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = p.processOne(ctx, ids[i])
			}
		}()
	}

feed:
	for i := range ids {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	return results
}

func (p *Preprocessor) processOne(ctx context.Context, id string) recordResult {
	res := recordResult{id: id}
	if err := ctx.Err(); err != nil {
		res.err = err
		return res
	}
	logger := logging.WithContext(logging.WithRecordID(ctx, id), p.logger)

	rec, err := source.Load(ctx, p.src, id)
	if err != nil {
		res.err = stageErr(StageLoad, err)
	} else if res.artifact, err = p.processor.Process(rec); err != nil {
		res.err = err
	} else if err := p.store.WriteRecord(res.artifact); err != nil {
		res.artifact = nil
		res.err = stageErr(StagePersist, err)
	}

	if res.err != nil {
		if rmErr := p.store.RemoveRecord(id); rmErr != nil {
			logger.Debug("stale artifact not removed", logging.Error(rmErr))
		}
		logging.WarnWithContext(logger, "record excluded", "record_failed",
			logging.String("reason", FailureReason(res.err)),
			logging.Error(res.err),
			logging.String(logging.FieldErrorHint, "inspect the record's annotations and signal"),
			logging.String(logging.FieldImpact, "record will not appear in any split"),
		)
		return res
	}
	logger.Debug("record processed",
		logging.Int("windows", res.artifact.TotalWindows),
		logging.Int("positive_windows", res.artifact.PositiveWindows),
		logging.Int("segments", len(res.artifact.Segments)),
		logging.String("group", string(res.artifact.Group)),
	)
	return res
}

func (p *Preprocessor) summarize(runID string, results []recordResult) (*artifact.PreprocessSummary, []catalog.Outcome) {
	cfg := p.cfg
	summary := &artifact.PreprocessSummary{
		RunID:     runID,
		CreatedAt: time.Now().UTC(),
		Processing: artifact.ProcessingEcho{
			WindowSeconds:      cfg.Windowing.WindowSeconds,
			OverlapRatio:       cfg.Windowing.OverlapRatio,
			Normalization:      string(p.processor.method),
			DCRemoval:          cfg.Processing.DCRemoval,
			StopAtUnclassified: cfg.Segmentation.StopAtUnclassified,
			SignalIndex:        cfg.Segmentation.SignalIndex,
			PositiveLabels:     cfg.Labels.Positive,
			NegativeLabels:     cfg.Labels.Negative,
		},
		Succeeded:   []string{},
		Failed:      []artifact.Failure{},
		SingleEvent: []string{},
		MultiEvent:  []string{},
	}
	outcomes := make([]catalog.Outcome, 0, len(results))
	for _, r := range results {
		if r.err != nil {
			summary.Failed = append(summary.Failed, artifact.Failure{
				RecordID: r.id,
				Reason:   FailureReason(r.err),
				Error:    r.err.Error(),
			})
			outcomes = append(outcomes, catalog.Outcome{RecordID: r.id, Reason: FailureReason(r.err), ErrorMessage: r.err.Error()})
			continue
		}
		a := r.artifact
		summary.Succeeded = append(summary.Succeeded, a.RecordID)
		if a.Group == record.SingleEvent {
			summary.SingleEvent = append(summary.SingleEvent, a.RecordID)
		} else {
			summary.MultiEvent = append(summary.MultiEvent, a.RecordID)
		}
		summary.TotalWindows += a.TotalWindows
		summary.PositiveWindows += a.PositiveWindows
		summary.NegativeWindows += a.NegativeWindows
		outcomes = append(outcomes, catalog.Outcome{
			RecordID:        a.RecordID,
			OK:              true,
			Group:           string(a.Group),
			TotalWindows:    a.TotalWindows,
			PositiveWindows: a.PositiveWindows,
		})
	}
	return summary, outcomes
}

func (p *Preprocessor) beginRun(ctx context.Context, kind catalog.RunKind) (string, error) {
	return beginRun(ctx, p.catalog, p.cfg, kind)
}

func (p *Preprocessor) finishRun(ctx context.Context, runID string, runErr error, succeeded, failed int) {
	finishRun(ctx, p.catalog, p.logger, runID, runErr, succeeded, failed)
}
