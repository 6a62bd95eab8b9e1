package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"rhythmset/internal/allocate"
	"rhythmset/internal/artifact"
	"rhythmset/internal/catalog"
	"rhythmset/internal/config"
	"rhythmset/internal/logging"
	"rhythmset/internal/profile"
	"rhythmset/internal/validate"
)

const splitMethod = "stratified_record_level"

// Splitter allocates preprocessed records to splits and materializes them.
type Splitter struct {
	cfg     *config.Config
	store   *artifact.Store
	catalog *catalog.Store
	logger  *slog.Logger
}

// NewSplitter wires a split stage. The catalog may be nil.
func NewSplitter(cfg *config.Config, store *artifact.Store, cat *catalog.Store, logger *slog.Logger) (*Splitter, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("splitter requires config and artifact store")
	}
	return &Splitter{
		cfg:     cfg,
		store:   store,
		catalog: cat,
		logger:  logging.NewComponentLogger(logger, "split"),
	}, nil
}

// SplitResult is the outcome of a split run.
type SplitResult struct {
	RunID      string
	Allocation *allocate.Result
	Report     validate.Report
	Metadata   *artifact.SplitMetadata
}

// Run allocates, validates, writes and read-back checks the splits.
func (s *Splitter) Run(ctx context.Context) (*SplitResult, error) {
	summary, err := s.store.ReadSummary()
	if err != nil {
		return nil, fmt.Errorf("read preprocessing summary (run preprocess first): %w", err)
	}
	if len(summary.Succeeded) == 0 {
		return nil, ErrNoRecords
	}

	runID, err := beginRun(ctx, s.catalog, s.cfg, catalog.KindSplit)
	if err != nil {
		return nil, err
	}
	ctx = logging.WithStage(logging.WithRunID(ctx, runID), "split")
	logger := logging.WithContext(ctx, s.logger)

	res, err := s.run(ctx, runID, summary.Succeeded, logger)
	if err != nil {
		finishRun(ctx, s.catalog, logger, runID, err, 0, 0)
		return nil, err
	}
	finishRun(ctx, s.catalog, logger, runID, nil, len(res.Allocation.Assignments), 0)
	return res, nil
}

func (s *Splitter) run(ctx context.Context, runID string, ids []string, logger *slog.Logger) (*SplitResult, error) {
	profiles := make([]profile.Profile, 0, len(ids))
	windowSamples := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		a, err := s.store.ReadRecord(id)
		if err != nil {
			return nil, err
		}
		if windowSamples == 0 {
			windowSamples = a.WindowSamples
		} else if a.WindowSamples != windowSamples {
			return nil, fmt.Errorf("record %s has %d-sample windows, expected %d (re-run preprocess)", id, a.WindowSamples, windowSamples)
		}
		profiles = append(profiles, ProfileOf(a))
	}

	opts := allocate.Options{
		TestRatio: s.cfg.Split.TestRatio,
		ValRatio:  s.cfg.Split.ValRatio,
		Thresholds: profile.Thresholds{
			PositiveHeavy: s.cfg.Split.PositiveHeavyThreshold,
			NegativeHeavy: s.cfg.Split.NegativeHeavyThreshold,
		},
	}
	alloc, err := allocate.Allocate(profiles, opts, allocate.NewRand(s.cfg.Split.Seed))
	if err != nil {
		return nil, fmt.Errorf("allocate records: %w", err)
	}

	report, err := validate.Check(validate.Memberships(alloc), validate.Options{
		RatioTolerance:  s.cfg.Validation.RatioTolerance,
		MinClassWindows: s.cfg.Validation.MinClassWindows,
	})
	if err != nil {
		return nil, err
	}
	report.Log(logger)

	meta := &artifact.SplitMetadata{
		RunID:         runID,
		CreatedAt:     time.Now().UTC(),
		Method:        splitMethod,
		Seed:          s.cfg.Split.Seed,
		TestRatio:     opts.TestRatio,
		ValRatio:      opts.ValRatio,
		WindowSamples: windowSamples,
		Thresholds: map[string]float64{
			string(profile.PositiveHeavy): opts.Thresholds.PositiveHeavy,
			string(profile.NegativeHeavy): opts.Thresholds.NegativeHeavy,
		},
		Members:        make(map[allocate.Split][]string, len(allocate.Splits)),
		Stats:          report.Stats,
		RatioSpread:    report.RatioSpread,
		Warnings:       report.Warnings,
		Files:          make(map[allocate.Split]artifact.FileInfo, len(allocate.Splits)),
		CategoryCounts: categoryCounts(alloc),
	}
	if meta.Warnings == nil {
		meta.Warnings = []validate.Warning{}
	}

	for i, split := range allocate.Splits {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		members := alloc.MemberIDs(split)
		meta.Members[split] = members
		data, err := s.materialize(split, members, report.Stats[i])
		if err != nil {
			return nil, err
		}
		info, err := s.store.WriteSplit(data)
		if err != nil {
			return nil, err
		}
		meta.Files[split] = info
		logger.Info("split written",
			logging.String("split", string(split)),
			logging.Int("records", len(members)),
			logging.Int("windows", len(data.Labels)),
			logging.Float64("positive_ratio", report.Stats[i].PositiveRatio),
		)
	}

	if err := s.store.WriteAllocation(artifact.AllocationRows(alloc)); err != nil {
		return nil, err
	}
	if err := s.store.WriteMetadata(meta); err != nil {
		return nil, err
	}
	if s.catalog != nil {
		if err := s.catalog.SaveAllocation(ctx, runID, catalogRows(alloc), catalogStats(report.Stats), catalogWarnings(report.Warnings)); err != nil {
			return nil, err
		}
	}
	if err := VerifySplits(s.store, meta); err != nil {
		return nil, err
	}
	logger.Info("split artifacts verified", logging.Int("records", len(alloc.Assignments)))

	return &SplitResult{RunID: runID, Allocation: alloc, Report: report, Metadata: meta}, nil
}

// materialize concatenates member record artifacts in id order.
func (s *Splitter) materialize(split allocate.Split, members []string, stats validate.SplitStats) (*artifact.SplitArtifact, error) {
	out := &artifact.SplitArtifact{
		Split:   split,
		Members: members,
		Stats:   stats,
	}
	for _, id := range members {
		a, err := s.store.ReadRecord(id)
		if err != nil {
			return nil, err
		}
		out.Windows = append(out.Windows, a.Windows...)
		out.Labels = append(out.Labels, a.Labels...)
		for range a.Labels {
			out.RecordMapping = append(out.RecordMapping, id)
		}
	}
	return out, nil
}

func categoryCounts(res *allocate.Result) map[string]map[string]int {
	out := make(map[string]map[string]int, len(profile.Categories))
	for _, c := range profile.Categories {
		out[string(c)] = map[string]int{}
	}
	for _, a := range res.Assignments {
		out[string(a.Category)][string(a.Split)]++
	}
	return out
}

func catalogRows(res *allocate.Result) []catalog.Allocation {
	table := res.Table()
	rows := make([]catalog.Allocation, len(table))
	for i, a := range table {
		rows[i] = catalog.Allocation{
			RecordID:        a.Profile.RecordID,
			Split:           string(a.Split),
			Category:        string(a.Category),
			Group:           string(a.Profile.Group),
			TotalWindows:    a.Profile.TotalWindows,
			PositiveWindows: a.Profile.PositiveWindows,
		}
	}
	return rows
}

func catalogStats(stats []validate.SplitStats) []catalog.SplitStat {
	out := make([]catalog.SplitStat, len(stats))
	for i, s := range stats {
		out[i] = catalog.SplitStat{
			Split:           string(s.Split),
			Records:         s.Records,
			Windows:         s.Windows,
			PositiveWindows: s.PositiveWindows,
			NegativeWindows: s.NegativeWindows,
			PositiveRatio:   s.PositiveRatio,
		}
	}
	return out
}

func catalogWarnings(warnings []validate.Warning) []catalog.Warning {
	out := make([]catalog.Warning, len(warnings))
	for i, w := range warnings {
		out[i] = catalog.Warning{Code: string(w.Code), Split: string(w.Split), Message: w.Message}
	}
	return out
}
