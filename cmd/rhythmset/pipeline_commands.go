package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"rhythmset/internal/artifact"
	"rhythmset/internal/catalog"
	"rhythmset/internal/pipeline"
	"rhythmset/internal/source"
)

func newPreprocessCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "preprocess",
		Short: "Segment and window every record in the data directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRunLock(func(cat *catalog.Store) error {
				res, err := runPreprocess(cmd, ctx, cat)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, res.Summary)
				}
				printPreprocessSummary(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the preprocessing summary as JSON")
	return cmd
}

func newSplitCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	var seed int64
	cmd := &cobra.Command{
		Use:   "split",
		Short: "Allocate preprocessed records to train/val/test splits",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("seed") {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				cfg.Split.Seed = seed
			}
			return ctx.withRunLock(func(cat *catalog.Store) error {
				res, err := runSplit(cmd, ctx, cat)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, res.Metadata)
				}
				printSplitSummary(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the split metadata as JSON")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Override split.seed for this run")
	return cmd
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Preprocess records and allocate splits in one pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRunLock(func(cat *catalog.Store) error {
				pre, err := runPreprocess(cmd, ctx, cat)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				printPreprocessSummary(out, pre)
				res, err := runSplit(cmd, ctx, cat)
				if err != nil {
					return err
				}
				fmt.Fprintln(out)
				printSplitSummary(out, res)
				return nil
			})
		},
	}
}

// withRunLock holds the output lock and an open catalog for fn.
func (c *commandContext) withRunLock(fn func(*catalog.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	lock, err := pipeline.AcquireLock(cfg)
	if err != nil {
		return err
	}
	defer lock.Release()
	return c.withCatalog(fn)
}

func runPreprocess(cmd *cobra.Command, c *commandContext, cat *catalog.Store) (*pipeline.PreprocessResult, error) {
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	store, err := c.artifactStore()
	if err != nil {
		return nil, err
	}
	cfg := c.config
	if strings.TrimSpace(cfg.Paths.DataDir) == "" {
		return nil, errors.New("paths.data_dir is not set (configure it or export RHYTHMSET_DATA_DIR)")
	}
	src := source.NewDir(cfg.Paths.DataDir, cfg.Segmentation.SignalIndex, logger)
	p, err := pipeline.NewPreprocessor(cfg, src, store, cat, logger)
	if err != nil {
		return nil, err
	}
	return p.Run(cmd.Context())
}

func runSplit(cmd *cobra.Command, c *commandContext, cat *catalog.Store) (*pipeline.SplitResult, error) {
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	store, err := c.artifactStore()
	if err != nil {
		return nil, err
	}
	s, err := pipeline.NewSplitter(c.config, store, cat, logger)
	if err != nil {
		return nil, err
	}
	return s.Run(cmd.Context())
}

func printPreprocessSummary(out io.Writer, res *pipeline.PreprocessResult) {
	s := res.Summary
	rows := [][]string{
		{"Records processed", count(len(s.Succeeded))},
		{"Records failed", count(len(s.Failed))},
		{"Single-event", count(len(s.SingleEvent))},
		{"Multi-event", count(len(s.MultiEvent))},
		{"Windows", count(s.TotalWindows)},
		{"Positive windows", count(s.PositiveWindows)},
		{"Negative windows", count(s.NegativeWindows)},
	}
	fmt.Fprintln(out, renderTable("Preprocess "+shortID(res.RunID), []string{"Metric", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))
	if len(s.Failed) == 0 {
		return
	}
	fmt.Fprintln(out, renderTable("Excluded records", []string{"Record", "Reason", "Error"}, failureRows(s.Failed), nil))
}

func failureRows(failures []artifact.Failure) [][]string {
	rows := make([][]string, 0, len(failures))
	for _, f := range failures {
		rows = append(rows, []string{f.RecordID, titleLabel(f.Reason), f.Error})
	}
	return rows
}

func printSplitSummary(out io.Writer, res *pipeline.SplitResult) {
	rows := make([][]string, 0, len(res.Report.Stats))
	for _, st := range res.Report.Stats {
		rows = append(rows, []string{
			titleLabel(string(st.Split)),
			count(st.Records),
			count(st.Windows),
			count(st.PositiveWindows),
			count(st.NegativeWindows),
			percent(st.PositiveRatio),
		})
	}
	fmt.Fprintln(out, renderTable("Split "+shortID(res.RunID),
		[]string{"Split", "Records", "Windows", "Positive", "Negative", "Positive ratio"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
	))
	for _, w := range res.Report.Warnings {
		fmt.Fprintln(out, statusLine(out, statusWarn, w.Message))
	}
	fmt.Fprintln(out, statusLine(out, statusOK, fmt.Sprintf("Splits verified (ratio spread %s)", percent(res.Report.RatioSpread))))
}
