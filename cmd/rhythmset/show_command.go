package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"rhythmset/internal/catalog"
)

type runView struct {
	ID           string    `json:"id"`
	Kind         string    `json:"kind"`
	Status       string    `json:"status"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at,omitzero"`
	Succeeded    int       `json:"succeeded"`
	Failed       int       `json:"failed"`
	ErrorMessage string    `json:"error,omitempty"`
}

type outcomeView struct {
	RecordID        string `json:"record_id"`
	OK              bool   `json:"ok"`
	Reason          string `json:"reason,omitempty"`
	Error           string `json:"error,omitempty"`
	Group           string `json:"group,omitempty"`
	TotalWindows    int    `json:"total_windows"`
	PositiveWindows int    `json:"positive_windows"`
}

type allocationView struct {
	RunID       string           `json:"run_id"`
	Allocations []allocationItem `json:"allocations"`
	Stats       []splitStatView  `json:"stats"`
	Warnings    []warningView    `json:"warnings"`
}

type allocationItem struct {
	RecordID        string `json:"record_id"`
	Split           string `json:"split"`
	Category        string `json:"category"`
	Group           string `json:"group"`
	TotalWindows    int    `json:"total_windows"`
	PositiveWindows int    `json:"positive_windows"`
}

type splitStatView struct {
	Split           string  `json:"split"`
	Records         int     `json:"records"`
	Windows         int     `json:"windows"`
	PositiveWindows int     `json:"positive_windows"`
	NegativeWindows int     `json:"negative_windows"`
	PositiveRatio   float64 `json:"positive_ratio"`
}

type warningView struct {
	Code    string `json:"code"`
	Split   string `json:"split,omitempty"`
	Message string `json:"message"`
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Inspect the run catalog",
	}
	showCmd.AddCommand(newShowRunsCommand(ctx))
	showCmd.AddCommand(newShowRecordsCommand(ctx))
	showCmd.AddCommand(newShowAllocationCommand(ctx))
	return showCmd
}

func newShowRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent preprocess and split runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCatalog(func(store *catalog.Store) error {
				runs, err := store.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				views := make([]runView, 0, len(runs))
				for _, r := range runs {
					views = append(views, toRunView(r))
				}
				if jsonOut {
					return writeJSON(cmd, views)
				}
				out := cmd.OutOrStdout()
				if len(views) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				rows := make([][]string, 0, len(views))
				for _, v := range views {
					rows = append(rows, []string{
						v.ID,
						titleLabel(v.Kind),
						titleLabel(v.Status),
						displayTime(v.StartedAt),
						count(v.Succeeded),
						count(v.Failed),
					})
				}
				fmt.Fprintln(out, renderTable("", []string{"Run", "Kind", "Status", "Started", "OK", "Failed"}, rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight}))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newShowRecordsCommand(ctx *commandContext) *cobra.Command {
	var runID string
	var failedOnly bool
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Show per-record preprocessing outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCatalog(func(store *catalog.Store) error {
				run, err := resolveRun(cmd.Context(), store, runID, catalog.KindPreprocess)
				if err != nil {
					return err
				}
				outcomes, err := store.Outcomes(cmd.Context(), run.ID)
				if err != nil {
					return err
				}
				views := make([]outcomeView, 0, len(outcomes))
				for _, o := range outcomes {
					if failedOnly && o.OK {
						continue
					}
					views = append(views, outcomeView{
						RecordID:        o.RecordID,
						OK:              o.OK,
						Reason:          o.Reason,
						Error:           o.ErrorMessage,
						Group:           o.Group,
						TotalWindows:    o.TotalWindows,
						PositiveWindows: o.PositiveWindows,
					})
				}
				if jsonOut {
					return writeJSON(cmd, views)
				}
				rows := make([][]string, 0, len(views))
				for _, v := range views {
					detail := titleLabel(v.Group)
					if !v.OK {
						detail = titleLabel(v.Reason)
					}
					rows = append(rows, []string{
						v.RecordID,
						yesNo(v.OK),
						detail,
						count(v.TotalWindows),
						count(v.PositiveWindows),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable("Preprocess "+shortID(run.ID),
					[]string{"Record", "OK", "Group / Reason", "Windows", "Positive"}, rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight}))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "Preprocess run id (defaults to the latest completed run)")
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "Only show excluded records")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newShowAllocationCommand(ctx *commandContext) *cobra.Command {
	var runID string
	var splitFilter string
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "allocation",
		Short: "Show which split each record was allocated to",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCatalog(func(store *catalog.Store) error {
				run, err := resolveRun(cmd.Context(), store, runID, catalog.KindSplit)
				if err != nil {
					return err
				}
				view, err := loadAllocationView(cmd.Context(), store, run.ID)
				if err != nil {
					return err
				}
				if filter := strings.ToLower(strings.TrimSpace(splitFilter)); filter != "" {
					kept := view.Allocations[:0]
					for _, a := range view.Allocations {
						if a.Split == filter {
							kept = append(kept, a)
						}
					}
					view.Allocations = kept
				}
				if jsonOut {
					return writeJSON(cmd, view)
				}

				out := cmd.OutOrStdout()
				rows := make([][]string, 0, len(view.Allocations))
				for _, a := range view.Allocations {
					ratio := 0.0
					if a.TotalWindows > 0 {
						ratio = float64(a.PositiveWindows) / float64(a.TotalWindows)
					}
					rows = append(rows, []string{
						a.RecordID,
						titleLabel(a.Split),
						titleLabel(a.Category),
						titleLabel(a.Group),
						count(a.TotalWindows),
						percent(ratio),
					})
				}
				fmt.Fprintln(out, renderTable("Allocation "+shortID(run.ID),
					[]string{"Record", "Split", "Category", "Group", "Windows", "Positive"}, rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight}))

				statRows := make([][]string, 0, len(view.Stats))
				for _, s := range view.Stats {
					statRows = append(statRows, []string{
						titleLabel(s.Split),
						count(s.Records),
						count(s.Windows),
						percent(s.PositiveRatio),
					})
				}
				fmt.Fprintln(out, renderTable("", []string{"Split", "Records", "Windows", "Positive ratio"}, statRows,
					[]columnAlignment{alignLeft, alignRight, alignRight, alignRight}))
				for _, w := range view.Warnings {
					fmt.Fprintln(out, statusLine(out, statusWarn, w.Message))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "Split run id (defaults to the latest completed run)")
	cmd.Flags().StringVar(&splitFilter, "split", "", "Only show records of one split (train, val, test)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

// resolveRun returns the named run, or the latest completed run of kind.
func resolveRun(ctx context.Context, store *catalog.Store, runID string, kind catalog.RunKind) (*catalog.Run, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		run, err := store.LatestRun(ctx, kind)
		if err != nil {
			return nil, err
		}
		if run == nil {
			return nil, fmt.Errorf("no completed %s run recorded; run `rhythmset %s` first", kind, kind)
		}
		return run, nil
	}
	run, err := store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("run %q not found", runID)
	}
	if run.Kind != kind {
		return nil, fmt.Errorf("run %s is a %s run, not %s", runID, run.Kind, kind)
	}
	return run, nil
}

func loadAllocationView(ctx context.Context, store *catalog.Store, runID string) (allocationView, error) {
	view := allocationView{RunID: runID}
	allocations, err := store.Allocations(ctx, runID)
	if err != nil {
		return view, err
	}
	stats, err := store.SplitStats(ctx, runID)
	if err != nil {
		return view, err
	}
	warnings, err := store.Warnings(ctx, runID)
	if err != nil {
		return view, err
	}
	view.Allocations = make([]allocationItem, 0, len(allocations))
	for _, a := range allocations {
		view.Allocations = append(view.Allocations, allocationItem(a))
	}
	view.Stats = make([]splitStatView, 0, len(stats))
	for _, s := range stats {
		view.Stats = append(view.Stats, splitStatView(s))
	}
	view.Warnings = make([]warningView, 0, len(warnings))
	for _, w := range warnings {
		view.Warnings = append(view.Warnings, warningView(w))
	}
	return view, nil
}

func toRunView(r catalog.Run) runView {
	return runView{
		ID:           r.ID,
		Kind:         string(r.Kind),
		Status:       string(r.Status),
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
		Succeeded:    r.Succeeded,
		Failed:       r.Failed,
		ErrorMessage: r.ErrorMessage,
	}
}
