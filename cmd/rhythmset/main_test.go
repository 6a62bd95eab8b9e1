package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rhythmset/internal/config"
	"rhythmset/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
}

func setupCLITestEnv(t *testing.T, records int) *cliTestEnv {
	t.Helper()

	t.Setenv("HOME", t.TempDir())
	cfg := testsupport.NewConfig(t)
	cfg.Logging.Level = "error"
	for _, rec := range testsupport.Corpus(records, 32) {
		testsupport.WriteRecord(t, cfg.Paths.DataDir, rec)
	}

	configPath := filepath.Join(testsupport.BaseDir(cfg), "rhythmset.toml")
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return &cliTestEnv{cfg: cfg, configPath: configPath}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func TestCLIRunAndShow(t *testing.T) {
	env := setupCLITestEnv(t, 12)

	out, _, err := runCLI(t, []string{"run"}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	requireContains(t, out, "Records processed")
	requireContains(t, out, "Positive ratio")
	requireContains(t, out, "Splits verified")

	for _, name := range []string{"train_data.rsw", "val_data.rsw", "test_data.rsw", "split_metadata.json", "record_allocation.csv"} {
		if _, err := os.Stat(filepath.Join(env.cfg.Paths.SplitsDir, name)); err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
	}

	out, _, err = runCLI(t, []string{"show", "allocation", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("show allocation: %v", err)
	}
	var view allocationView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode allocation: %v\n%s", err, out)
	}
	if len(view.Allocations) != 12 {
		t.Fatalf("expected 12 allocations, got %d", len(view.Allocations))
	}
	if len(view.Stats) != 3 {
		t.Fatalf("expected 3 split stats, got %d", len(view.Stats))
	}

	out, _, err = runCLI(t, []string{"show", "allocation", "--split", "train"}, env.configPath)
	if err != nil {
		t.Fatalf("show allocation table: %v", err)
	}
	requireContains(t, out, "Train")

	out, _, err = runCLI(t, []string{"show", "records"}, env.configPath)
	if err != nil {
		t.Fatalf("show records: %v", err)
	}
	requireContains(t, out, "04000")

	out, _, err = runCLI(t, []string{"show", "runs", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("show runs: %v", err)
	}
	var runs []runView
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("decode runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected preprocess and split runs, got %+v", runs)
	}
	for _, r := range runs {
		if r.Status != "completed" {
			t.Fatalf("expected completed run, got %+v", r)
		}
	}
}

func TestCLISplitBeforePreprocessFails(t *testing.T) {
	env := setupCLITestEnv(t, 0)
	if _, _, err := runCLI(t, []string{"split"}, env.configPath); err == nil {
		t.Fatal("expected split without preprocessing to fail")
	}
}

func TestCLIShowAllocationWithoutRuns(t *testing.T) {
	env := setupCLITestEnv(t, 0)
	_, _, err := runCLI(t, []string{"show", "allocation"}, env.configPath)
	if err == nil {
		t.Fatal("expected error without a split run")
	}
	requireContains(t, err.Error(), "no completed split run")
}

func TestConfigInitValidateShow(t *testing.T) {
	env := setupCLITestEnv(t, 0)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	out, _, err = runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "window_seconds")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting")
	}
}

func TestTitleLabel(t *testing.T) {
	if got := titleLabel("positive_heavy"); got != "Positive Heavy" {
		t.Fatalf("titleLabel = %q", got)
	}
	if got := count(12345); got != "12,345" {
		t.Fatalf("count = %q", got)
	}
}
