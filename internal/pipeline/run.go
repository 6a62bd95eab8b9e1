package pipeline

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"rhythmset/internal/catalog"
	"rhythmset/internal/config"
	"rhythmset/internal/logging"
)

func beginRun(ctx context.Context, cat *catalog.Store, cfg *config.Config, kind catalog.RunKind) (string, error) {
	if cat == nil {
		return uuid.NewString(), nil
	}
	var encoded string
	if data, err := cfg.Encode(); err == nil {
		encoded = string(data)
	}
	run, err := cat.BeginRun(ctx, kind, encoded)
	if err != nil {
		return "", err
	}
	return run.ID, nil
}

func finishRun(ctx context.Context, cat *catalog.Store, logger *slog.Logger, runID string, runErr error, succeeded, failed int) {
	if cat == nil {
		return
	}
	status := catalog.StatusCompleted
	if runErr != nil {
		status = catalog.StatusFailed
	}
	if err := cat.FinishRun(context.WithoutCancel(ctx), runID, status, runErr, succeeded, failed); err != nil {
		logging.WarnWithContext(logger, "run status not recorded", "catalog_write_failed",
			logging.String(logging.FieldRunID, runID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on the catalog database"),
			logging.String(logging.FieldImpact, "`rhythmset show` may report a stale run"),
		)
	}
}
