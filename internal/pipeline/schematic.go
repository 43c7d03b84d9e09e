package pipeline

import (
	"context"
	"time"

	"edaplot/internal/logging"
	"edaplot/internal/output"
)

// Schematic collects the diff between revA and revB in repo and returns the
// encoded schematic document.
func (r *Runner) Schematic(ctx context.Context, repo, revA, revB string) ([]byte, error) {
	ctx = runContext(ctx, ModeSchematic)
	started := time.Now()

	artifacts, err := r.collector.Collect(ctx, repo, revA, revB)
	if err != nil {
		return nil, err
	}
	data, err := output.Encode(output.NewSchematicDocument(artifacts))
	if err != nil {
		return nil, err
	}

	logging.WithContext(ctx, r.logger).Info("schematic document ready",
		logging.Int("artifacts", len(artifacts)),
		logging.Duration("elapsed", time.Since(started)),
		logging.String(logging.FieldEventType, "schematic_complete"),
	)
	return data, nil
}
