package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"edaplot/internal/cache"
	"edaplot/internal/fileutil"
	"edaplot/internal/logging"
	"edaplot/internal/output"
	"edaplot/internal/postprocess"
	"edaplot/internal/render"
	"edaplot/internal/services"
	"edaplot/internal/staging"
)

// ModeBoard and ModeSchematic tag log records and contexts.
const (
	ModeBoard     = "board"
	ModeSchematic = "schematic"
)

// Board renders boardPath and returns the encoded board document. When
// outputFolder is set the processed per-layer SVGs are also exported there
// as <board>-<key>.svg.
func (r *Runner) Board(ctx context.Context, boardPath, outputFolder string) ([]byte, error) {
	ctx = runContext(ctx, ModeBoard)
	logger := logging.WithContext(ctx, r.logger)
	started := time.Now()

	boardHash, err := fileutil.HashFile(boardPath)
	if err != nil {
		return nil, services.Wrap(services.ErrLoad, "board", "read board", boardPath, err)
	}
	outputFolder = strings.TrimSpace(outputFolder)
	var signature string
	if r.cache != nil {
		signature = r.Signature(ctx)
	}

	if r.cache != nil && outputFolder == "" {
		data, ok, err := r.cache.Get(ctx, cache.Key(boardHash, signature))
		if err != nil {
			logging.WarnWithContext(logger, "render cache lookup failed", "cache_lookup_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "run `edaplot cache clear` if the database is corrupt"),
				logging.String(logging.FieldImpact, "board is rendered without the cache"),
			)
		} else if ok {
			logger.Info("board served from cache",
				logging.String("board", boardPath),
				logging.String(logging.FieldEventType, "cache_hit"),
			)
			return data, nil
		}
	}

	runID, _ := services.RunIDFromContext(ctx)
	scratch, err := staging.Acquire(r.cfg.Paths.ScratchDir, runID)
	if err != nil {
		return nil, services.Wrap(services.ErrIO, "board", "acquire scratch", r.cfg.Paths.ScratchDir, err)
	}
	defer func() {
		if releaseErr := scratch.Release(); releaseErr != nil {
			logging.WarnWithContext(logger, "failed to remove scratch directory", "scratch_release_failed",
				logging.String("path", scratch.Path),
				logging.Error(releaseErr),
				logging.String(logging.FieldErrorHint, "remove the directory manually"),
				logging.String(logging.FieldImpact, "disk space not reclaimed until stale cleanup"),
			)
		}
	}()

	result, err := r.invoker.Render(ctx, boardPath, scratch.Path)
	if err != nil {
		return nil, err
	}

	paths := make([]string, len(result.Artifacts))
	for i, artifact := range result.Artifacts {
		paths[i] = artifact.Path
	}
	if err := postprocess.ProcessAll(ctx, r.cleaner, paths, r.cfg.Render.Jobs); err != nil {
		return nil, err
	}

	contents, err := readArtifacts(result.Artifacts)
	if err != nil {
		return nil, err
	}

	if outputFolder != "" {
		if err := exportArtifacts(result, outputFolder); err != nil {
			return nil, err
		}
	}

	data, err := output.Encode(output.NewBoardDocument(result.Geometry, contents))
	if err != nil {
		return nil, err
	}

	switch {
	case r.cache == nil:
	case result.Partial():
		logger.Info("partial board document not cached",
			logging.String("board", boardPath),
			logging.String(logging.FieldEventType, "cache_skip_partial"),
		)
	default:
		if err := r.cache.Put(ctx, boardHash, signature, data); err != nil {
			logging.WarnWithContext(logger, "render cache store failed", "cache_store_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check cache.path is writable"),
				logging.String(logging.FieldImpact, "next run renders again"),
			)
		}
	}

	logger.Info("board document ready",
		logging.String("board", boardPath),
		logging.Int("layers", len(contents)),
		logging.Int("failed_layers", len(result.Failed)),
		logging.Bool("post_processed", r.cleaner.Available()),
		logging.Duration("elapsed", time.Since(started)),
		logging.String(logging.FieldEventType, "board_complete"),
	)
	return data, nil
}

func readArtifacts(artifacts []render.Artifact) (map[string]string, error) {
	contents := make(map[string]string, len(artifacts))
	for _, artifact := range artifacts {
		data, err := os.ReadFile(artifact.Path)
		if err != nil {
			return nil, services.Wrap(services.ErrIO, "board", "read artifact", artifact.Path, err)
		}
		contents[artifact.Key] = string(data)
	}
	return contents, nil
}

func exportArtifacts(result render.Result, folder string) error {
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return services.Wrap(services.ErrIO, "board", "export", folder, err)
	}
	for _, artifact := range result.Artifacts {
		dst := filepath.Join(folder, fmt.Sprintf("%s-%s.svg", result.Board, artifact.Key))
		if err := fileutil.CopyFile(artifact.Path, dst); err != nil {
			return services.Wrap(services.ErrIO, "board", "export", dst, err)
		}
	}
	return nil
}

func runContext(ctx context.Context, mode string) context.Context {
	if _, ok := services.RunIDFromContext(ctx); !ok {
		ctx = services.WithRunID(ctx, uuid.NewString())
	}
	return services.WithMode(ctx, mode)
}
