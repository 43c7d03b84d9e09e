// Package render drives the KiCad command line to export one SVG per catalog
// layer and reports the board geometry alongside the produced files.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"edaplot/internal/deps"
	"edaplot/internal/kicad"
	"edaplot/internal/layers"
	"edaplot/internal/logging"
	"edaplot/internal/services"
)

// Artifact is a rendered layer file.
type Artifact struct {
	Key  string
	Path string
}

// LayerFailure records a layer the engine could not render. Defined is set
// when the board's layer table declares the layer, so the failure is not
// just the engine reporting an absent layer.
type LayerFailure struct {
	Key     string
	Err     error
	Defined bool
}

// Result is the outcome of rendering one board. Geometry is the extent the
// engine cropped the artifacts to, or the computed board extent when no
// artifact declares one.
type Result struct {
	Board     string
	Geometry  kicad.Geometry
	Artifacts []Artifact
	Failed    []LayerFailure
}

// Partial reports whether a layer the board declares is missing from the
// artifacts.
func (r Result) Partial() bool {
	for _, f := range r.Failed {
		if f.Defined {
			return true
		}
	}
	return false
}

// Keys returns the keys of the produced artifacts in render order.
func (r Result) Keys() []string {
	keys := make([]string, len(r.Artifacts))
	for i, a := range r.Artifacts {
		keys[i] = a.Key
	}
	return keys
}

// Option configures the invoker.
type Option func(*Invoker)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec services.Executor) Option {
	return func(i *Invoker) {
		if exec != nil {
			i.exec = exec
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Invoker) {
		i.logger = logging.NewComponentLogger(logger, "render")
	}
}

// WithParams overrides DefaultParams.
func WithParams(p Params) Option {
	return func(i *Invoker) { i.params = p }
}

// WithLayerTimeout bounds each layer export. Zero disables the bound.
func WithLayerTimeout(d time.Duration) Option {
	return func(i *Invoker) { i.layerTimeout = d }
}

// Invoker renders boards with kicad-cli.
type Invoker struct {
	binary       string
	params       Params
	layerTimeout time.Duration
	exec         services.Executor
	logger       *slog.Logger

	versionOnce sync.Once
	version     string
}

// New constructs an invoker for the engine binary.
func New(binary string, opts ...Option) (*Invoker, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, services.Wrap(services.ErrConfiguration, "render", "init", "engine binary required", nil)
	}
	inv := &Invoker{
		binary: binary,
		params: DefaultParams(),
		exec:   services.CommandExecutor{},
		logger: logging.NewComponentLogger(nil, "render"),
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv, nil
}

// Params returns the active parameter set.
func (i *Invoker) Params() Params { return i.params }

// Version reports the engine's version line, or "unknown" when the engine
// cannot tell. The engine is asked once per invoker.
func (i *Invoker) Version(ctx context.Context) string {
	i.versionOnce.Do(func() {
		i.version = "unknown"
		version, err := deps.ToolVersion(ctx, i.exec, i.binary, "version")
		if err != nil {
			logging.WithContext(ctx, i.logger).Debug("engine version unavailable", logging.Error(err))
			return
		}
		if version != "" {
			i.version = version
		}
	})
	return i.version
}

// Signature identifies the engine, its version, the layer catalog and the
// parameters for caching.
func (i *Invoker) Signature(ctx context.Context) string {
	return "engine=" + i.binary +
		";version=" + i.Version(ctx) +
		";catalog=" + layers.Fingerprint() +
		";" + i.params.Signature()
}

// Render loads the board, exports every catalog layer into outputDir and
// reports the plotted geometry. Layers the engine cannot produce are recorded
// in Result.Failed. A missing engine, a load failure or cancellation fails the
// call, and so does an engine that exits non-zero for every layer, since that
// means it could not open the board. outputDir is not cleaned.
func (i *Invoker) Render(ctx context.Context, boardPath, outputDir string) (Result, error) {
	board, err := kicad.LoadBoard(boardPath)
	if err != nil {
		return Result{}, err
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return Result{}, services.Wrap(services.ErrIO, "render", "prepare output", outputDir, err)
	}

	result := Result{Board: board.Name(), Geometry: board.BoundingBox()}
	aliases := layers.NewAliasTable(board.UserName)

	logger := logging.WithContext(ctx, i.logger)
	logger.Info("rendering board", logging.String("board", boardPath))

	for _, spec := range layers.Catalog() {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		layerCtx := services.WithLayer(ctx, spec.Key)
		path, err := i.renderLayer(layerCtx, board, spec, outputDir, aliases)
		if err != nil {
			if services.IsFatal(err) {
				return Result{}, err
			}
			defined := board.HasLayer(spec.EngineName)
			result.Failed = append(result.Failed, LayerFailure{Key: spec.Key, Err: err, Defined: defined})
			logging.WarnWithContext(logging.WithContext(layerCtx, i.logger), "layer render failed",
				"render_layer_failed",
				logging.Error(err),
				logging.Bool("defined_on_board", defined),
				logging.String(logging.FieldErrorHint, "check the layer exists on the board and kicad-cli can export it"),
				logging.String(logging.FieldImpact, "layer omitted from output document"),
			)
			continue
		}
		result.Artifacts = append(result.Artifacts, Artifact{Key: spec.Key, Path: path})
		logging.WithContext(layerCtx, i.logger).Debug("layer exported", logging.String("path", path))
	}

	if len(result.Artifacts) == 0 {
		if toolErr, ok := engineRejected(result.Failed); ok {
			return Result{}, services.Wrap(services.ErrLoad, "render", "load board",
				fmt.Sprintf("%s failed on every layer of %s", i.binary, boardPath), toolErr)
		}
	}

	source := "board"
	if len(result.Artifacts) > 0 {
		if extent, ok := readPlotExtent(result.Artifacts[0].Path); ok {
			result.Geometry = extent.apply(result.Geometry)
			source = "engine"
		}
	}

	logger.Info("board rendered",
		logging.Int("layers", len(result.Artifacts)),
		logging.Int("failed", len(result.Failed)),
		logging.Float64("x", result.Geometry.X),
		logging.Float64("y", result.Geometry.Y),
		logging.Float64("width", result.Geometry.Width),
		logging.Float64("height", result.Geometry.Height),
		logging.String("geometry_source", source),
	)
	return result, nil
}

// engineRejected reports whether every failure is the engine exiting
// non-zero, returning the first such error.
func engineRejected(failed []LayerFailure) (*services.ToolError, bool) {
	var first *services.ToolError
	for _, f := range failed {
		var toolErr *services.ToolError
		if !errors.As(f.Err, &toolErr) {
			return nil, false
		}
		if first == nil {
			first = toolErr
		}
	}
	return first, first != nil
}

func (i *Invoker) renderLayer(ctx context.Context, board *kicad.Board, spec layers.Spec, outputDir string, aliases *layers.AliasTable) (string, error) {
	runCtx := ctx
	if i.layerTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, i.layerTimeout)
		defer cancel()
	}

	outputPath := filepath.Join(outputDir, board.Name()+"-"+spec.Key+".svg")
	_, err := i.exec.Run(runCtx, services.Command{
		Binary: i.binary,
		Args:   i.params.exportArgs(board.Path, outputPath, spec.EngineName),
	})
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return "", ctx.Err()
		case services.IsNotFound(err):
			return "", services.Wrap(services.ErrToolInvocation, "render", "start engine", fmt.Sprintf("%s not found", i.binary), err)
		case errors.Is(err, context.DeadlineExceeded):
			return "", services.Wrap(services.ErrRender, "render", spec.Key, fmt.Sprintf("timed out after %s", i.layerTimeout), err)
		default:
			return "", services.Wrap(services.ErrRender, "render", spec.Key, "engine failed", err)
		}
	}

	if path, ok := discover(outputDir, board.Name(), spec.Key, aliases); ok {
		return path, nil
	}
	return "", services.Wrap(services.ErrRender, "render", spec.Key, "engine produced no output file", nil)
}

// discover finds the file the engine wrote for key. The engine may name the
// file after the key, the canonical layer name or the board's own layer name,
// so every alias is tried before falling back to a directory scan.
func discover(dir, board, key string, aliases *layers.AliasTable) (string, bool) {
	for _, name := range aliases.Names(key) {
		path := filepath.Join(dir, board+"-"+name+".svg")
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path, true
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	prefix := board + "-"
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) || !strings.EqualFold(filepath.Ext(name), ".svg") {
			continue
		}
		layerName := strings.TrimSuffix(strings.TrimPrefix(name, prefix), filepath.Ext(name))
		if resolved, ok := aliases.Resolve(layers.Sanitize(layerName)); ok && resolved == key {
			return filepath.Join(dir, name), true
		}
	}
	return "", false
}
