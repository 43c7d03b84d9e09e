package pipeline

import (
	"context"
	"log/slog"

	"edaplot/internal/cache"
	"edaplot/internal/config"
	"edaplot/internal/deps"
	"edaplot/internal/logging"
	"edaplot/internal/postprocess"
	"edaplot/internal/render"
	"edaplot/internal/schematic"
	"edaplot/internal/services"
)

// Option configures a Runner.
type Option func(*Runner)

// WithExecutor routes every subprocess through exec.
func WithExecutor(exec services.Executor) Option {
	return func(r *Runner) {
		if exec != nil {
			r.exec = exec
		}
	}
}

// WithLogger sets the logger used by the runner and its components.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.baseLogger = logger
		}
	}
}

// WithCache enables the board render cache.
func WithCache(store *cache.Store) Option {
	return func(r *Runner) { r.cache = store }
}

// WithCleaner overrides the probed post-processor capability.
func WithCleaner(capability deps.Capability) Option {
	return func(r *Runner) {
		r.cleanerCap = capability
		r.cleanerSet = true
	}
}

// WithParams overrides the default render parameters.
func WithParams(p render.Params) Option {
	return func(r *Runner) {
		r.params = p
		r.paramsSet = true
	}
}

// Runner executes board and schematic runs against one configuration.
type Runner struct {
	cfg        *config.Config
	exec       services.Executor
	baseLogger *slog.Logger
	logger     *slog.Logger
	cache      *cache.Store

	cleanerCap deps.Capability
	cleanerSet bool
	params     render.Params
	paramsSet  bool

	invoker   *render.Invoker
	cleaner   *postprocess.Cleaner
	collector *schematic.Collector
}

// New builds a runner. The post-processor is probed once here unless
// WithCleaner supplies the capability.
func New(cfg *config.Config, opts ...Option) (*Runner, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "init", "configuration required", nil)
	}
	r := &Runner{
		cfg:  cfg,
		exec: services.CommandExecutor{},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.NewComponentLogger(r.baseLogger, "pipeline")

	if !r.cleanerSet {
		r.cleanerCap = deps.Unavailable(cfg.PostProcess.Binary)
		if cfg.PostProcess.Enabled {
			r.cleanerCap = deps.Probe(cfg.PostProcess.Binary)
		}
	}
	if !r.cleanerCap.Available && (r.cleanerSet || cfg.PostProcess.Enabled) {
		logging.WarnWithContext(r.logger, "post-processor unavailable", "postprocess_unavailable",
			logging.String("tool", r.cleanerCap.Name),
			logging.String(logging.FieldErrorHint, "install svgcleaner or set postprocess.enabled = false"),
			logging.String(logging.FieldImpact, "artifacts are emitted without size reduction"),
		)
	}
	r.cleaner = postprocess.New(r.cleanerCap,
		postprocess.WithExecutor(r.exec),
		postprocess.WithLogger(r.baseLogger),
	)

	renderOpts := []render.Option{
		render.WithExecutor(r.exec),
		render.WithLogger(r.baseLogger),
		render.WithLayerTimeout(cfg.LayerTimeout()),
	}
	if r.paramsSet {
		renderOpts = append(renderOpts, render.WithParams(r.params))
	}
	invoker, err := render.New(cfg.Engine.Binary, renderOpts...)
	if err != nil {
		return nil, err
	}
	r.invoker = invoker

	collector, err := schematic.New(cfg.Schematic.Binary, r.cleaner,
		schematic.WithExecutor(r.exec),
		schematic.WithLogger(r.baseLogger),
		schematic.WithLockDir(cfg.Paths.LockDir),
		schematic.WithTimeout(cfg.SchematicTimeout()),
	)
	if err != nil {
		return nil, err
	}
	r.collector = collector
	return r, nil
}

// CleanerAvailable reports whether artifacts will be post-processed.
func (r *Runner) CleanerAvailable() bool {
	return r.cleaner.Available()
}

// Signature identifies everything besides the board bytes that influences
// the board document. The engine is asked for its version on first use.
func (r *Runner) Signature(ctx context.Context) string {
	cleaner := "none"
	if r.cleaner.Available() {
		cleaner = r.cleanerCap.Name
	}
	return r.invoker.Signature(ctx) + ";cleaner=" + cleaner
}
