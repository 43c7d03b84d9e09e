// Package postprocess applies the optional svgcleaner size-reduction pass to
// rendered artifacts in place.
package postprocess

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"edaplot/internal/deps"
	"edaplot/internal/logging"
	"edaplot/internal/services"
)

// Option configures the cleaner.
type Option func(*Cleaner)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec services.Executor) Option {
	return func(c *Cleaner) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cleaner) {
		c.logger = logging.NewComponentLogger(logger, "postprocess")
	}
}

// Cleaner runs svgcleaner over files when the tool is available.
type Cleaner struct {
	capability deps.Capability
	exec       services.Executor
	logger     *slog.Logger
}

// New builds a cleaner around a probed capability. An unavailable
// capability turns Process into a no-op.
func New(capability deps.Capability, opts ...Option) *Cleaner {
	c := &Cleaner{
		capability: capability,
		exec:       services.CommandExecutor{},
		logger:     logging.NewComponentLogger(nil, "postprocess"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Available reports whether the tool will run.
func (c *Cleaner) Available() bool {
	return c != nil && c.capability.Available
}

// Process rewrites path in place. A non-zero exit is fatal and carries the
// tool's exit status.
func (c *Cleaner) Process(ctx context.Context, path string) error {
	if !c.Available() {
		return nil
	}
	binary := c.capability.Path
	if binary == "" {
		binary = c.capability.Name
	}
	_, err := c.exec.Run(ctx, services.Command{Binary: binary, Args: []string{path, path}})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return services.Wrap(services.ErrPostProcess, "postprocess", c.capability.Name, path, err)
	}
	logging.WithContext(ctx, c.logger).Debug("artifact cleaned", logging.String("path", path))
	return nil
}

// ProcessAll cleans every path with at most jobs concurrent tool runs. The
// first failure cancels the remaining work and is returned.
func ProcessAll(ctx context.Context, cleaner *Cleaner, paths []string, jobs int) error {
	if !cleaner.Available() || len(paths) == 0 {
		return nil
	}
	if jobs < 1 {
		jobs = 1
	}
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(jobs)
	for _, path := range paths {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			return cleaner.Process(groupCtx, path)
		})
	}
	return group.Wait()
}
