package main

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"edaplot/internal/cache"
	"edaplot/internal/config"
	"edaplot/internal/logging"
	"edaplot/internal/pipeline"
	"edaplot/internal/staging"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			cfg.Logging.Level = strings.ToLower(strings.TrimSpace(*c.logLevelFlag))
			if err := cfg.Validate(); err != nil {
				c.configErr = err
				return
			}
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

// openCache opens the render cache when enabled. Failing to open it only
// disables caching for this run.
func (c *commandContext) openCache(cfg *config.Config, logger *slog.Logger) *cache.Store {
	if !cfg.Cache.Enabled {
		return nil
	}
	store, err := cache.Open(cfg.Cache.Path)
	if err != nil {
		logging.WarnWithContext(logger, "render cache unavailable", "cache_open_failed",
			logging.String("path", cfg.Cache.Path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check cache.path or run `edaplot cache clear`"),
			logging.String(logging.FieldImpact, "boards are rendered without the cache"),
		)
		return nil
	}
	return store
}

// newRunner builds a pipeline runner and sweeps scratch directories left by
// killed runs. The returned cleanup closes the cache.
func (c *commandContext) newRunner(ctx context.Context) (*pipeline.Runner, func(), error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, nil, err
	}

	staging.CleanStale(ctx, cfg.Paths.ScratchDir, cfg.StaleScratchAge(), logger)

	store := c.openCache(cfg, logger)
	runner, err := pipeline.New(cfg, pipeline.WithLogger(logger), pipeline.WithCache(store))
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return runner, func() { _ = store.Close() }, nil
}
