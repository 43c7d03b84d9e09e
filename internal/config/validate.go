package config

import (
	"errors"
	"fmt"
	"net"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateTimeouts(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateRender() error {
	if c.Render.Jobs < 1 {
		return errors.New("render.jobs must be positive")
	}
	if c.Render.Jobs > 64 {
		return errors.New("render.jobs must not exceed 64")
	}
	if c.Render.StaleScratchMinutes < 0 {
		return errors.New("render.stale_scratch_minutes must be non-negative")
	}
	return nil
}

func (c *Config) validateTimeouts() error {
	if c.Engine.LayerTimeout < 0 {
		return errors.New("engine.layer_timeout must be non-negative")
	}
	if c.Schematic.Timeout < 0 {
		return errors.New("schematic.timeout must be non-negative")
	}
	return nil
}

func (c *Config) validateServer() error {
	if _, _, err := net.SplitHostPort(c.Server.Bind); err != nil {
		return fmt.Errorf("server.bind: %w", err)
	}
	if c.Server.MaxBoardMiB < 1 {
		return errors.New("server.max_board_mib must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q (use console or json)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
