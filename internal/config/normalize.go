package config

import (
	"fmt"
	"os"
	"strings"
)

// EnvEngineBinary overrides engine.binary when set.
const EnvEngineBinary = "EDAPLOT_KICAD_CLI"

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTools()
	if err := c.normalizeCache(); err != nil {
		return err
	}
	if err := c.normalizeServer(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.ScratchDir) == "" {
		c.Paths.ScratchDir = defaultScratchDir()
	}
	if c.Paths.ScratchDir, err = expandPath(strings.TrimSpace(c.Paths.ScratchDir)); err != nil {
		return fmt.Errorf("paths.scratch_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LockDir) == "" {
		c.Paths.LockDir = defaultLockDir
	}
	if c.Paths.LockDir, err = expandPath(strings.TrimSpace(c.Paths.LockDir)); err != nil {
		return fmt.Errorf("paths.lock_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTools() {
	if value, ok := os.LookupEnv(EnvEngineBinary); ok && strings.TrimSpace(value) != "" {
		c.Engine.Binary = value
	}
	c.Engine.Binary = strings.TrimSpace(c.Engine.Binary)
	if c.Engine.Binary == "" {
		c.Engine.Binary = defaultEngineBinary
	}
	c.PostProcess.Binary = strings.TrimSpace(c.PostProcess.Binary)
	if c.PostProcess.Binary == "" {
		c.PostProcess.Binary = defaultPostProcessBinary
	}
	c.Schematic.Binary = strings.TrimSpace(c.Schematic.Binary)
	if c.Schematic.Binary == "" {
		c.Schematic.Binary = defaultSchematicBinary
	}
	if c.Render.Jobs == 0 {
		c.Render.Jobs = defaultJobs
	}
}

func (c *Config) normalizeCache() error {
	var err error
	if strings.TrimSpace(c.Cache.Path) == "" {
		c.Cache.Path = defaultCachePath()
	}
	if c.Cache.Path, err = expandPath(strings.TrimSpace(c.Cache.Path)); err != nil {
		return fmt.Errorf("cache.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeServer() error {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultServerBind
	}
	if c.Server.MaxBoardMiB == 0 {
		c.Server.MaxBoardMiB = defaultMaxBoardMiB
	}
	if strings.TrimSpace(c.Server.RepoRoot) == "" {
		c.Server.RepoRoot = ""
		return nil
	}
	var err error
	if c.Server.RepoRoot, err = expandPath(strings.TrimSpace(c.Server.RepoRoot)); err != nil {
		return fmt.Errorf("server.repo_root: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.File = strings.TrimSpace(c.Logging.File)
	if c.Logging.File != "" {
		if expanded, err := expandPath(c.Logging.File); err == nil {
			c.Logging.File = expanded
		}
	}
}
