package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains scratch and lock directory configuration.
type Paths struct {
	ScratchDir string `toml:"scratch_dir"`
	LockDir    string `toml:"lock_dir"`
}

// Engine configures the board rendering engine (kicad-cli).
type Engine struct {
	Binary string `toml:"binary"`
	// LayerTimeout bounds a single layer export in seconds. 0 disables it.
	LayerTimeout int `toml:"layer_timeout"`
}

// PostProcess configures the SVG size-reduction pass.
type PostProcess struct {
	Binary  string `toml:"binary"`
	Enabled bool   `toml:"enabled"`
}

// Schematic configures the revision-comparison tool (plotgitsch).
type Schematic struct {
	Binary  string `toml:"binary"`
	Timeout int    `toml:"timeout"`
}

// Render contains pipeline tuning knobs.
type Render struct {
	Jobs                int `toml:"jobs"`
	StaleScratchMinutes int `toml:"stale_scratch_minutes"`
}

// Cache configures the board render cache.
type Cache struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Server configures the HTTP service started by `edaplot serve`.
type Server struct {
	Bind        string `toml:"bind"`
	RepoRoot    string `toml:"repo_root"`
	MaxBoardMiB int    `toml:"max_board_mib"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	File   string `toml:"file"`
}

// Config encapsulates all configuration values for edaplot.
//
// Configuration sections by subsystem:
//   - Paths: scratch and lock directories
//   - Engine: kicad-cli location and per-layer timeout
//   - PostProcess: svgcleaner location and toggle
//   - Schematic: plotgitsch location and timeout
//   - Render: post-processing parallelism and stale scratch cleanup
//   - Cache: render cache database
//   - Server: HTTP service bind address and limits
//   - Logging: log format, level, and optional file
type Config struct {
	Paths       Paths       `toml:"paths"`
	Engine      Engine      `toml:"engine"`
	PostProcess PostProcess `toml:"postprocess"`
	Schematic   Schematic   `toml:"schematic"`
	Render      Render      `toml:"render"`
	Cache       Cache       `toml:"cache"`
	Server      Server      `toml:"server"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/edaplot/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config: %s", strings.TrimSpace(strict.String()))
			}
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("edaplot.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the scratch and lock directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.ScratchDir, c.Paths.LockDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Cache.Enabled {
		if err := os.MkdirAll(filepath.Dir(c.Cache.Path), 0o755); err != nil {
			return fmt.Errorf("create cache directory: %w", err)
		}
	}
	return nil
}

// LayerTimeout returns the per-layer export timeout, zero meaning none.
func (c *Config) LayerTimeout() time.Duration {
	return time.Duration(c.Engine.LayerTimeout) * time.Second
}

// SchematicTimeout returns the revision-comparison timeout, zero meaning none.
func (c *Config) SchematicTimeout() time.Duration {
	return time.Duration(c.Schematic.Timeout) * time.Second
}

// StaleScratchAge returns the age after which leftover scratch directories are removed.
func (c *Config) StaleScratchAge() time.Duration {
	return time.Duration(c.Render.StaleScratchMinutes) * time.Minute
}

// MaxBoardBytes returns the upload limit enforced by the HTTP service.
func (c *Config) MaxBoardBytes() int64 {
	return int64(c.Server.MaxBoardMiB) << 20
}

// Encode renders the effective configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultCachePath() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "edaplot", "renders.db")
	}
	return "~/.cache/edaplot/renders.db"
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
