package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"edaplot/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("XDG_CACHE_HOME", "")
	t.Setenv(config.EnvEngineBinary, "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved != filepath.Join(tempHome, ".config", "edaplot", "config.toml") {
		t.Fatalf("unexpected resolved path %q", resolved)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if cfg.Paths.LockDir != filepath.Join(tempHome, ".local", "state", "edaplot", "locks") {
		t.Fatalf("unexpected lock dir: %q", cfg.Paths.LockDir)
	}
	if cfg.Cache.Path != filepath.Join(tempHome, ".cache", "edaplot", "renders.db") {
		t.Fatalf("unexpected cache path: %q", cfg.Cache.Path)
	}
	if cfg.Engine.Binary != "kicad-cli" {
		t.Fatalf("unexpected engine binary: %q", cfg.Engine.Binary)
	}
	if cfg.PostProcess.Binary != "svgcleaner" || !cfg.PostProcess.Enabled {
		t.Fatalf("unexpected postprocess config: %+v", cfg.PostProcess)
	}
	if cfg.Schematic.Binary != "plotgitsch" {
		t.Fatalf("unexpected schematic binary: %q", cfg.Schematic.Binary)
	}
	if cfg.Render.Jobs != 1 {
		t.Fatalf("expected one job by default, got %d", cfg.Render.Jobs)
	}
	if cfg.LayerTimeout() != 0 || cfg.SchematicTimeout() != 0 {
		t.Fatal("expected timeouts disabled by default")
	}
	if cfg.Cache.Enabled {
		t.Fatal("expected cache disabled by default")
	}
	if cfg.Server.Bind != "127.0.0.1:7488" {
		t.Fatalf("unexpected server bind: %q", cfg.Server.Bind)
	}
}

func TestLoadCustomConfig(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv(config.EnvEngineBinary, "")

	configPath := filepath.Join(t.TempDir(), "edaplot.toml")
	content := `
[paths]
scratch_dir = "~/scratch"

[engine]
binary = "/opt/kicad/bin/kicad-cli"
layer_timeout = 30

[render]
jobs = 4

[server]
repo_root = "~/repos"

[logging]
format = "JSON"
level = "DEBUG"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom path to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Paths.ScratchDir != filepath.Join(tempHome, "scratch") {
		t.Fatalf("unexpected scratch dir: %q", cfg.Paths.ScratchDir)
	}
	if cfg.Engine.Binary != "/opt/kicad/bin/kicad-cli" {
		t.Fatalf("unexpected engine binary: %q", cfg.Engine.Binary)
	}
	if cfg.LayerTimeout() != 30*time.Second {
		t.Fatalf("unexpected layer timeout: %s", cfg.LayerTimeout())
	}
	if cfg.Render.Jobs != 4 {
		t.Fatalf("unexpected jobs: %d", cfg.Render.Jobs)
	}
	if cfg.Server.RepoRoot != filepath.Join(tempHome, "repos") {
		t.Fatalf("unexpected repo root: %q", cfg.Server.RepoRoot)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("expected logging values to be normalized, got %+v", cfg.Logging)
	}
}

func TestEngineBinaryEnvOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(config.EnvEngineBinary, "/usr/local/bin/kicad-cli-nightly")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Engine.Binary != "/usr/local/bin/kicad-cli-nightly" {
		t.Fatalf("expected env override, got %q", cfg.Engine.Binary)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(config.EnvEngineBinary, "")

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "negative jobs", content: "[render]\njobs = -1\n", want: "render.jobs"},
		{name: "negative timeout", content: "[schematic]\ntimeout = -5\n", want: "schematic.timeout"},
		{name: "bad bind", content: "[server]\nbind = \"localhost\"\n", want: "server.bind"},
		{name: "bad format", content: "[logging]\nformat = \"xml\"\n", want: "logging.format"},
		{name: "unknown key", content: "[engine]\nbinnary = \"x\"\n", want: "binnary"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			_, _, _, err := config.Load(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in error, got %v", tc.want, err)
			}
		})
	}
}

func TestCreateSampleProducesLoadableConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(config.EnvEngineBinary, "")

	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		t.Fatalf("sample is not valid TOML: %v", err)
	}
	for _, section := range []string{"paths", "engine", "postprocess", "schematic", "render", "cache", "server", "logging"} {
		if _, ok := raw[section]; !ok {
			t.Fatalf("expected section %q in sample config", section)
		}
	}
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config failed to load: %v", err)
	}
}

func TestEncodeRoundTrips(t *testing.T) {
	cfg := config.Default()
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	if !strings.Contains(string(data), "[engine]") {
		t.Fatalf("expected engine section in %s", data)
	}
}
