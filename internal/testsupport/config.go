package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"edaplot/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Post-processing is disabled and the cache lives below the temp root.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.ScratchDir = filepath.Join(base, "scratch")
	cfgVal.Paths.LockDir = filepath.Join(base, "locks")
	cfgVal.Cache.Path = filepath.Join(base, "cache", "renders.db")
	cfgVal.PostProcess.Enabled = false
	cfgVal.Server.Bind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithTool writes an executable shell script named name with body and points
// the matching config field at it. Recognised names are kicad-cli,
// svgcleaner and plotgitsch; any other name is only written to the bin dir.
func WithTool(name, body string) ConfigOption {
	return func(b *configBuilder) {
		path := writeScript(b.t, filepath.Join(b.baseDir, "bin"), name, body)
		switch name {
		case "kicad-cli":
			b.cfg.Engine.Binary = path
		case "svgcleaner":
			b.cfg.PostProcess.Binary = path
			b.cfg.PostProcess.Enabled = true
		case "plotgitsch":
			b.cfg.Schematic.Binary = path
		}
	}
}

// WithFakeEngine installs FakeEngineScript as kicad-cli.
func WithFakeEngine() ConfigOption {
	return WithTool("kicad-cli", FakeEngineScript)
}

// WithRepoRoot sets the directory the HTTP service may read repositories
// from.
func WithRepoRoot(dir string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Server.RepoRoot = dir
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.ScratchDir)
}

func writeScript(t testing.TB, dir, name, body string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(dir, name)
	if err := os.WriteFile(target, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return target
}
