package preflight

import (
	"context"

	"edaplot/internal/config"
	"edaplot/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Scratch directory", cfg.Paths.ScratchDir),
		CheckDirectoryAccess("Lock directory", cfg.Paths.LockDir),
		CheckEngine(ctx, cfg.Engine.Binary),
	}
	if cfg.Server.RepoRoot != "" {
		results = append(results, CheckDirectoryAccess("Repository root", cfg.Server.RepoRoot))
	}
	if cfg.Cache.Enabled {
		results = append(results, CheckCacheLocation(cfg.Cache.Path))
	}
	return results
}

// Failed returns the required checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			failed = append(failed, r)
		}
	}
	return failed
}

// CheckSystemDeps evaluates the external tools referenced by cfg.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(deps.Requirements(cfg))
}
