package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"edaplot/internal/cache"
	"edaplot/internal/deps"
	"edaplot/internal/preflight"
	"edaplot/internal/staging"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check external tools and working directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			var lines []string
			lines = append(lines, renderSectionHeader("Tools", colorize)...)
			for _, status := range preflight.CheckSystemDeps(cfg) {
				lines = append(lines, renderStatusLine(status.Name, dependencyKind(status), dependencyMessage(status), colorize))
			}

			results := preflight.RunAll(cmd.Context(), cfg)
			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Checks", colorize)...)
			for _, result := range results {
				kind := statusOK
				switch {
				case !result.Passed && result.Optional:
					kind = statusWarn
				case !result.Passed:
					kind = statusError
				}
				lines = append(lines, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Storage", colorize)...)
			lines = append(lines, scratchStatusLine(cfg.Paths.ScratchDir, colorize))
			if cfg.Cache.Enabled {
				lines = append(lines, cacheStatusLine(cmd, cfg.Cache.Path, colorize))
			} else {
				lines = append(lines, renderStatusLine("Render cache", statusInfo, "disabled", colorize))
			}

			fmt.Fprintln(out, strings.Join(lines, "\n"))

			if failed := preflight.Failed(results); len(failed) > 0 {
				return errors.New("required checks failed")
			}
			return nil
		},
	}
}

func dependencyKind(status deps.Status) statusKind {
	switch {
	case status.Available:
		return statusOK
	case status.Optional:
		return statusWarn
	default:
		return statusError
	}
}

func dependencyMessage(status deps.Status) string {
	if status.Available {
		return status.Path
	}
	if status.Optional {
		return status.Detail + " (optional)"
	}
	return status.Detail
}

func scratchStatusLine(root string, colorize bool) string {
	dirs, err := staging.ListDirectories(root)
	if err != nil {
		return renderStatusLine("Scratch", statusError, err.Error(), colorize)
	}
	if len(dirs) == 0 {
		return renderStatusLine("Scratch", statusOK, "no run directories", colorize)
	}
	var total int64
	for _, dir := range dirs {
		total += dir.Size
	}
	return renderStatusLine("Scratch", statusWarn, fmt.Sprintf("%d run directories (%s)", len(dirs), humanize.IBytes(uint64(total))), colorize)
}

func cacheStatusLine(cmd *cobra.Command, path string, colorize bool) string {
	store, err := cache.Open(path)
	if err != nil {
		return renderStatusLine("Render cache", statusWarn, err.Error(), colorize)
	}
	defer store.Close()
	stats, err := store.Stats(cmd.Context())
	if err != nil {
		return renderStatusLine("Render cache", statusWarn, err.Error(), colorize)
	}
	return renderStatusLine("Render cache", statusOK, fmt.Sprintf("%d entries (%s)", stats.Entries, humanize.IBytes(uint64(stats.Bytes))), colorize)
}
