package deps

import (
	"context"
	"strings"

	"edaplot/internal/services"
)

// ToolVersion asks a tool for its version string using the given argument
// (kicad-cli uses "version", svgcleaner "--version"). The first non-empty
// output line is returned.
func ToolVersion(ctx context.Context, executor services.Executor, binary, arg string) (string, error) {
	if executor == nil {
		executor = services.CommandExecutor{}
	}
	out, err := executor.Run(ctx, services.Command{Binary: binary, Args: []string{arg}})
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(string(out.Stdout)+"\n"+string(out.Stderr), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line, nil
		}
	}
	return "", nil
}
