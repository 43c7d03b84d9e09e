// Package deps reports the availability of the external tools edaplot
// drives: the KiCad command line, svgcleaner and plotgitsch.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"edaplot/internal/config"
)

// Requirement defines an external dependency edaplot relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Path        string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Capability is the outcome of probing a single tool once. It is handed to
// components that degrade when the tool is missing.
type Capability struct {
	Name      string
	Path      string
	Available bool
}

// Probe resolves command on PATH.
func Probe(command string) Capability {
	command = strings.TrimSpace(command)
	capability := Capability{Name: command}
	if command == "" {
		return capability
	}
	resolved, err := exec.LookPath(command)
	if err != nil {
		return capability
	}
	capability.Path = resolved
	capability.Available = true
	return capability
}

// Unavailable returns a capability for a tool that must not be used.
func Unavailable(name string) Capability {
	return Capability{Name: name}
}

// Requirements lists the tools the configuration refers to.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{Name: "KiCad CLI", Command: cfg.Engine.Binary, Description: "Exports board layers to SVG"},
		{Name: "svgcleaner", Command: cfg.PostProcess.Binary, Description: "Shrinks rendered SVGs", Optional: true},
		{Name: "plotgitsch", Command: cfg.Schematic.Binary, Description: "Renders schematic diffs between revisions", Optional: true},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		probe := Probe(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     strings.TrimSpace(req.Command),
			Path:        probe.Path,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
			Available:   probe.Available,
		}
		switch {
		case status.Command == "":
			status.Detail = "command not configured"
		case !probe.Available:
			status.Detail = fmt.Sprintf("binary %q not found", status.Command)
		}
		results = append(results, status)
	}
	return results
}
