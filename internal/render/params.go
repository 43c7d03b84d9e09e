package render

import (
	"fmt"
	"strconv"
)

// Params is the fixed plot configuration applied to every layer.
type Params struct {
	Color bool
	// LineWidth is the default line width in millimetres for items without
	// an explicit width.
	LineWidth float64
	Scale     float64
	Mirror    bool
	// ExcludeFrame drops the drawing sheet (frame and title block).
	ExcludeFrame bool
	// BoardOrigin crops the page to the board so coordinates are relative to
	// the board extent instead of the sheet.
	BoardOrigin bool
}

// DefaultParams returns the deterministic parameter set used for diffing.
func DefaultParams() Params {
	return Params{
		Color:        true,
		LineWidth:    0.15,
		Scale:        2,
		Mirror:       false,
		ExcludeFrame: true,
		BoardOrigin:  true,
	}
}

// exportArgs builds the kicad-cli arguments for one layer. kicad-cli has no
// switches for line width or scale; SVG output is resolution independent
// and KiCad uses the board's own widths, so both only feed the signature.
func (p Params) exportArgs(boardPath, outputPath, engineLayer string) []string {
	args := []string{"pcb", "export", "svg", "--output", outputPath, "--layers", engineLayer}
	if p.ExcludeFrame {
		args = append(args, "--exclude-drawing-sheet")
	}
	if p.BoardOrigin {
		args = append(args, "--page-size-mode", "2")
	}
	if !p.Color {
		args = append(args, "--black-and-white")
	}
	if p.Mirror {
		args = append(args, "--mirror")
	}
	return append(args, boardPath)
}

// Signature identifies the parameter set for caching.
func (p Params) Signature() string {
	return fmt.Sprintf("color=%t;lw=%s;scale=%s;mirror=%t;frame=%t;origin=%t",
		p.Color,
		strconv.FormatFloat(p.LineWidth, 'f', -1, 64),
		strconv.FormatFloat(p.Scale, 'f', -1, 64),
		p.Mirror, !p.ExcludeFrame, p.BoardOrigin)
}
