// Package kicad reads the parts of a KiCad board file edaplot needs without
// the KiCad runtime: the layer table and the bounding extent of the drawn
// content.
package kicad

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"edaplot/internal/services"
	"edaplot/internal/sexpr"
)

// LayerDef is one entry of the board's layer table.
type LayerDef struct {
	Ordinal   int
	Canonical string
	Type      string
	// UserName is the board-specific name when the layer was renamed.
	UserName string
}

// Board is a parsed board file.
type Board struct {
	Path   string
	Layers []LayerDef
	root   *sexpr.Node
}

// LoadBoard parses the board at path. Any failure is reported as
// services.ErrLoad.
func LoadBoard(path string) (*Board, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrLoad, "board", "open", path, err)
	}
	defer file.Close()

	root, err := sexpr.Parse(file)
	if err != nil {
		return nil, services.Wrap(services.ErrLoad, "board", "parse", path, err)
	}
	if root.Name() != "kicad_pcb" {
		return nil, services.Wrap(services.ErrLoad, "board", "parse", fmt.Sprintf("%s is not a KiCad board (root %q)", path, root.Name()), nil)
	}

	board := &Board{Path: path, root: root}
	if table := root.Child("layers"); table != nil {
		for _, entry := range table.Args() {
			def, ok := parseLayerDef(entry)
			if ok {
				board.Layers = append(board.Layers, def)
			}
		}
	}
	return board, nil
}

func parseLayerDef(entry *sexpr.Node) (LayerDef, bool) {
	if !entry.IsList || len(entry.Items) < 2 {
		return LayerDef{}, false
	}
	ordinal, err := strconv.Atoi(entry.Items[0].Value)
	if err != nil {
		return LayerDef{}, false
	}
	def := LayerDef{Ordinal: ordinal, Canonical: entry.Items[1].Value}
	if len(entry.Items) > 2 {
		def.Type = entry.Items[2].Value
	}
	if len(entry.Items) > 3 && !entry.Items[3].IsList {
		def.UserName = entry.Items[3].Value
	}
	return def, true
}

// Name is the board file name without extension. The engine prefixes every
// output file with it.
func (b *Board) Name() string {
	base := filepath.Base(b.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// UserName returns the board-specific name of the layer whose canonical name
// is canonical, or "" when the layer is not renamed.
func (b *Board) UserName(canonical string) string {
	for _, def := range b.Layers {
		if def.Canonical == canonical && def.UserName != canonical {
			return def.UserName
		}
	}
	return ""
}

// HasLayer reports whether the board's layer table defines canonical.
func (b *Board) HasLayer(canonical string) bool {
	for _, def := range b.Layers {
		if def.Canonical == canonical {
			return true
		}
	}
	return false
}
