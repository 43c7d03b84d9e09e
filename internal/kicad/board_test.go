package kicad

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"edaplot/internal/services"
)

const boardHeader = `(kicad_pcb (version 20221018) (generator pcbnew)
  (layers
    (0 "F.Cu" signal)
    (31 "B.Cu" signal "Bottom")
    (37 "F.SilkS" user "F.Silkscreen")
    (44 "Edge.Cuts" user)
  )
`

func writeBoard(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "demo.kicad_pcb")
	if err := os.WriteFile(path, []byte(boardHeader+body+")\n"), 0o644); err != nil {
		t.Fatalf("write board: %v", err)
	}
	return path
}

func assertGeometry(t *testing.T, got, want Geometry) {
	t.Helper()
	const eps = 1e-6
	if math.Abs(got.X-want.X) > eps || math.Abs(got.Y-want.Y) > eps ||
		math.Abs(got.Width-want.Width) > eps || math.Abs(got.Height-want.Height) > eps {
		t.Fatalf("unexpected geometry: got %+v want %+v", got, want)
	}
}

func TestLoadBoardLayerTable(t *testing.T) {
	board, err := LoadBoard(writeBoard(t, ""))
	if err != nil {
		t.Fatalf("LoadBoard returned error: %v", err)
	}
	if board.Name() != "demo" {
		t.Fatalf("unexpected board name %q", board.Name())
	}
	if len(board.Layers) != 4 {
		t.Fatalf("expected four layers, got %d", len(board.Layers))
	}
	if got := board.UserName("B.Cu"); got != "Bottom" {
		t.Fatalf("unexpected user name %q", got)
	}
	if got := board.UserName("F.SilkS"); got != "F.Silkscreen" {
		t.Fatalf("unexpected user name %q", got)
	}
	if got := board.UserName("F.Cu"); got != "" {
		t.Fatalf("expected no user name, got %q", got)
	}
	if !board.HasLayer("Edge.Cuts") || board.HasLayer("In1.Cu") {
		t.Fatal("unexpected layer presence")
	}
}

func TestLoadBoardErrors(t *testing.T) {
	dir := t.TempDir()
	notBoard := filepath.Join(dir, "sch.kicad_sch")
	if err := os.WriteFile(notBoard, []byte("(kicad_sch (version 1))"), 0o644); err != nil {
		t.Fatal(err)
	}
	broken := filepath.Join(dir, "broken.kicad_pcb")
	if err := os.WriteFile(broken, []byte("(kicad_pcb (layers"), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, path := range []string{filepath.Join(dir, "missing.kicad_pcb"), notBoard, broken} {
		_, err := LoadBoard(path)
		if !errors.Is(err, services.ErrLoad) {
			t.Fatalf("expected load error for %s, got %v", path, err)
		}
	}
}

func TestBoundingBoxEdgeRectangle(t *testing.T) {
	board, err := LoadBoard(writeBoard(t, `
  (gr_rect (start 10 20) (end 110 70) (stroke (width 0) (type solid)) (layer "Edge.Cuts"))
  (segment (start 20 30) (end 60 30) (width 0) (layer "F.Cu") (net 1))
`))
	if err != nil {
		t.Fatalf("LoadBoard returned error: %v", err)
	}
	assertGeometry(t, board.BoundingBox(), Geometry{X: 10, Y: 20, Width: 100, Height: 50})
}

func TestBoundingBoxIncludesStrokeWidth(t *testing.T) {
	board, err := LoadBoard(writeBoard(t, `
  (gr_line (start 0 0) (end 10 0) (width 0.2) (layer "Edge.Cuts"))
`))
	if err != nil {
		t.Fatalf("LoadBoard returned error: %v", err)
	}
	assertGeometry(t, board.BoundingBox(), Geometry{X: -0.1, Y: -0.1, Width: 10.2, Height: 0.2})
}

func TestBoundingBoxNegativeOriginAndVia(t *testing.T) {
	board, err := LoadBoard(writeBoard(t, `
  (via (at -5 -5) (size 0.8) (drill 0.4) (layers "F.Cu" "B.Cu") (net 0))
  (gr_circle (center 10 10) (end 12 10) (stroke (width 0) (type solid)) (layer "F.SilkS"))
`))
	if err != nil {
		t.Fatalf("LoadBoard returned error: %v", err)
	}
	assertGeometry(t, board.BoundingBox(), Geometry{X: -5.4, Y: -5.4, Width: 17.4, Height: 17.4})
}

func TestBoundingBoxRotatedFootprint(t *testing.T) {
	board, err := LoadBoard(writeBoard(t, `
  (footprint "R_0603" (layer "F.Cu") (at 50 50 90)
    (fp_line (start -2 0) (end 2 0) (stroke (width 0) (type solid)) (layer "F.SilkS"))
    (pad "1" smd rect (at 1 0 90) (size 1 2) (layers "F.Cu"))
  )
`))
	if err != nil {
		t.Fatalf("LoadBoard returned error: %v", err)
	}
	// The silk line rotates to vertical: x=50, y 48..52. The pad centre
	// moves to (50, 49) and its 1x2 outline rotated 90 degrees spans 2x1.
	assertGeometry(t, board.BoundingBox(), Geometry{X: 49, Y: 48, Width: 2, Height: 4})
}

func TestBoundingBoxArcExtremes(t *testing.T) {
	board, err := LoadBoard(writeBoard(t, `
  (gr_arc (start -10 0) (mid 0 -10) (end 10 0) (stroke (width 0) (type solid)) (layer "Edge.Cuts"))
`))
	if err != nil {
		t.Fatalf("LoadBoard returned error: %v", err)
	}
	assertGeometry(t, board.BoundingBox(), Geometry{X: -10, Y: -10, Width: 20, Height: 10})
}

func TestBoundingBoxLegacyArc(t *testing.T) {
	board, err := LoadBoard(writeBoard(t, `
  (gr_arc (start 0 0) (end 10 0) (angle 90) (layer Edge.Cuts) (width 0))
`))
	if err != nil {
		t.Fatalf("LoadBoard returned error: %v", err)
	}
	// Centre (0,0), from (10,0) clockwise on screen by 90 degrees to (0,10).
	assertGeometry(t, board.BoundingBox(), Geometry{X: 0, Y: 0, Width: 10, Height: 10})
}

func TestBoundingBoxZoneOutline(t *testing.T) {
	board, err := LoadBoard(writeBoard(t, `
  (zone (net 1) (net_name "GND") (layer "F.Cu")
    (polygon (pts (xy 0 0) (xy 30 0) (xy 30 15) (xy 0 15)))
  )
`))
	if err != nil {
		t.Fatalf("LoadBoard returned error: %v", err)
	}
	assertGeometry(t, board.BoundingBox(), Geometry{X: 0, Y: 0, Width: 30, Height: 15})
}

func TestBoundingBoxEmptyBoard(t *testing.T) {
	board, err := LoadBoard(writeBoard(t, ""))
	if err != nil {
		t.Fatalf("LoadBoard returned error: %v", err)
	}
	assertGeometry(t, board.BoundingBox(), Geometry{})
}
