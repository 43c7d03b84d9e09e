package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// ScenarioBoard is a board whose Edge.Cuts rectangle spans x 10..110 and
// y 20..70 with zero stroke width.
const ScenarioBoard = `(kicad_pcb (version 20221018) (generator pcbnew)
  (layers
    (0 "F.Cu" signal)
    (31 "B.Cu" signal)
    (37 "F.SilkS" user "F.Silkscreen")
    (44 "Edge.Cuts" user)
  )
  (gr_rect (start 10 20) (end 110 70) (stroke (width 0) (type solid)) (layer "Edge.Cuts"))
)
`

// CompleteBoard declares only the layers FakeEngineScript produces, so its
// render has no failed layer the board defines.
const CompleteBoard = `(kicad_pcb (version 20221018) (generator pcbnew)
  (layers
    (0 "F.Cu" signal)
    (44 "Edge.Cuts" user)
  )
  (gr_rect (start 10 20) (end 110 70) (stroke (width 0) (type solid)) (layer "Edge.Cuts"))
)
`

// FakeEngineVersion is what FakeEngineScript prints for `kicad-cli version`.
const FakeEngineVersion = "8.0.4"

// FakeEngineScript emulates `kicad-cli pcb export svg`. It writes the file
// named by --output for F.Cu and Edge.Cuts and fails every other layer.
const FakeEngineScript = `if [ "$1" = "version" ]; then echo "` + FakeEngineVersion + `"; exit 0; fi
out=""
layer=""
while [ $# -gt 0 ]; do
  case "$1" in
    --output) out="$2"; shift 2 ;;
    --layers) layer="$2"; shift 2 ;;
    *) shift ;;
  esac
done
case "$layer" in
  F.Cu|Edge.Cuts) printf '<svg id="%s"/>' "$layer" > "$out" ;;
  *) echo "layer $layer not present" >&2; exit 1 ;;
esac
`

// WriteBoard writes content as name inside a fresh temp dir.
func WriteBoard(t testing.TB, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write board %s: %v", path, err)
	}
	return path
}
