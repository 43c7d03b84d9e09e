// Command edaplot renders KiCad boards and schematic revision diffs into a
// single JSON document of per-layer SVG markup.
//
//	edaplot board [-o DIR] BOARD.kicad_pcb
//	edaplot schematic -i REPO -a REV -b REV
//
// The document is the only thing written to stdout, and only when the run
// succeeds. Logs go to stderr. On failure the exit status is that of the
// failing external tool when there is one, otherwise 1.
package main
