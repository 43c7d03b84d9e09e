package render

import (
	"encoding/xml"
	"errors"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"edaplot/internal/kicad"
)

// plotExtent is the area the engine plotted, read from the root element of
// an exported SVG.
type plotExtent struct {
	geometry kicad.Geometry
	// located is false when the viewBox is page relative (origin 0,0), in
	// which case only the size is known.
	located bool
}

// apply returns the geometry to report for the board. The engine's extent
// wins because the artifacts are cropped to it; fallback supplies the
// origin when the viewBox does not carry one.
func (e plotExtent) apply(fallback kicad.Geometry) kicad.Geometry {
	g := e.geometry
	if !e.located {
		g.X, g.Y = fallback.X, fallback.Y
	}
	return g
}

// millimetres per unit of an SVG length.
var lengthUnits = map[string]float64{
	"mm": 1,
	"cm": 10,
	"in": 25.4,
	"pt": 25.4 / 72,
	"pc": 25.4 / 6,
	"px": 25.4 / 96,
}

// readPlotExtent parses the width, height and viewBox attributes of the
// first element in path. ok is false when the file is not an SVG or lacks a
// physical size and a viewBox.
func readPlotExtent(path string) (plotExtent, bool) {
	f, err := os.Open(path)
	if err != nil {
		return plotExtent{}, false
	}
	defer f.Close()

	root, err := rootElement(xml.NewDecoder(f))
	if err != nil || root.Name.Local != "svg" {
		return plotExtent{}, false
	}
	var width, height, viewBox string
	for _, attr := range root.Attr {
		switch attr.Name.Local {
		case "width":
			width = attr.Value
		case "height":
			height = attr.Value
		case "viewBox":
			viewBox = attr.Value
		}
	}
	vb, ok := parseViewBox(viewBox)
	if !ok {
		return plotExtent{}, false
	}
	w, okW := parseLength(width)
	h, okH := parseLength(height)
	if !okW || !okH {
		return plotExtent{}, false
	}
	sx, sy := w/vb[2], h/vb[3]
	return plotExtent{
		geometry: kicad.Geometry{
			X:      roundMicro(vb[0] * sx),
			Y:      roundMicro(vb[1] * sy),
			Width:  roundMicro(w),
			Height: roundMicro(h),
		},
		located: vb[0] != 0 || vb[1] != 0,
	}, true
}

func rootElement(dec *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return xml.StartElement{}, io.ErrUnexpectedEOF
			}
			return xml.StartElement{}, err
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start, nil
		}
	}
}

func parseViewBox(value string) ([4]float64, bool) {
	var vb [4]float64
	fields := strings.FieldsFunc(value, func(r rune) bool { return r == ' ' || r == ',' || r == '\t' || r == '\n' })
	if len(fields) != len(vb) {
		return vb, false
	}
	for i, field := range fields {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return vb, false
		}
		vb[i] = v
	}
	return vb, vb[2] > 0 && vb[3] > 0
}

// parseLength converts an absolute SVG length to millimetres. Unitless and
// relative lengths carry no physical size and are rejected.
func parseLength(value string) (float64, bool) {
	value = strings.TrimSpace(value)
	for unit, scale := range lengthUnits {
		number, found := strings.CutSuffix(value, unit)
		if !found {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(number), 64)
		if err != nil || v <= 0 {
			return 0, false
		}
		return v * scale, true
	}
	return 0, false
}

func roundMicro(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
