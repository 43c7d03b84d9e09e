// Package output assembles and serializes the JSON documents edaplot
// emits.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"edaplot/internal/kicad"
	"edaplot/internal/services"
)

// BoardDocument is the board-mode result.
type BoardDocument struct {
	X1     float64           `json:"x1"`
	Y1     float64           `json:"y1"`
	Width  float64           `json:"width"`
	Height float64           `json:"height"`
	Layers map[string]string `json:"layers"`
}

// SchematicDocument is the schematic-mode result.
type SchematicDocument struct {
	Schematics map[string]string `json:"schematics"`
}

// NewBoardDocument merges the geometry with the layer contents. A nil map
// yields an empty "layers" object rather than null.
func NewBoardDocument(geom kicad.Geometry, layers map[string]string) BoardDocument {
	if layers == nil {
		layers = map[string]string{}
	}
	return BoardDocument{
		X1:     geom.X,
		Y1:     geom.Y,
		Width:  geom.Width,
		Height: geom.Height,
		Layers: layers,
	}
}

// NewSchematicDocument wraps collected schematic artifacts.
func NewSchematicDocument(artifacts map[string]string) SchematicDocument {
	if artifacts == nil {
		artifacts = map[string]string{}
	}
	return SchematicDocument{Schematics: artifacts}
}

// Encode serializes doc. Map keys are sorted, so equal inputs give equal
// bytes. HTML characters are not escaped because the values are SVG markup.
func Encode(doc any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, services.Wrap(services.ErrIO, "output", "encode", fmt.Sprintf("%T", doc), err)
	}
	return buf.Bytes(), nil
}

// Write encodes doc fully in memory and emits it with a single Write call.
func Write(w io.Writer, doc any) error {
	data, err := Encode(doc)
	if err != nil {
		return err
	}
	return WriteEncoded(w, data)
}

// WriteEncoded emits an already encoded document with a single Write call.
func WriteEncoded(w io.Writer, data []byte) error {
	n, err := w.Write(data)
	if err != nil {
		return services.Wrap(services.ErrIO, "output", "write", "", err)
	}
	if n != len(data) {
		return services.Wrap(services.ErrIO, "output", "write", "", io.ErrShortWrite)
	}
	return nil
}
