// Package layers holds the fixed, ordered catalog of board layers edaplot
// renders and the name resolution used to map engine output files back to
// catalog keys.
package layers

import (
	"crypto/sha256"
	"encoding/hex"
)

// Spec describes one logical board layer.
type Spec struct {
	// Key is the stable identifier used in output documents.
	Key string `json:"key"`
	// EngineName is the canonical layer name understood by the render engine.
	EngineName string `json:"engine_name"`
	// Description is human readable.
	Description string `json:"description"`
}

// catalog is ordered by render order. Adding a layer is an edit here only.
var catalog = []Spec{
	{Key: "F_Cu", EngineName: "F.Cu", Description: "Top copper"},
	{Key: "In1_Cu", EngineName: "In1.Cu", Description: "Inner copper 1"},
	{Key: "In2_Cu", EngineName: "In2.Cu", Description: "Inner copper 2"},
	{Key: "In3_Cu", EngineName: "In3.Cu", Description: "Inner copper 3"},
	{Key: "In4_Cu", EngineName: "In4.Cu", Description: "Inner copper 4"},
	{Key: "B_Cu", EngineName: "B.Cu", Description: "Bottom copper"},
	{Key: "F_Adhes", EngineName: "F.Adhes", Description: "Adhesive top"},
	{Key: "B_Adhes", EngineName: "B.Adhes", Description: "Adhesive bottom"},
	{Key: "F_Paste", EngineName: "F.Paste", Description: "Paste top"},
	{Key: "B_Paste", EngineName: "B.Paste", Description: "Paste bottom"},
	{Key: "F_SilkS", EngineName: "F.SilkS", Description: "Silk top"},
	{Key: "B_SilkS", EngineName: "B.SilkS", Description: "Silk bottom"},
	{Key: "F_Mask", EngineName: "F.Mask", Description: "Mask top"},
	{Key: "B_Mask", EngineName: "B.Mask", Description: "Mask bottom"},
	{Key: "Dwgs_User", EngineName: "Dwgs.User", Description: "User drawings"},
	{Key: "Cmts_User", EngineName: "Cmts.User", Description: "User comments"},
	{Key: "Eco1_User", EngineName: "Eco1.User", Description: "Engineering change order 1"},
	{Key: "Eco2_User", EngineName: "Eco2.User", Description: "Engineering change order 2"},
	{Key: "Edge_Cuts", EngineName: "Edge.Cuts", Description: "Edges"},
	{Key: "Margin", EngineName: "Margin", Description: "Margin"},
	{Key: "F_CrtYd", EngineName: "F.CrtYd", Description: "Courtyard top"},
	{Key: "B_CrtYd", EngineName: "B.CrtYd", Description: "Courtyard bottom"},
	{Key: "F_Fab", EngineName: "F.Fab", Description: "Fabrication top"},
	{Key: "B_Fab", EngineName: "B.Fab", Description: "Fabrication bottom"},
}

var byKey = func() map[string]Spec {
	m := make(map[string]Spec, len(catalog))
	for _, spec := range catalog {
		m[spec.Key] = spec
	}
	return m
}()

// Catalog returns a copy of the layer catalog in render order.
func Catalog() []Spec {
	out := make([]Spec, len(catalog))
	copy(out, catalog)
	return out
}

// Keys returns the catalog keys in render order.
func Keys() []string {
	keys := make([]string, len(catalog))
	for i, spec := range catalog {
		keys[i] = spec.Key
	}
	return keys
}

// Lookup returns the spec for key.
func Lookup(key string) (Spec, bool) {
	spec, ok := byKey[key]
	return spec, ok
}

// Fingerprint is a short digest of the catalog's keys and engine names in
// order. It changes whenever the catalog does.
func Fingerprint() string {
	h := sha256.New()
	for _, spec := range catalog {
		h.Write([]byte(spec.Key + "=" + spec.EngineName + "\n"))
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
