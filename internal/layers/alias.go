package layers

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Sanitize converts a layer name into the form the engine uses inside output
// file names. The engine replaces '.' with '_'; names are NFC normalized so
// user-renamed layers compare equal regardless of how the board file encoded
// them.
func Sanitize(name string) string {
	name = norm.NFC.String(strings.TrimSpace(name))
	return strings.ReplaceAll(name, ".", "_")
}

// AliasTable maps every name the engine may have used for a layer's output
// file back to the catalog key.
type AliasTable struct {
	aliases map[string]string
	names   map[string][]string
}

// NewAliasTable builds the table for the catalog. resolve returns the
// board-specific name for a canonical engine name (user-renamed layers), or
// "" when the board keeps the canonical name. It may be nil.
func NewAliasTable(resolve func(engineName string) string) *AliasTable {
	table := &AliasTable{
		aliases: make(map[string]string, len(catalog)*3),
		names:   make(map[string][]string, len(catalog)),
	}
	for _, spec := range catalog {
		table.add(spec.Key, spec.Key)
		table.add(spec.Key, Sanitize(spec.EngineName))
		if resolve != nil {
			if user := resolve(spec.EngineName); user != "" {
				table.add(spec.Key, Sanitize(user))
			}
		}
	}
	return table
}

func (t *AliasTable) add(key, name string) {
	if name == "" {
		return
	}
	name = norm.NFC.String(name)
	if _, exists := t.aliases[name]; exists {
		return
	}
	t.aliases[name] = key
	t.names[key] = append(t.names[key], name)
}

// Resolve maps a name found in an engine output file to its catalog key.
func (t *AliasTable) Resolve(name string) (string, bool) {
	key, ok := t.aliases[norm.NFC.String(name)]
	return key, ok
}

// Names returns the aliases registered for key in registration order: the
// key, the sanitized engine name, then the sanitized board-specific name.
func (t *AliasTable) Names(key string) []string {
	return append([]string(nil), t.names[key]...)
}
