// Package document defines the panel document: parameters, component types
// and the panels whose cells reference them.
package document

import (
	"maps"
	"slices"
	"sort"
)

const (
	// GridSize is the number of cells in a panel (a 3x3 grid).
	GridSize = 9

	// CellLength is the number of characters in an encoded cell.
	CellLength = 3

	// OffCell is the encoding of a cell that is switched off.
	OffCell = "off"

	// Binding separates the parameter from the component type in a cell.
	Binding = '_'

	MinParameterValue = -100
	MaxParameterValue = 100
)

// Document is the aggregate persisted by the storage backends.
// Panel keys are creation timestamps (seconds since epoch).
type Document struct {
	Parameters     map[string]int     `json:"parameters"`
	ComponentTypes []string           `json:"component_types"`
	Panels         map[int64][]string `json:"panels"`
}

// New creates a document with the given parameters and component types and no panels.
func New(parameters map[string]int, componentTypes []string) *Document {
	doc := &Document{
		Parameters:     maps.Clone(parameters),
		ComponentTypes: slices.Clone(componentTypes),
		Panels:         make(map[int64][]string),
	}
	doc.Normalize()
	return doc
}

// Normalize fills nil collections and removes duplicate component types,
// keeping the first occurrence of each.
func (d *Document) Normalize() {
	if d.Parameters == nil {
		d.Parameters = make(map[string]int)
	}
	if d.Panels == nil {
		d.Panels = make(map[int64][]string)
	}
	seen := make(map[string]struct{}, len(d.ComponentTypes))
	types := make([]string, 0, len(d.ComponentTypes))
	for _, ct := range d.ComponentTypes {
		if _, dup := seen[ct]; dup {
			continue
		}
		seen[ct] = struct{}{}
		types = append(types, ct)
	}
	d.ComponentTypes = types
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	panels := make(map[int64][]string, len(d.Panels))
	for id, cells := range d.Panels {
		panels[id] = slices.Clone(cells)
	}
	params := maps.Clone(d.Parameters)
	if params == nil {
		params = make(map[string]int)
	}
	return &Document{
		Parameters:     params,
		ComponentTypes: slices.Clone(d.ComponentTypes),
		Panels:         panels,
	}
}

// HasParameter reports whether name is a known parameter key.
func (d *Document) HasParameter(name string) bool {
	_, ok := d.Parameters[name]
	return ok
}

// HasComponentType reports whether token is an allowed component type.
func (d *Document) HasComponentType(token string) bool {
	return slices.Contains(d.ComponentTypes, token)
}

// PanelIDs returns the panel IDs in ascending order.
func (d *Document) PanelIDs() []int64 {
	ids := make([]int64, 0, len(d.Panels))
	for id := range d.Panels {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// ParameterNames returns the parameter keys in lexical order.
func (d *Document) ParameterNames() []string {
	names := make([]string, 0, len(d.Parameters))
	for name := range d.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
