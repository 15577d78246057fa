// Package export provides document export functionality.
package export

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/bbernstein/panelboard-go/internal/document"
)

// FormatVersion is the version of the export format.
const FormatVersion = "1.0"

// ExportedDocument represents a full document export.
type ExportedDocument struct {
	Version        string              `json:"version"`
	Metadata       *ExportMetadata     `json:"metadata,omitempty"`
	Parameters     []ExportedParameter `json:"parameters"`
	ComponentTypes []string            `json:"componentTypes"`
	Panels         []ExportedPanel     `json:"panels"`
}

// ExportMetadata contains export metadata.
type ExportMetadata struct {
	ExportedAt    string `json:"exportedAt"`
	ServerVersion string `json:"serverVersion"`
}

// ExportedParameter represents an exported parameter.
type ExportedParameter struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// ExportedPanel represents an exported panel. Cells are listed row by row.
type ExportedPanel struct {
	ID    string   `json:"id"`
	Cells []string `json:"cells"`
	// Number of cells bound to a parameter
	Bound int `json:"bound"`
}

// ExportStats contains statistics about an export.
type ExportStats struct {
	ParametersCount     int
	ComponentTypesCount int
	PanelsCount         int
	BoundCellsCount     int
}

// Source provides the document to export.
type Source interface {
	Snapshot(ctx context.Context) *document.Document
}

// Service handles document export operations.
type Service struct {
	source        Source
	serverVersion string
	now           func() time.Time
}

// NewService creates a new export service.
func NewService(source Source, serverVersion string) *Service {
	return &Service{
		source:        source,
		serverVersion: serverVersion,
		now:           time.Now,
	}
}

// ExportDocument exports the current document. Parameters are sorted by
// name and panels by ID.
func (s *Service) ExportDocument(ctx context.Context) (*ExportedDocument, *ExportStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	doc := s.source.Snapshot(ctx)

	exported := &ExportedDocument{
		Version: FormatVersion,
		Metadata: &ExportMetadata{
			ExportedAt:    s.now().UTC().Format(time.RFC3339),
			ServerVersion: s.serverVersion,
		},
		Parameters:     []ExportedParameter{},
		ComponentTypes: append([]string{}, doc.ComponentTypes...),
		Panels:         []ExportedPanel{},
	}
	stats := &ExportStats{}

	for _, name := range doc.ParameterNames() {
		exported.Parameters = append(exported.Parameters, ExportedParameter{
			Name:  name,
			Value: doc.Parameters[name],
		})
		stats.ParametersCount++
	}
	stats.ComponentTypesCount = len(exported.ComponentTypes)

	for _, id := range doc.PanelIDs() {
		cells := doc.Panels[id]
		bound := 0
		for _, cell := range cells {
			if cell != document.OffCell {
				bound++
			}
		}
		exported.Panels = append(exported.Panels, ExportedPanel{
			ID:    strconv.FormatInt(id, 10),
			Cells: cells,
			Bound: bound,
		})
		stats.PanelsCount++
		stats.BoundCellsCount += bound
	}

	return exported, stats, nil
}

// ToJSON converts an exported document to indented JSON.
func (e *ExportedDocument) ToJSON() (string, error) {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ParseExportedDocument parses an export back into a document.
func ParseExportedDocument(data []byte) (*document.Document, error) {
	var exported ExportedDocument
	if err := json.Unmarshal(data, &exported); err != nil {
		return nil, err
	}

	params := make(map[string]int, len(exported.Parameters))
	for _, p := range exported.Parameters {
		params[p.Name] = p.Value
	}
	doc := document.New(params, exported.ComponentTypes)
	for _, p := range exported.Panels {
		id, err := strconv.ParseInt(p.ID, 10, 64)
		if err != nil {
			return nil, err
		}
		doc.Panels[id] = p.Cells
	}
	return doc, nil
}
