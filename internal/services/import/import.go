// Package importservice loads an exported document back into storage.
package importservice

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/bbernstein/panelboard-go/internal/document"
	"github.com/bbernstein/panelboard-go/internal/services/export"
	"github.com/bbernstein/panelboard-go/internal/storage"
)

// ImportMode determines how to handle the import.
type ImportMode string

const (
	// ImportModeReplace discards the stored document.
	ImportModeReplace ImportMode = "REPLACE"
	// ImportModeMerge adds the imported parameters, component types and
	// panels to the stored document.
	ImportModeMerge ImportMode = "MERGE"
)

// PanelConflictStrategy determines how a merge handles a panel ID that is
// already stored.
type PanelConflictStrategy string

const (
	PanelConflictSkip    PanelConflictStrategy = "SKIP"
	PanelConflictReplace PanelConflictStrategy = "REPLACE"
)

// ImportStats contains statistics about an import.
type ImportStats struct {
	ParametersImported int
	PanelsImported     int
	PanelsSkipped      int
}

// ImportOptions configures the import behavior.
type ImportOptions struct {
	Mode                  ImportMode
	PanelConflictStrategy PanelConflictStrategy
}

// Service handles document import operations.
type Service struct {
	persister storage.Persister
	logger    *zap.Logger
}

// NewService creates a new import service.
func NewService(persister storage.Persister, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{persister: persister, logger: logger}
}

// ImportDocument parses an export and saves the resulting document. Panels
// that do not validate against the resulting parameters and component types
// are skipped with a warning. Parameter values outside the allowed range
// fail the whole import.
func (s *Service) ImportDocument(ctx context.Context, data []byte, options ImportOptions) (*ImportStats, []string, error) {
	imported, err := export.ParseExportedDocument(data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse export: %w", err)
	}

	for _, name := range imported.ParameterNames() {
		if err := document.ValidateParameterName(name); err != nil {
			return nil, nil, err
		}
		if err := document.ValidateParameterValue(imported.Parameters[name]); err != nil {
			return nil, nil, fmt.Errorf("parameter %s: %w", name, err)
		}
	}

	target := document.New(nil, nil)
	if options.Mode == ImportModeMerge {
		existing, err := s.persister.Load(ctx)
		switch {
		case err == nil:
			target = existing
			target.Normalize()
		case errors.Is(err, storage.ErrEmpty):
		default:
			return nil, nil, fmt.Errorf("failed to load document: %w", err)
		}
	}

	stats := &ImportStats{}
	var warnings []string

	for _, name := range imported.ParameterNames() {
		target.Parameters[name] = imported.Parameters[name]
		stats.ParametersImported++
	}
	target.ComponentTypes = append(target.ComponentTypes, imported.ComponentTypes...)
	target.Normalize()

	for _, id := range imported.PanelIDs() {
		cells := imported.Panels[id]
		if id <= 0 {
			warnings = append(warnings, fmt.Sprintf("panel %d skipped: invalid id", id))
			stats.PanelsSkipped++
			continue
		}
		if err := target.ValidateGrid(cells); err != nil {
			var vErr *document.ValidationError
			if errors.As(err, &vErr) {
				warnings = append(warnings, fmt.Sprintf("panel %d skipped: %s", id, vErr.Detail()))
			} else {
				warnings = append(warnings, fmt.Sprintf("panel %d skipped: %v", id, err))
			}
			stats.PanelsSkipped++
			continue
		}
		if _, exists := target.Panels[id]; exists && options.PanelConflictStrategy != PanelConflictReplace {
			warnings = append(warnings, fmt.Sprintf("panel %d skipped: already exists", id))
			stats.PanelsSkipped++
			continue
		}
		target.Panels[id] = cells
		stats.PanelsImported++
	}

	if err := s.persister.Save(ctx, target); err != nil {
		return nil, nil, fmt.Errorf("failed to save document: %w", err)
	}

	s.logger.Info("document imported",
		zap.String("mode", string(options.Mode)),
		zap.Int("parameters", stats.ParametersImported),
		zap.Int("panels", stats.PanelsImported),
		zap.Int("skipped", stats.PanelsSkipped))

	return stats, warnings, nil
}
