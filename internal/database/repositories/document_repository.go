// Package repositories provides data access for the sqlite storage backend.
package repositories

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/bbernstein/panelboard-go/internal/database/models"
	"github.com/bbernstein/panelboard-go/internal/document"
)

// saveBatchSize bounds the rows per INSERT so a save stays under SQLite's
// bound-variable limit however many panels the document holds.
const saveBatchSize = 500

// DocumentRepository reads and writes the whole panel document.
type DocumentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// FindParameters returns all parameters ordered by name.
func (r *DocumentRepository) FindParameters(ctx context.Context) ([]models.Parameter, error) {
	var params []models.Parameter
	result := r.db.WithContext(ctx).
		Order("name ASC").
		Find(&params)
	return params, result.Error
}

// FindComponentTypes returns the component types in their configured order.
func (r *DocumentRepository) FindComponentTypes(ctx context.Context) ([]models.ComponentType, error) {
	var types []models.ComponentType
	result := r.db.WithContext(ctx).
		Order("position ASC").
		Find(&types)
	return types, result.Error
}

// FindPanels returns all panels with their cells in grid order.
func (r *DocumentRepository) FindPanels(ctx context.Context) ([]models.Panel, error) {
	var panels []models.Panel
	result := r.db.WithContext(ctx).
		Preload("Cells", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Order("id ASC").
		Find(&panels)
	return panels, result.Error
}

// Load assembles the stored document. It returns nil, nil when all tables are empty.
func (r *DocumentRepository) Load(ctx context.Context) (*document.Document, error) {
	params, err := r.FindParameters(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load parameters: %w", err)
	}

	types, err := r.FindComponentTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load component types: %w", err)
	}

	panels, err := r.FindPanels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load panels: %w", err)
	}

	if len(params) == 0 && len(types) == 0 && len(panels) == 0 {
		return nil, nil
	}

	doc := &document.Document{
		Parameters:     make(map[string]int, len(params)),
		ComponentTypes: make([]string, 0, len(types)),
		Panels:         make(map[int64][]string, len(panels)),
	}
	for _, p := range params {
		doc.Parameters[p.Name] = p.Value
	}
	for _, ct := range types {
		doc.ComponentTypes = append(doc.ComponentTypes, ct.Name)
	}
	for _, panel := range panels {
		cells := make([]string, len(panel.Cells))
		for i, cell := range panel.Cells {
			cells[i] = cell.Value
		}
		doc.Panels[panel.ID] = cells
	}

	return doc, nil
}

// Save replaces the stored document with doc.
// Uses a transaction so readers never observe a partially written document.
func (r *DocumentRepository) Save(ctx context.Context, doc *document.Document) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Delete children before their panels
		for _, model := range []interface{}{
			&models.PanelCell{},
			&models.Panel{},
			&models.ComponentType{},
			&models.Parameter{},
		} {
			if err := tx.Where("1 = 1").Delete(model).Error; err != nil {
				return err
			}
		}

		params := make([]models.Parameter, 0, len(doc.Parameters))
		for _, name := range doc.ParameterNames() {
			params = append(params, models.Parameter{Name: name, Value: doc.Parameters[name]})
		}
		if len(params) > 0 {
			if err := tx.CreateInBatches(&params, saveBatchSize).Error; err != nil {
				return err
			}
		}

		types := make([]models.ComponentType, 0, len(doc.ComponentTypes))
		for i, name := range doc.ComponentTypes {
			types = append(types, models.ComponentType{Name: name, Position: i})
		}
		if len(types) > 0 {
			if err := tx.CreateInBatches(&types, saveBatchSize).Error; err != nil {
				return err
			}
		}

		ids := doc.PanelIDs()
		if len(ids) == 0 {
			return nil
		}

		panels := make([]models.Panel, 0, len(ids))
		cells := make([]models.PanelCell, 0, len(ids)*document.GridSize)
		for _, id := range ids {
			panels = append(panels, models.Panel{ID: id})
			for pos, value := range doc.Panels[id] {
				cells = append(cells, models.PanelCell{PanelID: id, Position: pos, Value: value})
			}
		}
		if err := tx.CreateInBatches(&panels, saveBatchSize).Error; err != nil {
			return err
		}
		if len(cells) > 0 {
			if err := tx.CreateInBatches(&cells, saveBatchSize).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
