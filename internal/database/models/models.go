// Package models contains the database model definitions used by the sqlite
// storage backend. Each table holds one section of the panel document.
package models

import (
	"time"
)

// Parameter is a named integer setting.
// Table: parameters
type Parameter struct {
	Name      string    `gorm:"column:name;primaryKey"`
	Value     int       `gorm:"column:value"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Parameter) TableName() string { return "parameters" }

// ComponentType is an allowed cell suffix. Position keeps the configured order.
// Table: component_types
type ComponentType struct {
	Name     string `gorm:"column:name;primaryKey"`
	Position int    `gorm:"column:position"`
}

func (ComponentType) TableName() string { return "component_types" }

// Panel is a 3x3 grid keyed by its creation timestamp.
// Table: panels
type Panel struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement:false"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`

	// Relations
	Cells []PanelCell `gorm:"foreignKey:PanelID"`
}

func (Panel) TableName() string { return "panels" }

// PanelCell is one encoded cell of a panel. Position runs row by row from 0 to 8.
// Table: panel_cells
type PanelCell struct {
	PanelID  int64  `gorm:"column:panel_id;primaryKey;autoIncrement:false"`
	Position int    `gorm:"column:position;primaryKey;autoIncrement:false"`
	Value    string `gorm:"column:value"`
}

func (PanelCell) TableName() string { return "panel_cells" }

