// Package testutil provides shared test utilities for the store and API tests.
package testutil

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/lucsky/cuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bbernstein/panelboard-go/internal/database"
	"github.com/bbernstein/panelboard-go/internal/document"
)

// ErrInjected is returned by FailingPersister when it is set to fail.
var ErrInjected = errors.New("injected storage failure")

// SetupTestDB creates a migrated in-memory SQLite database and a cleanup function.
func SetupTestDB(t *testing.T) (*gorm.DB, func()) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}

	// Every connection to :memory: is a separate database
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.Migrate(db); err != nil {
		t.Fatalf("Failed to migrate database: %v", err)
	}

	cleanup := func() {
		_ = sqlDB.Close()
	}

	return db, cleanup
}

// ScenarioDocument returns parameters A, B and C at zero with component
// types a, b and c, and no panels.
func ScenarioDocument() *document.Document {
	return document.New(map[string]int{"A": 0, "B": 0, "C": 0}, []string{"a", "b", "c"})
}

// ScenarioCells is a valid grid for ScenarioDocument.
func ScenarioCells() []string {
	return []string{"A_a", "B_b", "C_c", "off", "off", "off", "off", "off", "off"}
}

// FailingPersister stores documents in memory and fails every Save while Fail is set.
type FailingPersister struct {
	mu    sync.Mutex
	fail  bool
	doc   *document.Document
	saves int
}

// SetFail toggles save failures.
func (p *FailingPersister) SetFail(fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = fail
}

// Saved returns the last successfully saved document, or nil.
func (p *FailingPersister) Saved() *document.Document {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doc == nil {
		return nil
	}
	return p.doc.Clone()
}

// Saves returns the number of successful saves.
func (p *FailingPersister) Saves() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saves
}

func (p *FailingPersister) Load(_ context.Context) (*document.Document, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doc == nil {
		return ScenarioDocument(), nil
	}
	return p.doc.Clone(), nil
}

func (p *FailingPersister) Save(_ context.Context, doc *document.Document) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return ErrInjected
	}
	p.doc = doc.Clone()
	p.saves++
	return nil
}

func (p *FailingPersister) Close() error {
	return nil
}

// UniqueName generates a unique name for testing.
func UniqueName(prefix string) string {
	return prefix + "-" + cuid.New()[:8]
}
