package storage

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/bbernstein/panelboard-go/internal/database"
	"github.com/bbernstein/panelboard-go/internal/database/repositories"
	"github.com/bbernstein/panelboard-go/internal/document"
)

// SQLiteStore keeps the document in SQLite tables, rewritten in one transaction per save.
type SQLiteStore struct {
	db   *gorm.DB
	repo *repositories.DocumentRepository
}

// OpenSQLite connects to the database at url and migrates the document tables.
func OpenSQLite(url string, debug bool) (*SQLiteStore, error) {
	db, err := database.Connect(database.Config{
		URL:         url,
		MaxIdleConn: 1,
		MaxOpenConn: 1,
		Debug:       debug,
	})
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		_ = database.Close(db)
		return nil, err
	}
	return NewSQLiteStore(db), nil
}

// NewSQLiteStore wraps an already migrated connection.
func NewSQLiteStore(db *gorm.DB) *SQLiteStore {
	return &SQLiteStore{db: db, repo: repositories.NewDocumentRepository(db)}
}

func (s *SQLiteStore) Load(ctx context.Context) (*document.Document, error) {
	doc, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrEmpty
	}
	return doc, nil
}

func (s *SQLiteStore) Save(ctx context.Context, doc *document.Document) error {
	if err := s.repo.Save(ctx, doc); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return database.Close(s.db)
}
