// Package storage persists the panel document as a whole. Every backend
// rewrites the complete document on Save; none of them store partial updates.
package storage

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/bbernstein/panelboard-go/internal/config"
	"github.com/bbernstein/panelboard-go/internal/document"
)

// ErrEmpty is returned by Load when nothing has been stored yet.
var ErrEmpty = errors.New("storage is empty")

// Persister loads and saves the whole document.
type Persister interface {
	Load(ctx context.Context) (*document.Document, error)
	Save(ctx context.Context, doc *document.Document) error
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Backend     string
	DataFile    string
	DatabaseURL string
	BadgerPath  string
	Debug       bool
}

// FromAppConfig extracts the storage settings from the server configuration.
func FromAppConfig(cfg *config.Config) Config {
	return Config{
		Backend:     cfg.StorageBackend,
		DataFile:    cfg.DataFile,
		DatabaseURL: cfg.DatabaseURL,
		BadgerPath:  cfg.BadgerPath,
		Debug:       cfg.IsDevelopment(),
	}
}

// Open creates the backend named by cfg.Backend.
func Open(cfg Config, logger *zap.Logger) (Persister, error) {
	switch cfg.Backend {
	case config.BackendFile, "":
		return NewFileStore(cfg.DataFile, logger), nil
	case config.BackendSQLite:
		store, err := OpenSQLite(cfg.DatabaseURL, cfg.Debug)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendBadger:
		store, err := OpenBadger(DefaultBadgerConfig(cfg.BadgerPath), logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// LoadOrSeed loads the stored document. When storage is empty the seed
// document is saved and returned instead.
func LoadOrSeed(ctx context.Context, p Persister, seed *document.Document) (*document.Document, bool, error) {
	doc, err := p.Load(ctx)
	if err == nil {
		doc.Normalize()
		return doc, false, nil
	}
	if !errors.Is(err, ErrEmpty) {
		return nil, false, fmt.Errorf("failed to load document: %w", err)
	}

	if err := p.Save(ctx, seed); err != nil {
		return nil, false, fmt.Errorf("failed to store seed document: %w", err)
	}
	return seed.Clone(), true, nil
}
