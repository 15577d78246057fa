package storage

import (
	"context"
	"sync"

	"github.com/bbernstein/panelboard-go/internal/document"
)

// MemoryStore keeps the last saved document in process memory only.
type MemoryStore struct {
	mu    sync.Mutex
	doc   *document.Document
	saves int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(_ context.Context) (*document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return nil, ErrEmpty
	}
	return s.doc.Clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, doc *document.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = doc.Clone()
	s.saves++
	return nil
}

// Saves returns how many times Save has been called.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func (s *MemoryStore) Close() error {
	return nil
}
