// Package panel implements the document store: parameters, component types
// and panels held in memory and persisted after every successful mutation.
package panel

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bbernstein/panelboard-go/internal/document"
	"github.com/bbernstein/panelboard-go/internal/observability"
	"github.com/bbernstein/panelboard-go/internal/services/pubsub"
	"github.com/bbernstein/panelboard-go/internal/storage"
)

var (
	ErrParameterNotFound = errors.New("parameter does not exist")
	ErrPanelNotFound     = errors.New("panel does not exist")
	ErrInvalidPanelID    = errors.New("panel id must be a positive integer")
	ErrPersist           = errors.New("failed to persist document")
)

// Operation names used for logging and metrics.
const (
	OpUpdateParameter = "update_parameter"
	OpCreatePanel     = "create_panel"
	OpUpdatePanel     = "update_panel"
	OpDeletePanel     = "delete_panel"
)

// Service owns the document. Reads share a lock; each mutation holds the
// write lock through validate, persist and swap.
type Service struct {
	mu        sync.RWMutex
	doc       *document.Document
	persister storage.Persister

	pubsub  *pubsub.PubSub
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithPubSub publishes a change event for every applied mutation.
func WithPubSub(ps *pubsub.PubSub) Option {
	return func(s *Service) { s.pubsub = ps }
}

// WithMetrics records mutation outcomes and the panel count.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the time source used for panel IDs.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service over an already loaded document.
func NewService(doc *document.Document, persister storage.Persister, opts ...Option) *Service {
	s := &Service{
		doc:       doc.Clone(),
		persister: persister,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.doc.Normalize()
	s.metrics.SetPanelCount(len(s.doc.Panels))
	return s
}

// Open loads the document from persister, storing seed first when the
// persister is empty, and creates a Service over it.
func Open(ctx context.Context, persister storage.Persister, seed *document.Document, opts ...Option) (*Service, error) {
	doc, seeded, err := storage.LoadOrSeed(ctx, persister, seed)
	if err != nil {
		return nil, err
	}
	s := NewService(doc, persister, opts...)
	s.logger.Info("document ready",
		zap.Bool("seeded", seeded),
		zap.Int("parameters", len(doc.Parameters)),
		zap.Strings("component_types", doc.ComponentTypes),
		zap.Int("panels", len(doc.Panels)))
	return s, nil
}

// GetParameters returns a copy of all parameters.
func (s *Service) GetParameters(_ context.Context) map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.doc.Parameters)
}

// ComponentTypes returns the allowed component types.
func (s *Service) ComponentTypes(_ context.Context) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.doc.ComponentTypes)
}

// UpdateParameter sets an existing parameter. The value range is checked
// before the name is looked up.
func (s *Service) UpdateParameter(ctx context.Context, name string, value int) (err error) {
	defer func() { s.observe(OpUpdateParameter, err) }()

	if err := document.ValidateParameterValue(value); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.doc.HasParameter(name) {
		return ErrParameterNotFound
	}

	if err := s.commit(ctx, OpUpdateParameter, func(next *document.Document) {
		next.Parameters[name] = value
	}); err != nil {
		return err
	}

	s.logger.Info("parameter updated", zap.String("parameter", name), zap.Int("value", value))
	s.publish(pubsub.TopicParameterUpdated, name, value)
	return nil
}

// GetPanels returns a copy of all panels keyed by ID.
func (s *Service) GetPanels(_ context.Context) map[int64][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Clone().Panels
}

// GetPanel returns the cells of one panel.
func (s *Service) GetPanel(_ context.Context, id int64) ([]string, error) {
	if id <= 0 {
		return nil, ErrInvalidPanelID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	cells, ok := s.doc.Panels[id]
	if !ok {
		return nil, ErrPanelNotFound
	}
	return slices.Clone(cells), nil
}

// CreatePanel validates cells and stores them under a new ID. The ID is the
// current Unix time in seconds, moved forward past any ID already in use.
func (s *Service) CreatePanel(ctx context.Context, cells []string) (id int64, stored []string, err error) {
	defer func() { s.observe(OpCreatePanel, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.doc.ValidateGrid(cells); err != nil {
		return 0, nil, err
	}

	id = s.nextPanelID()
	stored = slices.Clone(cells)
	if err := s.commit(ctx, OpCreatePanel, func(next *document.Document) {
		next.Panels[id] = slices.Clone(stored)
	}); err != nil {
		return 0, nil, err
	}

	s.logger.Info("panel created", zap.Int64("panel_id", id))
	s.publish(pubsub.TopicPanelCreated, strconv.FormatInt(id, 10), slices.Clone(stored))
	return id, stored, nil
}

// UpdatePanel replaces the cells of an existing panel.
func (s *Service) UpdatePanel(ctx context.Context, id int64, cells []string) (stored []string, err error) {
	defer func() { s.observe(OpUpdatePanel, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.doc.Panels[id]; !ok {
		return nil, ErrPanelNotFound
	}
	if err := s.doc.ValidateGrid(cells); err != nil {
		return nil, err
	}

	stored = slices.Clone(cells)
	if err := s.commit(ctx, OpUpdatePanel, func(next *document.Document) {
		next.Panels[id] = slices.Clone(stored)
	}); err != nil {
		return nil, err
	}

	s.logger.Info("panel updated", zap.Int64("panel_id", id))
	s.publish(pubsub.TopicPanelUpdated, strconv.FormatInt(id, 10), slices.Clone(stored))
	return stored, nil
}

// DeletePanel removes a panel.
func (s *Service) DeletePanel(ctx context.Context, id int64) (err error) {
	defer func() { s.observe(OpDeletePanel, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.doc.Panels[id]; !ok {
		return ErrPanelNotFound
	}

	if err := s.commit(ctx, OpDeletePanel, func(next *document.Document) {
		delete(next.Panels, id)
	}); err != nil {
		return err
	}

	s.logger.Info("panel deleted", zap.Int64("panel_id", id))
	s.publish(pubsub.TopicPanelDeleted, strconv.FormatInt(id, 10), nil)
	return nil
}

// Snapshot returns a deep copy of the whole document.
func (s *Service) Snapshot(_ context.Context) *document.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Clone()
}

// commit applies change to a copy of the document, persists the copy and
// only then makes it current. Callers must hold the write lock.
func (s *Service) commit(ctx context.Context, op string, change func(next *document.Document)) error {
	next := s.doc.Clone()
	change(next)

	if err := s.persister.Save(ctx, next); err != nil {
		s.logger.Error("failed to persist document", zap.String("operation", op), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}

	s.doc = next
	s.metrics.SetPanelCount(len(next.Panels))
	return nil
}

// nextPanelID returns the first unused ID at or after the current Unix time.
// Callers must hold the write lock.
func (s *Service) nextPanelID() int64 {
	id := s.now().Unix()
	if id < 1 {
		id = 1
	}
	for {
		if _, taken := s.doc.Panels[id]; !taken {
			return id
		}
		id++
	}
}

func (s *Service) publish(topic pubsub.Topic, key string, value any) {
	if s.pubsub == nil {
		return
	}
	s.pubsub.Publish(pubsub.NewEvent(topic, key, value))
}

func (s *Service) observe(op string, err error) {
	s.metrics.ObserveMutation(op, Result(err))
}

// Result classifies an operation error for metrics.
func Result(err error) string {
	var vErr *document.ValidationError
	switch {
	case err == nil:
		return observability.ResultSuccess
	case errors.As(err, &vErr), errors.Is(err, ErrInvalidPanelID):
		return observability.ResultInvalid
	case errors.Is(err, ErrParameterNotFound), errors.Is(err, ErrPanelNotFound):
		return observability.ResultNotFound
	default:
		return observability.ResultError
	}
}
