package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-journal-service/internal/models"
	"github.com/kjstillabower/weather-journal-service/internal/observability"
)

// DateLayout is the long-form en-US date written into entries that arrive without one,
// e.g. "Monday, October 19, 2026".
const DateLayout = "Monday, January 2, 2006"

var (
	// ErrNotFound is returned by a Backend when no document has been written yet.
	ErrNotFound = errors.New("store: document not found")
	// ErrWrite wraps every failure to persist the collection.
	ErrWrite = errors.New("store: write failed")
)

// Backend persists the raw collection document.
// Read returns ErrNotFound when nothing has been stored yet.
type Backend interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Ping() error
	Name() string
}

// Store owns the weather entry collection. Every call re-reads the backend and
// mutations write the whole collection back; mu makes each load-modify-save a
// single critical section.
type Store struct {
	mu       sync.Mutex
	backend  Backend
	logger   *zap.Logger
	location *time.Location
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLocation sets the time zone used to compute the date for undated entries.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithClock overrides the time source. Tests use it to pin "today".
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns a Store backed by b. A nil logger disables logging.
func New(b Backend, logger *zap.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		backend:  b,
		logger:   logger.With(zap.String("backend", b.Name())),
		location: time.Local,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadAll returns the persisted collection. Read and parse failures are logged
// and yield an empty collection; LoadAll never writes.
func (s *Store) LoadAll(ctx context.Context) models.Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

// SaveAll overwrites the persisted collection.
func (s *Store) SaveAll(ctx context.Context, c models.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx, "save", c)
}

// Append stores entry at the front of the collection and returns it as stored.
// A missing date is filled with today's date; the caller's map is not modified.
func (s *Store) Append(ctx context.Context, entry models.Entry) (models.Entry, error) {
	stored := entry.Clone()
	if !stored.HasDate() {
		stored[models.DateField] = s.today()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.loadLocked(ctx)
	if err := s.saveLocked(ctx, "append", c.Prepend(stored)); err != nil {
		return nil, err
	}
	return stored, nil
}

// Clear replaces the collection with an empty one.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx, "clear", models.Collection{})
}

// Ping reports whether the backend is reachable.
func (s *Store) Ping() error {
	return s.backend.Ping()
}

func (s *Store) today() string {
	return s.now().In(s.location).Format(DateLayout)
}

func (s *Store) loadLocked(ctx context.Context) models.Collection {
	start := time.Now()
	data, err := s.backend.Read(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.Debug("no stored entries yet")
			observe("load", "empty", start)
		} else {
			s.logger.Error("read weather entries", zap.Error(err))
			observe("load", "error", start)
		}
		return models.Collection{}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var c models.Collection
	if err := dec.Decode(&c); err != nil {
		s.logger.Error("parse weather entries", zap.Error(err))
		observe("load", "error", start)
		return models.Collection{}
	}
	if c == nil {
		c = models.Collection{}
	}
	observe("load", "success", start)
	observability.StoredEntries.Set(float64(len(c)))
	return c
}

func (s *Store) saveLocked(ctx context.Context, op string, c models.Collection) error {
	start := time.Now()
	if c == nil {
		c = models.Collection{}
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		s.logger.Error("encode weather entries", zap.String("operation", op), zap.Error(err))
		observe(op, "error", start)
		return fmt.Errorf("%w: encode: %w", ErrWrite, err)
	}
	if err := s.backend.Write(ctx, data); err != nil {
		s.logger.Error("write weather entries", zap.String("operation", op), zap.Error(err))
		observe(op, "error", start)
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	observe(op, "success", start)
	observability.StoredEntries.Set(float64(len(c)))
	return nil
}

func observe(op, status string, start time.Time) {
	observability.StoreOperationsTotal.WithLabelValues(op, status).Inc()
	observability.StoreOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
