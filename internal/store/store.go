package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/manash/roommood/internal/logger"
	"github.com/manash/roommood/pkg/models"
)

// SavedMoodsKey is the single key the whole saved-mood list lives under.
const SavedMoodsKey = "savedMoods"

var (
	ErrNotFound   = errors.New("key not found")
	ErrBlankTitle = errors.New("project title is blank")
	ErrIncomplete = errors.New("nothing complete to save")
)

// Backend is a durable key/value document store.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Close() error
}

// MoodStore keeps the saved-mood list in memory, newest first, and writes it
// back to the backend wholesale on every change.
type MoodStore struct {
	mu      sync.RWMutex
	backend Backend
	log     *logger.Logger
	moods   []models.SavedMood
	now     func() time.Time
}

// Open loads the saved list. Missing, unreadable or corrupt data is logged and
// treated as an empty store.
func Open(ctx context.Context, backend Backend, log *logger.Logger) *MoodStore {
	if log == nil {
		log = logger.Nop()
	}
	s := &MoodStore{backend: backend, log: log, now: time.Now}

	data, err := backend.Get(ctx, SavedMoodsKey)
	switch {
	case errors.Is(err, ErrNotFound):
		return s
	case err != nil:
		log.Warn("saved moods unreadable, starting empty", "error", err)
		return s
	}

	var moods []models.SavedMood
	if err := json.Unmarshal(data, &moods); err != nil {
		log.Warn("saved moods corrupt, starting empty", "error", err)
		return s
	}
	s.moods = moods
	return s
}

// Save validates rec, gives it a fresh id and prepends it. The in-memory list
// changes only once the backend write succeeds.
func (s *MoodStore) Save(ctx context.Context, rec models.SavedMood) (models.SavedMood, error) {
	if strings.TrimSpace(rec.Title) == "" {
		return models.SavedMood{}, ErrBlankTitle
	}
	if rec.OriginalImage.IsZero() || rec.FinalImage == "" || rec.MoodName == "" {
		return models.SavedMood{}, ErrIncomplete
	}

	rec = rec.Clone()
	if rec.Refinements == nil {
		rec.Refinements = []string{}
	}
	if rec.AddedObjects == nil {
		rec.AddedObjects = []models.Image{}
	}
	rec.ID = uuid.New().String()
	rec.CreatedAt = s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]models.SavedMood, 0, len(s.moods)+1)
	next = append(next, rec)
	next = append(next, s.moods...)

	data, err := json.Marshal(next)
	if err != nil {
		return models.SavedMood{}, fmt.Errorf("failed to encode saved moods: %w", err)
	}
	if err := s.backend.Put(ctx, SavedMoodsKey, data); err != nil {
		return models.SavedMood{}, fmt.Errorf("failed to write saved moods: %w", err)
	}

	s.moods = next
	s.log.Debug("mood saved", "id", rec.ID, "title", rec.Title, "count", len(next))
	return rec.Clone(), nil
}

func (s *MoodStore) Get(id string) (models.SavedMood, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.moods {
		if m.ID == id {
			return m.Clone(), true
		}
	}
	return models.SavedMood{}, false
}

// List returns copies of every saved mood, newest first.
func (s *MoodStore) List() []models.SavedMood {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.SavedMood, len(s.moods))
	for i, m := range s.moods {
		out[i] = m.Clone()
	}
	return out
}

func (s *MoodStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.moods)
}

func (s *MoodStore) Close() error {
	return s.backend.Close()
}
