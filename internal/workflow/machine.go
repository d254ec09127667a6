package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/manash/roommood/internal/logger"
	"github.com/manash/roommood/internal/pipeline"
	"github.com/manash/roommood/internal/store"
	"github.com/manash/roommood/pkg/models"
)

var (
	// ErrStale is returned when a result arrives after the session moved on.
	ErrStale        = errors.New("result discarded: session changed while it was running")
	ErrUnknownSaved = errors.New("no saved mood with that id")
)

// Generator is the part of the generation pipeline the machine drives.
type Generator interface {
	StartMoodGeneration(ctx context.Context, photo models.Image, controls models.GenerationControls, reference *models.Image) (*pipeline.MoodResult, error)
	SuggestRefinements(ctx context.Context, mood models.Mood) []string
	ApplyFinalComposite(ctx context.Context, baseImage, refinement string, objects []models.Image) (string, error)
}

// Store persists completed sessions.
type Store interface {
	Save(ctx context.Context, rec models.SavedMood) (models.SavedMood, error)
	Get(id string) (models.SavedMood, bool)
	List() []models.SavedMood
}

// Machine owns the live session. Every change goes through Transition under
// one lock; remote work runs without it and its result is applied only if the
// session epoch is unchanged.
type Machine struct {
	mu        sync.Mutex
	session   Session
	generator Generator
	store     Store
	log       *logger.Logger
}

func NewMachine(gen Generator, st Store, log *logger.Logger) *Machine {
	if log == nil {
		log = logger.Nop()
	}
	return &Machine{
		session:   NewSession(),
		generator: gen,
		store:     st,
		log:       log,
	}
}

// Snapshot returns a copy of the current session.
func (m *Machine) Snapshot() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.Clone()
}

func (m *Machine) apply(e Event) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyLocked(e)
}

func (m *Machine) applyLocked(e Event) (Session, error) {
	next, err := Transition(m.session, e)
	m.session = next
	if err != nil {
		m.log.Debug("transition rejected", "event", e.eventName(), "stage", m.session.Stage, "error", err)
	}
	return next.Clone(), err
}

// finish applies the event built from a remote result, unless navigation
// has bumped the epoch since the work started.
func (m *Machine) finish(epoch uint64, want Stage, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session.Epoch != epoch || m.session.Stage != want {
		m.log.Info("discarding stale result", "event", e.eventName(), "stage", m.session.Stage)
		return ErrStale
	}
	_, err := m.applyLocked(e)
	return err
}

func (m *Machine) Upload(photo models.Image) error {
	_, err := m.apply(UploadPhoto{Photo: photo})
	return err
}

// SetReference sets the reference mood image; nil clears it.
func (m *Machine) SetReference(img *models.Image) error {
	if img == nil {
		_, err := m.apply(ClearReferenceMood{})
		return err
	}
	_, err := m.apply(SetReferenceMood{Image: *img})
	return err
}

func (m *Machine) SetControls(c models.GenerationControls) error {
	_, err := m.apply(SetControls{Controls: c})
	return err
}

// GenerateMoods runs the mood pipeline for the uploaded photo. On failure the
// session returns to the upload stage with a message and the cause is
// returned for logging.
func (m *Machine) GenerateMoods(ctx context.Context) error {
	snap, err := m.apply(BeginMoodGeneration{})
	if err != nil {
		return err
	}

	res, genErr := m.generator.StartMoodGeneration(ctx, snap.Photo, snap.Controls, snap.Reference)
	if genErr != nil {
		m.log.Warn("mood generation failed", "error", genErr)
		if err := m.finish(snap.Epoch, StageGeneratingMoods, MoodGenerationFailed{}); err != nil {
			return err
		}
		return genErr
	}
	return m.finish(snap.Epoch, StageGeneratingMoods, MoodsGenerated{Moods: res.Moods, EmptyRoomImage: res.EmptyRoomImage})
}

// SelectMood picks proposal i (zero based) and loads refinement suggestions.
func (m *Machine) SelectMood(ctx context.Context, i int) error {
	snap, err := m.apply(SelectMood{Index: i})
	if err != nil {
		return err
	}
	suggestions := m.generator.SuggestRefinements(ctx, snap.Selection.Mood)
	return m.finish(snap.Epoch, StageRefiningMood, SuggestionsLoaded{Suggestions: suggestions})
}

func (m *Machine) SelectFurnitureMode() error {
	_, err := m.apply(SelectFurnitureMode{})
	return err
}

func (m *Machine) SetRefinement(text string) error {
	_, err := m.apply(SetRefinementPrompt{Text: text})
	return err
}

// UseSuggestion copies suggestion i (zero based) into the refinement prompt.
func (m *Machine) UseSuggestion(i int) error {
	_, err := m.apply(UseSuggestion{Index: i})
	return err
}

func (m *Machine) AddObjects(objects ...models.Image) error {
	_, err := m.apply(AddObjects{Objects: objects})
	return err
}

func (m *Machine) RemoveObject(i int) error {
	_, err := m.apply(RemoveObject{Index: i})
	return err
}

// MakeItHappen composites the refinement and objects onto the selected mood.
func (m *Machine) MakeItHappen(ctx context.Context) error {
	snap, err := m.apply(BeginFinalImage{})
	if err != nil {
		return err
	}

	final, genErr := m.generator.ApplyFinalComposite(ctx, snap.Selection.Mood.ImageURL, snap.RefinementPrompt, snap.Objects)
	if genErr != nil {
		m.log.Warn("final image failed", "error", genErr)
		if err := m.finish(snap.Epoch, StageGeneratingFinalImage, FinalImageFailed{}); err != nil {
			return err
		}
		return genErr
	}
	return m.finish(snap.Epoch, StageGeneratingFinalImage, FinalImageGenerated{Image: final})
}

func (m *Machine) Back(target Stage) error {
	_, err := m.apply(NavigateBack{Target: target})
	return err
}

func (m *Machine) Restart() error {
	_, err := m.apply(Restart{})
	return err
}

func (m *Machine) SetTitle(title string) error {
	_, err := m.apply(SetTitle{Title: title})
	return err
}

// Save persists the finished session. A blank title, an unfinished session or
// a failed write leave the session exactly as it was.
func (m *Machine) Save(ctx context.Context) (models.SavedMood, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.session
	if strings.TrimSpace(s.Title) == "" {
		return models.SavedMood{}, store.ErrBlankTitle
	}
	if s.Stage != StageFinalResult {
		return models.SavedMood{}, fmt.Errorf("%w: currently at %s", store.ErrIncomplete, s.Stage)
	}
	if s.Saved {
		return models.SavedMood{}, ErrAlreadySaved
	}

	rec, err := m.store.Save(ctx, models.SavedMood{
		Title:         s.Title,
		OriginalImage: s.Photo,
		FinalImage:    s.FinalImage,
		MoodName:      s.Selection.Mood.Name,
		Refinements:   s.History,
		AddedObjects:  s.Objects,
	})
	if err != nil {
		return models.SavedMood{}, err
	}

	if _, err := m.applyLocked(MarkSaved{}); err != nil {
		return models.SavedMood{}, err
	}
	m.log.Info("mood saved", "id", rec.ID, "title", rec.Title)
	return rec, nil
}

// Load replaces the session with a saved mood. Unknown ids change nothing.
func (m *Machine) Load(id string) error {
	rec, ok := m.store.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSaved, id)
	}
	_, err := m.apply(LoadSaved{Mood: rec})
	return err
}

func (m *Machine) SavedMoods() []models.SavedMood {
	return m.store.List()
}
