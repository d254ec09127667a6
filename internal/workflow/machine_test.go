package workflow

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/manash/roommood/internal/logger"
	"github.com/manash/roommood/internal/pipeline"
	"github.com/manash/roommood/internal/provider"
	"github.com/manash/roommood/internal/store"
	"github.com/manash/roommood/pkg/models"
)

type fakeGenerator struct {
	mu sync.Mutex

	moods      func(ctx context.Context) (*pipeline.MoodResult, error)
	suggest    func(ctx context.Context, mood models.Mood) []string
	composite  func(ctx context.Context, base, refinement string, objects []models.Image) (string, error)
	lastBase   string
	lastPrompt string
	moodCalls  int
}

func newFakeGenerator() *fakeGenerator {
	return &fakeGenerator{
		moods: func(context.Context) (*pipeline.MoodResult, error) {
			return &pipeline.MoodResult{Moods: testMoods, EmptyRoomImage: "data:image/png;base64,EMPTY"}, nil
		},
		suggest: func(context.Context, models.Mood) []string {
			return []string{"Add a rug", "Warm lights"}
		},
		composite: func(context.Context, string, string, []models.Image) (string, error) {
			return "data:image/png;base64,FINAL", nil
		},
	}
}

func (f *fakeGenerator) StartMoodGeneration(ctx context.Context, _ models.Image, _ models.GenerationControls, _ *models.Image) (*pipeline.MoodResult, error) {
	f.mu.Lock()
	f.moodCalls++
	f.mu.Unlock()
	return f.moods(ctx)
}

func (f *fakeGenerator) SuggestRefinements(ctx context.Context, mood models.Mood) []string {
	return f.suggest(ctx, mood)
}

func (f *fakeGenerator) ApplyFinalComposite(ctx context.Context, base, refinement string, objects []models.Image) (string, error) {
	f.mu.Lock()
	f.lastBase, f.lastPrompt = base, refinement
	f.mu.Unlock()
	return f.composite(ctx, base, refinement, objects)
}

func newTestMachine(t *testing.T, gen *fakeGenerator) (*Machine, *store.MoodStore) {
	t.Helper()
	backend, err := store.NewSQLiteBackendWithPath(filepath.Join(t.TempDir(), "moods.db"))
	require.NoError(t, err)
	st := store.Open(context.Background(), backend, nil)
	t.Cleanup(func() { _ = st.Close() })
	return NewMachine(gen, st, nil), st
}

// finished drives a machine to the final result with a refinement and one
// object.
func finished(t *testing.T, m *Machine) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, m.Upload(testPhoto))
	require.NoError(t, m.GenerateMoods(ctx))
	require.NoError(t, m.SelectMood(ctx, 0))
	require.NoError(t, m.UseSuggestion(0))
	require.NoError(t, m.AddObjects(testLamp))
	require.NoError(t, m.MakeItHappen(ctx))
}

func TestMachine_FullRun(t *testing.T) {
	gen := newFakeGenerator()
	m, _ := newTestMachine(t, gen)
	finished(t, m)

	s := m.Snapshot()
	assert.Equal(t, StageFinalResult, s.Stage)
	assert.Equal(t, "data:image/png;base64,FINAL", s.FinalImage)
	assert.Equal(t, "Nordic Calm Vibe", s.Title)
	assert.Equal(t, []string{"Add a rug"}, s.History)
	assert.Equal(t, testMoods[0].ImageURL, gen.lastBase)
	assert.Equal(t, "Add a rug", gen.lastPrompt)
}

func TestMachine_SnapshotIsACopy(t *testing.T) {
	m, _ := newTestMachine(t, newFakeGenerator())
	finished(t, m)

	s := m.Snapshot()
	s.History[0] = "changed"
	s.Photo.Data[0] = 'X'
	assert.Equal(t, []string{"Add a rug"}, m.Snapshot().History)
	assert.Equal(t, testPhoto.Data, m.Snapshot().Photo.Data)
}

func TestMachine_GenerateMoodsFailure(t *testing.T) {
	gen := newFakeGenerator()
	boom := fmt.Errorf("%w: quota", provider.ErrRemote)
	gen.moods = func(context.Context) (*pipeline.MoodResult, error) { return nil, boom }
	m, _ := newTestMachine(t, gen)

	require.NoError(t, m.Upload(testPhoto))
	err := m.GenerateMoods(context.Background())
	assert.ErrorIs(t, err, provider.ErrRemote)

	s := m.Snapshot()
	assert.Equal(t, StageUpload, s.Stage)
	assert.Equal(t, MsgMoodGenerationFailed, s.Error)
	assert.True(t, s.HasPhoto())
}

func TestMachine_GenerateMoodsWithoutPhoto(t *testing.T) {
	gen := newFakeGenerator()
	m, _ := newTestMachine(t, gen)

	assert.ErrorIs(t, m.GenerateMoods(context.Background()), ErrNoPhoto)
	assert.Zero(t, gen.moodCalls)
}

func TestMachine_MakeItHappenFailure(t *testing.T) {
	gen := newFakeGenerator()
	gen.composite = func(context.Context, string, string, []models.Image) (string, error) {
		return "", provider.ErrNoImage
	}
	m, _ := newTestMachine(t, gen)
	ctx := context.Background()

	require.NoError(t, m.Upload(testPhoto))
	require.NoError(t, m.GenerateMoods(ctx))
	require.NoError(t, m.SelectMood(ctx, 2))
	require.NoError(t, m.SetRefinement("more plants"))

	assert.ErrorIs(t, m.MakeItHappen(ctx), provider.ErrNoImage)
	s := m.Snapshot()
	assert.Equal(t, StageRefineResult, s.Stage)
	assert.Equal(t, MsgFinalImageFailed, s.Error)
	assert.Equal(t, "more plants", s.RefinementPrompt)
}

func TestMachine_MakeItHappenNothingToApply(t *testing.T) {
	gen := newFakeGenerator()
	m, _ := newTestMachine(t, gen)
	ctx := context.Background()

	require.NoError(t, m.Upload(testPhoto))
	require.NoError(t, m.GenerateMoods(ctx))
	require.NoError(t, m.SelectFurnitureMode())

	assert.ErrorIs(t, m.MakeItHappen(ctx), pipeline.ErrNothingToApply)
	s := m.Snapshot()
	assert.Equal(t, StageRefineResult, s.Stage)
	assert.Equal(t, MsgNothingToApply, s.Error)
	assert.Empty(t, gen.lastBase)
}

func TestMachine_StaleSuggestionsDiscarded(t *testing.T) {
	gen := newFakeGenerator()
	m, _ := newTestMachine(t, gen)
	ctx := context.Background()

	gen.suggest = func(context.Context, models.Mood) []string {
		// The user navigates away while suggestions are loading.
		require.NoError(t, m.Back(StageMoodsResult))
		return []string{"late"}
	}

	require.NoError(t, m.Upload(testPhoto))
	require.NoError(t, m.GenerateMoods(ctx))
	assert.ErrorIs(t, m.SelectMood(ctx, 0), ErrStale)

	s := m.Snapshot()
	assert.Equal(t, StageMoodsResult, s.Stage)
	assert.False(t, s.Selection.IsSet())
	assert.Empty(t, s.Suggestions)
}

func TestMachine_StaleFinalImageDiscarded(t *testing.T) {
	gen := newFakeGenerator()
	m, _ := newTestMachine(t, gen)
	ctx := context.Background()

	gen.composite = func(context.Context, string, string, []models.Image) (string, error) {
		require.NoError(t, m.Back(StageUpload))
		return "data:image/png;base64,LATE", nil
	}

	require.NoError(t, m.Upload(testPhoto))
	require.NoError(t, m.GenerateMoods(ctx))
	require.NoError(t, m.SelectMood(ctx, 0))
	require.NoError(t, m.SetRefinement("x"))
	assert.ErrorIs(t, m.MakeItHappen(ctx), ErrStale)

	s := m.Snapshot()
	assert.Equal(t, StageUpload, s.Stage)
	assert.Empty(t, s.FinalImage)
	assert.Empty(t, s.Moods)
}

func TestMachine_StaleFailureLeavesNoMessage(t *testing.T) {
	gen := newFakeGenerator()
	m, _ := newTestMachine(t, gen)

	gen.moods = func(context.Context) (*pipeline.MoodResult, error) {
		require.NoError(t, m.Back(StageUpload))
		return nil, errors.New("boom")
	}

	require.NoError(t, m.Upload(testPhoto))
	assert.ErrorIs(t, m.GenerateMoods(context.Background()), ErrStale)
	assert.Empty(t, m.Snapshot().Error)
}

func TestMachine_StaleFailureIsStillLogged(t *testing.T) {
	gen := newFakeGenerator()
	_, st := newTestMachine(t, gen)
	core, logs := observer.New(zapcore.WarnLevel)
	m := NewMachine(gen, st, logger.FromZap(zap.New(core)))

	gen.moods = func(context.Context) (*pipeline.MoodResult, error) {
		require.NoError(t, m.Back(StageUpload))
		return nil, errors.New("quota exceeded")
	}
	require.NoError(t, m.Upload(testPhoto))
	assert.ErrorIs(t, m.GenerateMoods(context.Background()), ErrStale)

	gen.moods = newFakeGenerator().moods
	require.NoError(t, m.GenerateMoods(context.Background()))
	require.NoError(t, m.SelectMood(context.Background(), 0))
	require.NoError(t, m.SetRefinement("rug"))
	gen.composite = func(context.Context, string, string, []models.Image) (string, error) {
		require.NoError(t, m.Back(StageMoodsResult))
		return "", errors.New("backend down")
	}
	assert.ErrorIs(t, m.MakeItHappen(context.Background()), ErrStale)

	entries := logs.FilterMessage("mood generation failed").All()
	require.Len(t, entries, 1)
	assert.Contains(t, fmt.Sprint(entries[0].ContextMap()["error"]), "quota exceeded")
	entries = logs.FilterMessage("final image failed").All()
	require.Len(t, entries, 1)
	assert.Contains(t, fmt.Sprint(entries[0].ContextMap()["error"]), "backend down")
}

func TestMachine_Save(t *testing.T) {
	m, st := newTestMachine(t, newFakeGenerator())
	finished(t, m)
	ctx := context.Background()

	require.NoError(t, m.SetTitle("   "))
	before := m.Snapshot()
	_, err := m.Save(ctx)
	assert.ErrorIs(t, err, store.ErrBlankTitle)
	assert.Equal(t, before, m.Snapshot())
	assert.Zero(t, st.Len())

	require.NoError(t, m.SetTitle("Living Room"))
	rec, err := m.Save(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "Living Room", rec.Title)
	assert.Equal(t, "Nordic Calm", rec.MoodName)
	assert.Equal(t, []string{"Add a rug"}, rec.Refinements)
	assert.Equal(t, []models.Image{testLamp}, rec.AddedObjects)
	assert.True(t, m.Snapshot().Saved)

	_, err = m.Save(ctx)
	assert.ErrorIs(t, err, ErrAlreadySaved)
	assert.Equal(t, 1, st.Len())

	// Renaming allows saving again as a new record.
	require.NoError(t, m.SetTitle("Living Room 2"))
	_, err = m.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Len())
	assert.Equal(t, "Living Room 2", m.SavedMoods()[0].Title)
}

func TestMachine_SaveBeforeFinal(t *testing.T) {
	m, st := newTestMachine(t, newFakeGenerator())
	require.NoError(t, m.Upload(testPhoto))
	require.NoError(t, m.SetTitle("Early"))

	_, err := m.Save(context.Background())
	assert.ErrorIs(t, err, store.ErrIncomplete)
	assert.Zero(t, st.Len())
}

type brokenStore struct{}

func (brokenStore) Save(context.Context, models.SavedMood) (models.SavedMood, error) {
	return models.SavedMood{}, errors.New("disk full")
}
func (brokenStore) Get(string) (models.SavedMood, bool) { return models.SavedMood{}, false }
func (brokenStore) List() []models.SavedMood           { return nil }

func TestMachine_SaveWriteFailureKeepsSession(t *testing.T) {
	m := NewMachine(newFakeGenerator(), brokenStore{}, nil)
	finished(t, m)
	before := m.Snapshot()

	_, err := m.Save(context.Background())
	assert.EqualError(t, err, "disk full")
	assert.Equal(t, before, m.Snapshot())
	assert.False(t, m.Snapshot().Saved)
}

func TestMachine_Load(t *testing.T) {
	gen := newFakeGenerator()
	m, _ := newTestMachine(t, gen)
	finished(t, m)
	require.NoError(t, m.SetTitle("Den"))
	rec, err := m.Save(context.Background())
	require.NoError(t, err)

	require.NoError(t, m.Restart())
	require.Equal(t, StageUpload, m.Snapshot().Stage)

	err = m.Load("missing")
	assert.ErrorIs(t, err, ErrUnknownSaved)
	assert.Equal(t, StageUpload, m.Snapshot().Stage)

	require.NoError(t, m.Load(rec.ID))
	s := m.Snapshot()
	assert.Equal(t, StageFinalResult, s.Stage)
	assert.Equal(t, "Den", s.Title)
	assert.Equal(t, rec.FinalImage, s.FinalImage)
	assert.Equal(t, testPhoto, s.Photo)
	assert.True(t, s.Saved)

	// Back from a loaded session only reaches the refine step.
	assert.ErrorIs(t, m.Back(StageMoodsResult), ErrInvalidTarget)
	require.NoError(t, m.Back(StageRefineResult))
	assert.Equal(t, "Nordic Calm", m.Snapshot().Selection.Mood.Name)

	// Refining a loaded mood builds on its saved final image.
	require.NoError(t, m.SetRefinement("brighter walls"))
	require.NoError(t, m.MakeItHappen(context.Background()))
	assert.Equal(t, rec.FinalImage, gen.lastBase)
	assert.Equal(t, StageFinalResult, m.Snapshot().Stage)
}

func TestMachine_ConcurrentReads(t *testing.T) {
	m, _ := newTestMachine(t, newFakeGenerator())
	finished(t, m)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Snapshot()
			_ = m.SetTitle("t")
		}()
	}
	wg.Wait()
	assert.Equal(t, "t", m.Snapshot().Title)
}
