package store

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manash/roommood/pkg/models"
)

func testSQLite(t *testing.T) *SQLiteBackend {
	t.Helper()
	b, err := NewSQLiteBackendWithPath(filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

func testRedis(t *testing.T) (*RedisBackend, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	b := NewRedisBackendFromClient(client, WithPrefix("test:"))
	t.Cleanup(func() { b.Close() })
	return b, mr
}

func backends(t *testing.T) map[string]Backend {
	r, _ := testRedis(t)
	return map[string]Backend{
		"sqlite": testSQLite(t),
		"redis":  r,
	}
}

func record(title string) models.SavedMood {
	return models.SavedMood{
		Title:         title,
		OriginalImage: models.Image{Data: []byte("orig"), MIMEType: "image/jpeg", Name: "room.jpg"},
		FinalImage:    "data:image/png;base64,AAAA",
		MoodName:      "Nordic Calm",
		Refinements:   []string{"add plants"},
		AddedObjects:  []models.Image{{Data: []byte("lamp"), MIMEType: "image/png", Name: "lamp.png"}},
	}
}

func TestBackend_GetPut(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := b.Get(ctx, "missing")
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, b.Put(ctx, "k", []byte("one")))
			require.NoError(t, b.Put(ctx, "k", []byte("two")))

			got, err := b.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, []byte("two"), got)
		})
	}
}

func TestRedisBackend_Prefix(t *testing.T) {
	b, mr := testRedis(t)
	require.NoError(t, b.Put(context.Background(), SavedMoodsKey, []byte("[]")))

	val, err := mr.Get("test:" + SavedMoodsKey)
	require.NoError(t, err)
	assert.Equal(t, "[]", val)
}

func TestMoodStore_SaveAndReload(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := Open(ctx, b, nil)
			assert.Empty(t, s.List())

			first, err := s.Save(ctx, record("Cozy Den"))
			require.NoError(t, err)
			second, err := s.Save(ctx, record("Sunny Loft"))
			require.NoError(t, err)

			assert.NotEmpty(t, first.ID)
			assert.NotEqual(t, first.ID, second.ID)
			assert.False(t, first.CreatedAt.IsZero())

			list := s.List()
			require.Len(t, list, 2)
			assert.Equal(t, "Sunny Loft", list[0].Title, "newest first")
			assert.Equal(t, "Cozy Den", list[1].Title)

			reopened := Open(ctx, b, nil)
			assert.Equal(t, list, reopened.List())

			got, ok := reopened.Get(first.ID)
			require.True(t, ok)
			assert.Equal(t, record("Cozy Den").AddedObjects, got.AddedObjects)
		})
	}
}

func TestMoodStore_Save_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*models.SavedMood)
		wantErr error
	}{
		{"blank title", func(m *models.SavedMood) { m.Title = "  " }, ErrBlankTitle},
		{"no photo", func(m *models.SavedMood) { m.OriginalImage = models.Image{} }, ErrIncomplete},
		{"no final image", func(m *models.SavedMood) { m.FinalImage = "" }, ErrIncomplete},
		{"no mood", func(m *models.SavedMood) { m.MoodName = "" }, ErrIncomplete},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Open(context.Background(), testSQLite(t), nil)
			rec := record("Den")
			tt.mutate(&rec)

			_, err := s.Save(context.Background(), rec)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, s.Len())
		})
	}
}

func TestMoodStore_OpenCorruptDataStartsEmpty(t *testing.T) {
	ctx := context.Background()
	b := testSQLite(t)
	require.NoError(t, b.Put(ctx, SavedMoodsKey, []byte("{not json")))

	s := Open(ctx, b, nil)
	assert.Empty(t, s.List())

	// The store stays usable and overwrites the corrupt document.
	_, err := s.Save(ctx, record("Fresh Start"))
	require.NoError(t, err)

	raw, err := b.Get(ctx, SavedMoodsKey)
	require.NoError(t, err)
	var moods []models.SavedMood
	require.NoError(t, json.Unmarshal(raw, &moods))
	assert.Len(t, moods, 1)
}

type failingBackend struct {
	getErr error
	putErr error
	data   []byte
}

func (f *failingBackend) Get(context.Context, string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.data, nil
}

func (f *failingBackend) Put(_ context.Context, _ string, v []byte) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.data = v
	return nil
}

func (f *failingBackend) Close() error { return nil }

func TestMoodStore_OpenUnreadableStartsEmpty(t *testing.T) {
	s := Open(context.Background(), &failingBackend{getErr: errors.New("disk on fire")}, nil)
	assert.Empty(t, s.List())
}

func TestMoodStore_FailedWriteLeavesListUnchanged(t *testing.T) {
	ctx := context.Background()
	fb := &failingBackend{getErr: ErrNotFound}
	s := Open(ctx, fb, nil)

	_, err := s.Save(ctx, record("Kept"))
	require.NoError(t, err)

	fb.putErr = errors.New("quota exceeded")
	_, err = s.Save(ctx, record("Lost"))
	require.Error(t, err)

	list := s.List()
	require.Len(t, list, 1)
	assert.Equal(t, "Kept", list[0].Title)
}

func TestMoodStore_ListReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := Open(ctx, testSQLite(t), nil)
	saved, err := s.Save(ctx, record("Den"))
	require.NoError(t, err)

	list := s.List()
	list[0].Refinements[0] = "tampered"
	list[0].OriginalImage.Data[0] = 'X'

	got, ok := s.Get(saved.ID)
	require.True(t, ok)
	assert.Equal(t, "add plants", got.Refinements[0])
	assert.Equal(t, byte('o'), got.OriginalImage.Data[0])
}

func TestMoodStore_SaveStampsTime(t *testing.T) {
	ctx := context.Background()
	s := Open(ctx, testSQLite(t), nil)
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	saved, err := s.Save(ctx, record("Den"))
	require.NoError(t, err)
	assert.Equal(t, fixed, saved.CreatedAt)
}

func TestMoodStore_GetUnknown(t *testing.T) {
	s := Open(context.Background(), testSQLite(t), nil)
	_, ok := s.Get("nope")
	assert.False(t, ok)
}
