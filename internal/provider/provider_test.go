package provider

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/manash/roommood/pkg/models"
)

// mockProvider is a test implementation of Provider.
type mockProvider struct {
	name            models.ProviderType
	supportedModels []string
}

func (m *mockProvider) Name() models.ProviderType {
	return m.name
}

func (m *mockProvider) GenerateContent(_ context.Context, _ *models.ContentRequest) (*models.ContentResponse, error) {
	return &models.ContentResponse{}, nil
}

func (m *mockProvider) SupportsModel(model string) bool {
	return slices.Contains(m.supportedModels, model)
}

func (m *mockProvider) ListModels() []string {
	return m.supportedModels
}

func TestFactory_Get(t *testing.T) {
	factory := NewFactory(models.DefaultRegistry())
	factory.Register(&mockProvider{name: models.ProviderGemini})

	p, err := factory.Get(models.ProviderGemini)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if p.Name() != models.ProviderGemini {
		t.Errorf("Get() name = %v, want %v", p.Name(), models.ProviderGemini)
	}

	if _, err := factory.Get("nonexistent"); !errors.Is(err, ErrProviderNotFound) {
		t.Errorf("Get(nonexistent) error = %v, want ErrProviderNotFound", err)
	}
}

func TestFactory_GetForModel(t *testing.T) {
	tests := []struct {
		name     string
		register bool
		model    string
		wantErr  error
	}{
		{"text model", true, models.DefaultTextModel, nil},
		{"image model", true, models.DefaultImageModel, nil},
		{"unknown model", true, "dall-e-3", ErrModelNotSupported},
		{"provider not registered", false, models.DefaultTextModel, ErrProviderNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory := NewFactory(models.DefaultRegistry())
			if tt.register {
				factory.Register(&mockProvider{name: models.ProviderGemini})
			}

			p, err := factory.GetForModel(tt.model)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("GetForModel(%q) error = %v, want %v", tt.model, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetForModel(%q) error = %v", tt.model, err)
			}
			if p == nil {
				t.Fatal("GetForModel() returned nil provider")
			}
		})
	}
}

func TestFactory_CheckModel(t *testing.T) {
	factory := NewFactory(models.DefaultRegistry())

	tests := []struct {
		model   string
		mode    models.ResponseMode
		wantErr bool
	}{
		{models.DefaultTextModel, models.ModeText, false},
		{models.DefaultTextModel, models.ModeStructured, false},
		{models.DefaultTextModel, models.ModeImage, true},
		{models.DefaultImageModel, models.ModeImage, false},
		{models.DefaultImageModel, models.ModeStructured, true},
		{"unknown", models.ModeText, true},
	}

	for _, tt := range tests {
		err := factory.CheckModel(tt.model, tt.mode)
		if (err != nil) != tt.wantErr {
			t.Errorf("CheckModel(%q, %s) error = %v, wantErr %v", tt.model, tt.mode, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrModelNotSupported) {
			t.Errorf("CheckModel(%q, %s) error = %v, want ErrModelNotSupported", tt.model, tt.mode, err)
		}
	}
}

func TestFactory_ListProviders(t *testing.T) {
	factory := NewFactory(models.NewModelRegistry())
	if got := factory.ListProviders(); len(got) != 0 {
		t.Errorf("ListProviders() = %v, want empty", got)
	}

	factory.Register(&mockProvider{name: models.ProviderGemini})
	got := factory.ListProviders()
	if len(got) != 1 || got[0] != models.ProviderGemini {
		t.Errorf("ListProviders() = %v, want [gemini]", got)
	}
}
