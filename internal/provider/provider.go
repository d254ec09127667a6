package provider

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/manash/roommood/pkg/models"
)

var (
	ErrProviderNotFound  = errors.New("provider not found")
	ErrModelNotSupported = errors.New("model not supported by provider")
	ErrAPIKeyRequired    = errors.New("API key is required")
	ErrRemote            = errors.New("remote generation call failed")
	ErrRejected          = errors.New("remote generation call rejected")
	ErrNoImage           = errors.New("response contained no image")
	ErrInvalidResponse   = errors.New("response did not match the expected shape")
	ErrBlocked           = errors.New("request was blocked by the service")
)

// Provider is a remote generative service able to answer content requests
// with text, schema-constrained JSON or inline images.
type Provider interface {
	Name() models.ProviderType
	GenerateContent(ctx context.Context, req *models.ContentRequest) (*models.ContentResponse, error)
	SupportsModel(model string) bool
	ListModels() []string
}

type Config struct {
	APIKey     string
	BaseURL    string
	TimeoutSec int
	Verbose    bool
}

var probeSchema = openapi3.NewObjectSchema()

// Factory routes model names to the provider that serves them.
type Factory struct {
	registry  *models.ModelRegistry
	providers map[models.ProviderType]Provider
}

func NewFactory(registry *models.ModelRegistry) *Factory {
	return &Factory{
		registry:  registry,
		providers: make(map[models.ProviderType]Provider),
	}
}

func (f *Factory) Register(p Provider) {
	f.providers[p.Name()] = p
}

func (f *Factory) Get(providerType models.ProviderType) (Provider, error) {
	p, ok := f.providers[providerType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, providerType)
	}
	return p, nil
}

func (f *Factory) GetForModel(model string) (Provider, error) {
	cap, ok := f.registry.Get(model)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotSupported, model)
	}

	p, ok := f.providers[cap.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s (required by model %s)", ErrProviderNotFound, cap.Provider, model)
	}
	return p, nil
}

// CheckModel verifies that model is registered and can answer in mode.
func (f *Factory) CheckModel(model string, mode models.ResponseMode) error {
	cap, ok := f.registry.Get(model)
	if !ok {
		return fmt.Errorf("%w: %s", ErrModelNotSupported, model)
	}
	probe := models.NewContentRequest(model, mode, models.TextPart("probe"))
	if mode == models.ModeStructured {
		probe.Schema = probeSchema
	}
	if err := cap.Validate(probe); err != nil {
		return fmt.Errorf("%w: %v", ErrModelNotSupported, err)
	}
	return nil
}

func (f *Factory) ListProviders() []models.ProviderType {
	types := make([]models.ProviderType, 0, len(f.providers))
	for t := range f.providers {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}
