package models

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	ErrEmptyPrompt       = errors.New("request has no text part")
	ErrNoParts           = errors.New("request must contain at least one part")
	ErrModeNotSupported  = errors.New("response mode not supported by model")
	ErrSchemaRequired    = errors.New("structured mode requires a response schema")
	ErrUnknownModel      = errors.New("unknown model")
	ErrInvalidDataURL    = errors.New("invalid data URL")
	ErrEmptyImage        = errors.New("image has no data")
	ErrMissingImageMIME  = errors.New("image has no MIME type")
	ErrUnsupportedFormat = errors.New("unsupported output format")
)

type ProviderType string

const (
	ProviderGemini ProviderType = "gemini"
)

type OutputFormat string

const (
	FormatPNG  OutputFormat = "png"
	FormatJPEG OutputFormat = "jpeg"
	FormatWebP OutputFormat = "webp"
)

func ValidFormats() []OutputFormat {
	return []OutputFormat{FormatPNG, FormatJPEG, FormatWebP}
}

func (f OutputFormat) IsValid() bool {
	return slices.Contains(ValidFormats(), f)
}

func (f OutputFormat) String() string {
	return string(f)
}

// MIMEType returns the IANA media type for the format.
func (f OutputFormat) MIMEType() string {
	return "image/" + string(f)
}

// ExtensionForMIME returns the file extension for an image MIME type: the
// subtype after the slash, or "png" when there is none.
func ExtensionForMIME(mime string) string {
	_, sub, ok := strings.Cut(mime, "/")
	if !ok || sub == "" {
		return string(FormatPNG)
	}
	return sub
}

// ModelCapabilities describes which response modes a remote model supports.
type ModelCapabilities struct {
	Name                string
	Provider            ProviderType
	SupportsText        bool
	SupportsStructured  bool
	SupportsImageOutput bool
	AcceptsImageInput   bool
}

func (c *ModelCapabilities) Validate(req *ContentRequest) error {
	if len(req.Parts) == 0 {
		return ErrNoParts
	}

	switch req.Mode {
	case ModeText:
		if !c.SupportsText {
			return fmt.Errorf("%w: %s does not return text", ErrModeNotSupported, c.Name)
		}
	case ModeStructured:
		if !c.SupportsStructured {
			return fmt.Errorf("%w: %s does not return structured data", ErrModeNotSupported, c.Name)
		}
		if req.Schema == nil {
			return ErrSchemaRequired
		}
	case ModeImage:
		if !c.SupportsImageOutput {
			return fmt.Errorf("%w: %s does not return images", ErrModeNotSupported, c.Name)
		}
	default:
		return fmt.Errorf("%w: %q", ErrModeNotSupported, req.Mode)
	}

	if !req.HasText() {
		return ErrEmptyPrompt
	}

	if !c.AcceptsImageInput && req.HasImage() {
		return fmt.Errorf("%w: %s does not accept image input", ErrModeNotSupported, c.Name)
	}

	return nil
}

type ModelRegistry struct {
	models map[string]*ModelCapabilities
}

func NewModelRegistry() *ModelRegistry {
	return &ModelRegistry{
		models: make(map[string]*ModelCapabilities),
	}
}

func (r *ModelRegistry) Register(cap *ModelCapabilities) {
	r.models[cap.Name] = cap
}

func (r *ModelRegistry) Get(name string) (*ModelCapabilities, bool) {
	cap, ok := r.models[name]
	return cap, ok
}

func (r *ModelRegistry) List() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (r *ModelRegistry) ListByProvider(provider ProviderType) []string {
	var names []string
	for name, cap := range r.models {
		if cap.Provider == provider {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

const (
	DefaultTextModel  = "gemini-2.5-flash"
	DefaultImageModel = "gemini-2.5-flash-image-preview"
)

func DefaultRegistry() *ModelRegistry {
	r := NewModelRegistry()

	r.Register(&ModelCapabilities{
		Name:               DefaultTextModel,
		Provider:           ProviderGemini,
		SupportsText:       true,
		SupportsStructured: true,
		AcceptsImageInput:  true,
	})

	r.Register(&ModelCapabilities{
		Name:               "gemini-2.5-pro",
		Provider:           ProviderGemini,
		SupportsText:       true,
		SupportsStructured: true,
		AcceptsImageInput:  true,
	})

	r.Register(&ModelCapabilities{
		Name:                DefaultImageModel,
		Provider:            ProviderGemini,
		SupportsText:        true,
		SupportsImageOutput: true,
		AcceptsImageInput:   true,
	})

	r.Register(&ModelCapabilities{
		Name:                "gemini-2.5-flash-image",
		Provider:            ProviderGemini,
		SupportsText:        true,
		SupportsImageOutput: true,
		AcceptsImageInput:   true,
	})

	return r
}
