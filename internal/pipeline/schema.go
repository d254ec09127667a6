package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/mitchellh/mapstructure"

	"github.com/manash/roommood/internal/provider"
)

type moodProposal struct {
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`
}

type suggestionList struct {
	Suggestions []string `mapstructure:"suggestions"`
}

// moodSetSchema describes a list of {name, description} proposals.
func moodSetSchema() *openapi3.Schema {
	item := openapi3.NewObjectSchema().
		WithProperty("name", openapi3.NewStringSchema().WithMinLength(1)).
		WithProperty("description", openapi3.NewStringSchema())
	item.Required = []string{"name", "description"}

	return openapi3.NewArraySchema().WithItems(item).WithMinItems(1)
}

func suggestionsSchema() *openapi3.Schema {
	s := openapi3.NewObjectSchema().
		WithProperty("suggestions", openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema()))
	s.Required = []string{"suggestions"}
	return s
}

// decodeStructured parses a JSON answer, checks it against schema and decodes
// it into out.
func decodeStructured(text string, schema *openapi3.Schema, out any) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("%w: empty structured response", provider.ErrInvalidResponse)
	}

	var raw any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return fmt.Errorf("%w: %v", provider.ErrInvalidResponse, err)
	}
	if err := schema.VisitJSON(raw); err != nil {
		return fmt.Errorf("%w: %v", provider.ErrInvalidResponse, err)
	}
	if err := mapstructure.Decode(raw, out); err != nil {
		return fmt.Errorf("%w: %v", provider.ErrInvalidResponse, err)
	}
	return nil
}
