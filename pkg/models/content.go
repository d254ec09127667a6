package models

import (
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

type ResponseMode string

const (
	ModeText       ResponseMode = "text"
	ModeStructured ResponseMode = "structured"
	ModeImage      ResponseMode = "image"
)

// Part is one element of a remote request or response: inline image bytes or
// instruction text, never both.
type Part struct {
	Inline *Image
	Text   string
}

func TextPart(text string) Part {
	return Part{Text: text}
}

func ImagePart(img Image) Part {
	return Part{Inline: &img}
}

type ContentRequest struct {
	Model  string
	Parts  []Part
	Mode   ResponseMode
	Schema *openapi3.Schema
}

func NewContentRequest(model string, mode ResponseMode, parts ...Part) *ContentRequest {
	return &ContentRequest{
		Model: model,
		Mode:  mode,
		Parts: parts,
	}
}

func (r *ContentRequest) HasText() bool {
	for _, p := range r.Parts {
		if p.Inline == nil && strings.TrimSpace(p.Text) != "" {
			return true
		}
	}
	return false
}

func (r *ContentRequest) HasImage() bool {
	for _, p := range r.Parts {
		if p.Inline != nil {
			return true
		}
	}
	return false
}

type Candidate struct {
	Parts        []Part
	FinishReason string
}

type ContentResponse struct {
	Candidates []Candidate
}

// FirstInlineImage scans candidates and their parts in received order and
// returns the first inline binary payload. Later payloads are ignored.
func (r *ContentResponse) FirstInlineImage() (Image, bool) {
	if r == nil {
		return Image{}, false
	}
	for _, c := range r.Candidates {
		for _, p := range c.Parts {
			if p.Inline != nil && len(p.Inline.Data) > 0 {
				return *p.Inline, true
			}
		}
	}
	return Image{}, false
}

// Text concatenates the text parts of the first candidate.
func (r *ContentResponse) Text() string {
	if r == nil || len(r.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range r.Candidates[0].Parts {
		if p.Inline == nil {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}
