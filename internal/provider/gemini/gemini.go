package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/manash/roommood/internal/logger"
	"github.com/manash/roommood/internal/provider"
	"github.com/manash/roommood/pkg/models"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultTimeout = 120 * time.Second

	// Longest base64 prefix kept when payloads are logged.
	logDataPrefix = 64
)

type apiRequest struct {
	Contents         []apiContent      `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type apiContent struct {
	Role  string    `json:"role,omitempty"`
	Parts []apiPart `json:"parts"`
}

type apiPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationConfig struct {
	ResponseMIMEType   string         `json:"responseMimeType,omitempty"`
	ResponseSchema     map[string]any `json:"responseSchema,omitempty"`
	ResponseModalities []string       `json:"responseModalities,omitempty"`
}

type apiResponse struct {
	Candidates     []apiCandidate  `json:"candidates"`
	PromptFeedback *promptFeedback `json:"promptFeedback,omitempty"`
	Error          *apiError       `json:"error,omitempty"`
}

type apiCandidate struct {
	Content      apiContent `json:"content"`
	FinishReason string     `json:"finishReason,omitempty"`
}

type promptFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

type Provider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	registry   *models.ModelRegistry
	log        *logger.Logger
	verbose    bool
}

func New(cfg *provider.Config, registry *models.ModelRegistry, log *logger.Logger) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, provider.ErrAPIKeyRequired
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	timeout := defaultTimeout
	if cfg.TimeoutSec > 0 {
		timeout = time.Duration(cfg.TimeoutSec) * time.Second
	}

	if log == nil {
		log = logger.Nop()
	}

	return &Provider{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		registry: registry,
		log:      log.With("provider", models.ProviderGemini),
		verbose:  cfg.Verbose,
	}, nil
}

func (p *Provider) Name() models.ProviderType {
	return models.ProviderGemini
}

func (p *Provider) SupportsModel(model string) bool {
	cap, ok := p.registry.Get(model)
	if !ok {
		return false
	}
	return cap.Provider == models.ProviderGemini
}

func (p *Provider) ListModels() []string {
	return p.registry.ListByProvider(models.ProviderGemini)
}

func (p *Provider) GenerateContent(ctx context.Context, req *models.ContentRequest) (*models.ContentResponse, error) {
	cap, ok := p.registry.Get(req.Model)
	if !ok || cap.Provider != models.ProviderGemini {
		return nil, fmt.Errorf("%w: %s", provider.ErrModelNotSupported, req.Model)
	}
	if err := cap.Validate(req); err != nil {
		return nil, err
	}

	apiReq, err := buildAPIRequest(req)
	if err != nil {
		return nil, err
	}

	jsonData, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := p.baseURL + "/models/" + req.Model + ":generateContent"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", p.apiKey)

	p.logPayload("request", url, jsonData)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrRemote, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", provider.ErrRemote, err)
	}

	p.logPayload("response", url, body, "status", resp.StatusCode)

	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: status %d", statusError(resp.StatusCode), resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: failed to parse response: %v", provider.ErrInvalidResponse, err)
	}

	if apiResp.Error != nil {
		return nil, fmt.Errorf("%w: %s (%s)", statusError(resp.StatusCode), apiResp.Error.Message, apiResp.Error.Status)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", statusError(resp.StatusCode), resp.StatusCode)
	}

	if apiResp.PromptFeedback != nil && apiResp.PromptFeedback.BlockReason != "" && len(apiResp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: %w: %s", provider.ErrRemote, provider.ErrBlocked, apiResp.PromptFeedback.BlockReason)
	}

	return buildResponse(apiResp)
}

// statusError classifies a failed reply. Server errors and rate limiting may
// succeed on a later attempt; any other 4xx never will.
func statusError(code int) error {
	if code >= 400 && code < 500 && code != http.StatusTooManyRequests {
		return provider.ErrRejected
	}
	return provider.ErrRemote
}

func buildAPIRequest(req *models.ContentRequest) (*apiRequest, error) {
	content := apiContent{Role: "user", Parts: make([]apiPart, 0, len(req.Parts))}
	for _, part := range req.Parts {
		if part.Inline != nil {
			if err := part.Inline.Validate(); err != nil {
				return nil, err
			}
			content.Parts = append(content.Parts, apiPart{
				InlineData: &inlineData{
					MIMEType: part.Inline.MIMEType,
					Data:     base64.StdEncoding.EncodeToString(part.Inline.Data),
				},
			})
			continue
		}
		content.Parts = append(content.Parts, apiPart{Text: part.Text})
	}

	apiReq := &apiRequest{Contents: []apiContent{content}}

	switch req.Mode {
	case models.ModeStructured:
		apiReq.GenerationConfig = &generationConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   SchemaToWire(req.Schema),
		}
	case models.ModeImage:
		apiReq.GenerationConfig = &generationConfig{
			ResponseModalities: []string{"IMAGE", "TEXT"},
		}
	}

	return apiReq, nil
}

func buildResponse(apiResp apiResponse) (*models.ContentResponse, error) {
	response := &models.ContentResponse{
		Candidates: make([]models.Candidate, 0, len(apiResp.Candidates)),
	}

	for i, c := range apiResp.Candidates {
		candidate := models.Candidate{FinishReason: c.FinishReason}
		for j, part := range c.Content.Parts {
			if part.InlineData == nil {
				candidate.Parts = append(candidate.Parts, models.TextPart(part.Text))
				continue
			}
			decoded, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return nil, fmt.Errorf("%w: candidate %d part %d: %v", provider.ErrInvalidResponse, i, j, err)
			}
			candidate.Parts = append(candidate.Parts, models.ImagePart(models.Image{
				Data:     decoded,
				MIMEType: part.InlineData.MIMEType,
			}))
		}
		response.Candidates = append(response.Candidates, candidate)
	}

	return response, nil
}

// SchemaToWire converts an OpenAPI schema into the subset understood by the
// generateContent responseSchema field, which spells types in upper case.
func SchemaToWire(s *openapi3.Schema) map[string]any {
	if s == nil {
		return nil
	}

	out := make(map[string]any)
	if s.Type != nil && len(*s.Type) > 0 {
		out["type"] = strings.ToUpper((*s.Type)[0])
	}
	if s.Description != "" {
		out["description"] = s.Description
	}
	if len(s.Enum) > 0 {
		out["enum"] = s.Enum
	}
	if s.Nullable {
		out["nullable"] = true
	}
	if s.Items != nil && s.Items.Value != nil {
		out["items"] = SchemaToWire(s.Items.Value)
	}
	if len(s.Properties) > 0 {
		props := make(map[string]any, len(s.Properties))
		for name, ref := range s.Properties {
			if ref == nil || ref.Value == nil {
				continue
			}
			props[name] = SchemaToWire(ref.Value)
		}
		out["properties"] = props
	}
	if len(s.Required) > 0 {
		out["required"] = s.Required
	}
	return out
}

func (p *Provider) logPayload(kind, url string, body []byte, kv ...any) {
	if !p.verbose {
		return
	}
	fields := append([]any{"url", url, "body", string(truncateBase64InJSON(body))}, kv...)
	p.log.Debug("gemini "+kind, fields...)
}

func truncateBase64InJSON(body []byte) []byte {
	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		return body
	}

	truncateBase64Fields(data)

	result, err := json.Marshal(data)
	if err != nil {
		return body
	}
	return result
}

func truncateBase64Fields(data map[string]any) {
	for key, value := range data {
		switch v := value.(type) {
		case string:
			if key == "data" && len(v) > logDataPrefix {
				data[key] = v[:logDataPrefix] + "... [truncated]"
			}
		case map[string]any:
			truncateBase64Fields(v)
		case []any:
			for _, item := range v {
				if m, ok := item.(map[string]any); ok {
					truncateBase64Fields(m)
				}
			}
		}
	}
}
