package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/manash/roommood/internal/logger"
	"github.com/manash/roommood/internal/provider"
	"github.com/manash/roommood/pkg/models"
)

func newTestProvider(t *testing.T, baseURL string) *Provider {
	t.Helper()
	p, err := New(&provider.Config{APIKey: "test-key", BaseURL: baseURL}, models.DefaultRegistry(), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

func TestNew(t *testing.T) {
	registry := models.DefaultRegistry()

	tests := []struct {
		name    string
		cfg     *provider.Config
		wantErr error
	}{
		{
			name: "valid config",
			cfg:  &provider.Config{APIKey: "test-key"},
		},
		{
			name:    "empty API key",
			cfg:     &provider.Config{APIKey: ""},
			wantErr: provider.ErrAPIKeyRequired,
		},
		{
			name: "custom base URL",
			cfg:  &provider.Config{APIKey: "test-key", BaseURL: "https://custom.api.com/"},
		},
		{
			name: "custom timeout",
			cfg:  &provider.Config{APIKey: "test-key", TimeoutSec: 60},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.cfg, registry, nil)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("New() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v, want nil", err)
			}
			if strings.HasSuffix(p.baseURL, "/") {
				t.Errorf("New() baseURL = %q, want no trailing slash", p.baseURL)
			}
		})
	}
}

func TestProvider_Models(t *testing.T) {
	p := newTestProvider(t, "")

	if p.Name() != models.ProviderGemini {
		t.Errorf("Name() = %v, want %v", p.Name(), models.ProviderGemini)
	}
	if !p.SupportsModel(models.DefaultTextModel) {
		t.Errorf("SupportsModel(%q) = false", models.DefaultTextModel)
	}
	if p.SupportsModel("dall-e-3") {
		t.Error("SupportsModel(dall-e-3) = true")
	}
	if got := p.ListModels(); len(got) != 4 {
		t.Errorf("ListModels() = %v, want 4 models", got)
	}
}

func TestProvider_GenerateContent_Text(t *testing.T) {
	var gotPath, gotKey string
	var gotReq apiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotReq)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":" True"},{"text":"\n"}]},"finishReason":"STOP"}]}`))
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)
	photo := models.Image{Data: []byte{1, 2, 3}, MIMEType: "image/jpeg"}
	req := models.NewContentRequest(models.DefaultTextModel, models.ModeText,
		models.ImagePart(photo), models.TextPart("Is this room empty?"))

	resp, err := p.GenerateContent(context.Background(), req)
	if err != nil {
		t.Fatalf("GenerateContent() error = %v", err)
	}

	if gotPath != "/models/gemini-2.5-flash:generateContent" {
		t.Errorf("path = %s", gotPath)
	}
	if gotKey != "test-key" {
		t.Errorf("api key header = %q, want test-key", gotKey)
	}
	if len(gotReq.Contents) != 1 || len(gotReq.Contents[0].Parts) != 2 {
		t.Fatalf("request contents = %+v", gotReq.Contents)
	}
	first := gotReq.Contents[0].Parts[0]
	if first.InlineData == nil || first.InlineData.MIMEType != "image/jpeg" ||
		first.InlineData.Data != base64.StdEncoding.EncodeToString([]byte{1, 2, 3}) {
		t.Errorf("first part = %+v, want inline jpeg", first)
	}
	if gotReq.Contents[0].Parts[1].Text != "Is this room empty?" {
		t.Errorf("second part = %+v", gotReq.Contents[0].Parts[1])
	}
	if gotReq.GenerationConfig != nil {
		t.Errorf("text mode generationConfig = %+v, want nil", gotReq.GenerationConfig)
	}

	if resp.Text() != " True\n" {
		t.Errorf("Text() = %q", resp.Text())
	}
	if resp.Candidates[0].FinishReason != "STOP" {
		t.Errorf("FinishReason = %q", resp.Candidates[0].FinishReason)
	}
}

func TestProvider_GenerateContent_Structured(t *testing.T) {
	var raw map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &raw)
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"suggestions\":[\"a\"]}"}]}}]}`))
	}))
	defer server.Close()

	schema := openapi3.NewObjectSchema().
		WithProperty("suggestions", openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema()))
	schema.Required = []string{"suggestions"}

	req := models.NewContentRequest(models.DefaultTextModel, models.ModeStructured, models.TextPart("suggest"))
	req.Schema = schema

	resp, err := newTestProvider(t, server.URL).GenerateContent(context.Background(), req)
	if err != nil {
		t.Fatalf("GenerateContent() error = %v", err)
	}
	if resp.Text() != `{"suggestions":["a"]}` {
		t.Errorf("Text() = %q", resp.Text())
	}

	cfg, _ := raw["generationConfig"].(map[string]any)
	if cfg["responseMimeType"] != "application/json" {
		t.Errorf("responseMimeType = %v", cfg["responseMimeType"])
	}
	rs, _ := cfg["responseSchema"].(map[string]any)
	if rs["type"] != "OBJECT" {
		t.Errorf("responseSchema.type = %v, want OBJECT", rs["type"])
	}
	props, _ := rs["properties"].(map[string]any)
	sugg, _ := props["suggestions"].(map[string]any)
	items, _ := sugg["items"].(map[string]any)
	if sugg["type"] != "ARRAY" || items["type"] != "STRING" {
		t.Errorf("suggestions schema = %v", sugg)
	}
}

func TestProvider_GenerateContent_Image(t *testing.T) {
	png1 := base64.StdEncoding.EncodeToString([]byte("first"))
	png2 := base64.StdEncoding.EncodeToString([]byte("second"))
	var gotReq apiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotReq)
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[
			{"text":"here you go"},
			{"inlineData":{"mimeType":"image/png","data":"` + png1 + `"}},
			{"inlineData":{"mimeType":"image/png","data":"` + png2 + `"}}
		]}}]}`))
	}))
	defer server.Close()

	req := models.NewContentRequest(models.DefaultImageModel, models.ModeImage, models.TextPart("draw"))
	resp, err := newTestProvider(t, server.URL).GenerateContent(context.Background(), req)
	if err != nil {
		t.Fatalf("GenerateContent() error = %v", err)
	}

	if gotReq.GenerationConfig == nil || strings.Join(gotReq.GenerationConfig.ResponseModalities, ",") != "IMAGE,TEXT" {
		t.Errorf("generationConfig = %+v, want IMAGE,TEXT modalities", gotReq.GenerationConfig)
	}
	img, ok := resp.FirstInlineImage()
	if !ok || string(img.Data) != "first" || img.MIMEType != "image/png" {
		t.Errorf("FirstInlineImage() = %q %s %v, want first image/png", img.Data, img.MIMEType, ok)
	}
}

func TestProvider_GenerateContent_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr []error
	}{
		{
			name:    "api error body",
			status:  http.StatusBadRequest,
			body:    `{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`,
			wantErr: []error{provider.ErrRejected},
		},
		{
			name:    "forbidden without body",
			status:  http.StatusForbidden,
			body:    `denied`,
			wantErr: []error{provider.ErrRejected},
		},
		{
			name:    "rate limited",
			status:  http.StatusTooManyRequests,
			body:    `{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED"}}`,
			wantErr: []error{provider.ErrRemote},
		},
		{
			name:    "server error body",
			status:  http.StatusServiceUnavailable,
			body:    `{"error":{"code":503,"message":"overloaded","status":"UNAVAILABLE"}}`,
			wantErr: []error{provider.ErrRemote},
		},
		{
			name:    "non json error",
			status:  http.StatusBadGateway,
			body:    `<html>bad gateway</html>`,
			wantErr: []error{provider.ErrRemote},
		},
		{
			name:    "garbage 200",
			status:  http.StatusOK,
			body:    `not json`,
			wantErr: []error{provider.ErrInvalidResponse},
		},
		{
			name:    "blocked prompt",
			status:  http.StatusOK,
			body:    `{"promptFeedback":{"blockReason":"SAFETY"}}`,
			wantErr: []error{provider.ErrRemote, provider.ErrBlocked},
		},
		{
			name:    "bad inline data",
			status:  http.StatusOK,
			body:    `{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"image/png","data":"%%%"}}]}}]}`,
			wantErr: []error{provider.ErrInvalidResponse},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			req := models.NewContentRequest(models.DefaultTextModel, models.ModeText, models.TextPart("hi"))
			_, err := newTestProvider(t, server.URL).GenerateContent(context.Background(), req)
			for _, want := range tt.wantErr {
				if !errors.Is(err, want) {
					t.Errorf("GenerateContent() error = %v, want %v", err, want)
				}
			}
			if errors.Is(err, provider.ErrRejected) && errors.Is(err, provider.ErrRemote) {
				t.Errorf("GenerateContent() error = %v, rejected replies must not be retryable", err)
			}
		})
	}
}

func TestProvider_GenerateContent_RejectsBeforeSending(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)

	tests := []struct {
		name    string
		req     *models.ContentRequest
		wantErr error
	}{
		{
			name:    "unknown model",
			req:     models.NewContentRequest("gpt-image-1", models.ModeText, models.TextPart("hi")),
			wantErr: provider.ErrModelNotSupported,
		},
		{
			name:    "image from text model",
			req:     models.NewContentRequest(models.DefaultTextModel, models.ModeImage, models.TextPart("hi")),
			wantErr: models.ErrModeNotSupported,
		},
		{
			name:    "structured without schema",
			req:     models.NewContentRequest(models.DefaultTextModel, models.ModeStructured, models.TextPart("hi")),
			wantErr: models.ErrSchemaRequired,
		},
		{
			name: "inline image without mime",
			req: models.NewContentRequest(models.DefaultTextModel, models.ModeText,
				models.ImagePart(models.Image{Data: []byte{1}}), models.TextPart("hi")),
			wantErr: models.ErrMissingImageMIME,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.GenerateContent(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("GenerateContent() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
	if called {
		t.Error("server was called for an invalid request")
	}
}

func TestProvider_GenerateContent_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := models.NewContentRequest(models.DefaultTextModel, models.ModeText, models.TextPart("hi"))
	_, err := newTestProvider(t, server.URL).GenerateContent(ctx, req)
	if !errors.Is(err, provider.ErrRemote) {
		t.Errorf("GenerateContent() error = %v, want ErrRemote", err)
	}
}

func TestProvider_VerboseLogging(t *testing.T) {
	longData := strings.Repeat("A", 500)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"image/png","data":"` + longData + `"}}]}}]}`))
	}))
	defer server.Close()

	core, logs := observer.New(zapcore.DebugLevel)
	p, err := New(&provider.Config{APIKey: "secret-key", BaseURL: server.URL, Verbose: true},
		models.DefaultRegistry(), logger.FromZap(zap.New(core)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	req := models.NewContentRequest(models.DefaultImageModel, models.ModeImage, models.TextPart("draw"))
	if _, err := p.GenerateContent(context.Background(), req); err != nil {
		t.Fatalf("GenerateContent() error = %v", err)
	}

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("got %d log entries, want 2", len(entries))
	}
	for _, e := range entries {
		body, _ := e.ContextMap()["body"].(string)
		if strings.Contains(body, "secret-key") {
			t.Error("api key leaked into logs")
		}
		if strings.Contains(body, longData) {
			t.Error("base64 payload not truncated")
		}
	}
}

func TestTruncateBase64InJSON(t *testing.T) {
	long := strings.Repeat("x", 200)
	out := string(truncateBase64InJSON([]byte(`{"a":[{"inlineData":{"data":"` + long + `"}}],"text":"` + long + `"}`)))
	if strings.Count(out, long) != 1 {
		t.Errorf("only the data field should be truncated: %s", out)
	}
	if !strings.Contains(out, "[truncated]") {
		t.Errorf("missing truncation marker: %s", out)
	}

	if got := string(truncateBase64InJSON([]byte("plain"))); got != "plain" {
		t.Errorf("non-JSON body changed: %q", got)
	}
}
