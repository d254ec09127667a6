package image

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/manash/roommood/internal/security"
	"github.com/manash/roommood/pkg/models"
)

// FallbackFilename is the download stem used when a project has no usable title.
const FallbackFilename = "vibe_mood_result"

// maxFetchBytes bounds a fetched placeholder image.
const maxFetchBytes = 20 << 20

var ErrNoImageData = errors.New("no image data available")

// Saver writes final images to disk and fetches remote images referenced by URL.
type Saver struct {
	httpClient *http.Client
}

func NewSaver() *Saver {
	return &Saver{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// FinalFilename derives the download name for a final image: the title with
// spaces replaced by underscores, plus an extension taken from the data URL's
// MIME type.
func FinalFilename(title, dataURL string) string {
	stem := security.SanitizeFilename(title)
	if stem == "" {
		stem = FallbackFilename
	}
	return stem + "." + models.ExtensionForMIME(models.DataURLMIME(dataURL))
}

// SaveFinal decodes a final-image data URL and writes it into dir. It returns
// the written path.
func (s *Saver) SaveFinal(ctx context.Context, dataURL, dir, title string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if dataURL == "" {
		return "", ErrNoImageData
	}
	_, data, err := models.ParseDataURL(dataURL)
	if err != nil {
		return "", fmt.Errorf("failed to decode final image: %w", err)
	}
	if len(data) == 0 {
		return "", ErrNoImageData
	}

	name := FinalFilename(title, dataURL)
	if err := security.ValidateFilename(name); err != nil {
		return "", fmt.Errorf("invalid download name %q: %w", name, err)
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return path, nil
}

// Fetch downloads a remote image (a mood placeholder) so it can be sent back
// to the generation service as inline data.
func (s *Saver) Fetch(ctx context.Context, rawURL string) (models.Image, error) {
	if err := security.ValidateImageURL(rawURL, true); err != nil {
		return models.Image{}, fmt.Errorf("refusing to fetch image: %w", err)
	}

	data, mime, err := s.downloadFromURL(ctx, rawURL)
	if err != nil {
		return models.Image{}, fmt.Errorf("failed to download image: %w", err)
	}
	if len(data) == 0 {
		return models.Image{}, ErrNoImageData
	}
	if mime == "" || !strings.HasPrefix(mime, "image/") {
		mime = http.DetectContentType(data)
	}
	return models.Image{Data: data, MIMEType: mime, Name: filepath.Base(rawURL)}, nil
}

func (s *Saver) downloadFromURL(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, "", err
	}
	mime, _, _ := strings.Cut(resp.Header.Get("Content-Type"), ";")
	return data, strings.TrimSpace(mime), nil
}
