package image

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/manash/roommood/pkg/models"
)

// maxUploadBytes bounds a photo read from disk.
const maxUploadBytes = 20 << 20

var (
	ErrNotImage = errors.New("file is not an image")
	ErrTooLarge = errors.New("image file is too large")
)

// LoadFile reads a local image for upload. The MIME type is sniffed from the
// content, not the extension.
func LoadFile(path string) (models.Image, error) {
	info, err := os.Stat(path)
	if err != nil {
		return models.Image{}, err
	}
	if info.IsDir() {
		return models.Image{}, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > maxUploadBytes {
		return models.Image{}, fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, filepath.Base(path), info.Size())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return models.Image{}, err
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return models.Image{}, fmt.Errorf("%w: %s (%s)", ErrNotImage, filepath.Base(path), mime)
	}
	return models.Image{Data: data, MIMEType: mime, Name: filepath.Base(path)}, nil
}

// ToPNG re-encodes any decodable image as png. Data that is already png is
// returned as is.
func ToPNG(data []byte) ([]byte, error) {
	if http.DetectContentType(data) == "image/png" {
		return data, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
