package image

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"math"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/manash/roommood/pkg/models"
)

var (
	ErrInvalidTarget = errors.New("target dimensions must be positive")
	ErrDecode        = errors.New("failed to decode image")
)

// Dimensions returns the pixel size of an encoded image, reading only its header.
func Dimensions(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return cfg.Width, cfg.Height, nil
}

// Fit scales obj to fit inside a w×h box while keeping its aspect ratio, then
// centers it on a white w×h canvas. The result keeps the source format when it
// can be re-encoded (png, jpeg, gif); anything else comes back as png.
func Fit(obj models.Image, w, h int) (models.Image, error) {
	if w <= 0 || h <= 0 {
		return models.Image{}, ErrInvalidTarget
	}

	src, _, err := image.Decode(bytes.NewReader(obj.Data))
	if err != nil {
		return models.Image{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	sb := src.Bounds()
	if sb.Dx() == 0 || sb.Dy() == 0 {
		return models.Image{}, fmt.Errorf("%w: empty source bounds", ErrDecode)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(canvas, placement(sb.Dx(), sb.Dy(), w, h), src, sb, draw.Over, nil)

	mime := strings.ToLower(obj.MIMEType)
	var buf bytes.Buffer
	switch mime {
	case "image/jpeg", "image/jpg":
		mime = "image/jpeg"
		err = jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: 92})
	case "image/gif":
		err = gif.Encode(&buf, canvas, nil)
	default:
		mime = "image/png"
		err = png.Encode(&buf, canvas)
	}
	if err != nil {
		return models.Image{}, fmt.Errorf("failed to encode %s: %w", mime, err)
	}

	return models.Image{Data: buf.Bytes(), MIMEType: mime, Name: obj.Name}, nil
}

// placement returns the centered rectangle a srcW×srcH image occupies once
// scaled into a dstW×dstH box.
func placement(srcW, srcH, dstW, dstH int) image.Rectangle {
	scale := math.Min(float64(dstW)/float64(srcW), float64(dstH)/float64(srcH))
	nw := max(1, min(dstW, int(math.Round(float64(srcW)*scale))))
	nh := max(1, min(dstH, int(math.Round(float64(srcH)*scale))))
	x0 := (dstW - nw) / 2
	y0 := (dstH - nh) / 2
	return image.Rect(x0, y0, x0+nw, y0+nh)
}
