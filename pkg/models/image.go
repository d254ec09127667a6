package models

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Image is a captured binary image: an uploaded room photo, a reference mood
// or an object photo. It is treated as immutable once captured.
type Image struct {
	Data     []byte
	MIMEType string
	Name     string
}

type imageJSON struct {
	Base64   string `json:"base64"`
	MIMEType string `json:"mimeType"`
	Name     string `json:"name"`
}

func (i Image) MarshalJSON() ([]byte, error) {
	return json.Marshal(imageJSON{
		Base64:   base64.StdEncoding.EncodeToString(i.Data),
		MIMEType: i.MIMEType,
		Name:     i.Name,
	})
}

func (i *Image) UnmarshalJSON(b []byte) error {
	var raw imageJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	data, err := base64.StdEncoding.DecodeString(raw.Base64)
	if err != nil {
		return fmt.Errorf("failed to decode image %q: %w", raw.Name, err)
	}
	i.Data = data
	i.MIMEType = raw.MIMEType
	i.Name = raw.Name
	return nil
}

func (i Image) IsZero() bool {
	return len(i.Data) == 0
}

func (i Image) Validate() error {
	if len(i.Data) == 0 {
		return ErrEmptyImage
	}
	if i.MIMEType == "" {
		return ErrMissingImageMIME
	}
	return nil
}

// Clone returns a copy that shares no storage with i.
func (i Image) Clone() Image {
	c := i
	if i.Data != nil {
		c.Data = append([]byte(nil), i.Data...)
	}
	return c
}

// DataURL renders the image as a base64 data URL.
func (i Image) DataURL() string {
	return DataURL(i.MIMEType, i.Data)
}

func CloneImages(images []Image) []Image {
	if images == nil {
		return nil
	}
	out := make([]Image, len(images))
	for idx, img := range images {
		out[idx] = img.Clone()
	}
	return out
}

func DataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func IsDataURL(s string) bool {
	return strings.HasPrefix(s, "data:")
}

// ParseDataURL splits a base64 data URL into its MIME type and decoded bytes.
// A missing MIME type defaults to image/png.
func ParseDataURL(s string) (string, []byte, error) {
	if !IsDataURL(s) {
		return "", nil, ErrInvalidDataURL
	}
	header, payload, ok := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing payload separator", ErrInvalidDataURL)
	}
	if !strings.HasSuffix(header, ";base64") {
		return "", nil, fmt.Errorf("%w: payload is not base64", ErrInvalidDataURL)
	}
	mime := strings.TrimSuffix(header, ";base64")
	if mime == "" {
		mime = FormatPNG.MIMEType()
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	return mime, data, nil
}

// DataURLMIME returns the MIME type embedded in a data URL prefix, or
// image/png when the prefix carries none.
func DataURLMIME(s string) string {
	if !IsDataURL(s) {
		return FormatPNG.MIMEType()
	}
	header, _, _ := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	mime, _, _ := strings.Cut(header, ";")
	if !strings.Contains(mime, "/") {
		return FormatPNG.MIMEType()
	}
	return mime
}

func ImageFromDataURL(s, name string) (Image, error) {
	mime, data, err := ParseDataURL(s)
	if err != nil {
		return Image{}, err
	}
	return Image{Data: data, MIMEType: mime, Name: name}, nil
}
