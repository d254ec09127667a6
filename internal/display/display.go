package display

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/manash/roommood/internal/image"
	"github.com/manash/roommood/pkg/models"
)

// DefaultColumns keeps previews small enough to sit beside the shell output.
const DefaultColumns = 40

var ErrNothingToShow = errors.New("no image to show")

// Fetcher resolves a remote image reference such as a placeholder URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (models.Image, error)
}

type Displayer struct {
	out     io.Writer
	fetcher Fetcher
	columns int
}

func New(out io.Writer, fetcher Fetcher) *Displayer {
	return &Displayer{out: out, fetcher: fetcher, columns: DefaultColumns}
}

// Show renders an image reference: a data URL, or a remote URL fetched first.
func (d *Displayer) Show(ctx context.Context, src string) error {
	if src == "" {
		return ErrNothingToShow
	}
	if models.IsDataURL(src) {
		img, err := models.ImageFromDataURL(src, "")
		if err != nil {
			return err
		}
		return d.ShowImage(img)
	}
	if d.fetcher == nil {
		return fmt.Errorf("cannot fetch %s", src)
	}
	img, err := d.fetcher.Fetch(ctx, src)
	if err != nil {
		return err
	}
	return d.ShowImage(img)
}

func (d *Displayer) ShowImage(img models.Image) error {
	if img.IsZero() {
		return ErrNothingToShow
	}
	png, err := image.ToPNG(img.Data)
	if err != nil {
		return err
	}
	if err := NewKittyEncoder(d.out, d.columns).Encode(png); err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}
	fmt.Fprintln(d.out)
	return nil
}

func IsTerminalSupported() bool {
	termProgram := strings.ToLower(os.Getenv("TERM_PROGRAM"))
	supportedPrograms := []string{"kitty", "ghostty", "iterm.app", "wezterm"}

	for _, prog := range supportedPrograms {
		if termProgram == prog {
			return true
		}
	}

	if os.Getenv("KITTY_WINDOW_ID") != "" {
		return true
	}

	if os.Getenv("ITERM_SESSION_ID") != "" {
		return true
	}

	term := strings.ToLower(os.Getenv("TERM"))
	return strings.Contains(term, "kitty") || strings.Contains(term, "ghostty")
}
