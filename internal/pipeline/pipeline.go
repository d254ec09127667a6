package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"golang.org/x/sync/errgroup"

	"github.com/manash/roommood/internal/image"
	"github.com/manash/roommood/internal/logger"
	"github.com/manash/roommood/internal/prompt"
	"github.com/manash/roommood/internal/provider"
	"github.com/manash/roommood/pkg/models"
)

const DefaultTimeout = 120 * time.Second

var (
	ErrMoodGeneration = errors.New("mood generation failed")
	ErrNothingToApply = errors.New("a refinement or at least one object is required")
	ErrNoBaseImage    = errors.New("no base image to composite onto")
)

// Fetcher loads an image referenced by URL, e.g. a mood placeholder.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (models.Image, error)
}

type Options struct {
	TextModel  string
	ImageModel string
	// Timeout bounds each remote call attempt. Zero means DefaultTimeout.
	Timeout time.Duration
	// Retries is the number of extra attempts after a remote failure.
	Retries int
	Logger  *logger.Logger
	Metrics *Metrics
	Fetcher Fetcher
}

type Pipeline struct {
	provider   provider.Provider
	textModel  string
	imageModel string
	timeout    time.Duration
	retries    int
	log        *logger.Logger
	metrics    *Metrics
	fetcher    Fetcher
}

func New(p provider.Provider, opts Options) *Pipeline {
	pl := &Pipeline{
		provider:   p,
		textModel:  opts.TextModel,
		imageModel: opts.ImageModel,
		timeout:    opts.Timeout,
		retries:    max(0, opts.Retries),
		log:        opts.Logger,
		metrics:    opts.Metrics,
		fetcher:    opts.Fetcher,
	}
	if pl.textModel == "" {
		pl.textModel = models.DefaultTextModel
	}
	if pl.imageModel == "" {
		pl.imageModel = models.DefaultImageModel
	}
	if pl.timeout <= 0 {
		pl.timeout = DefaultTimeout
	}
	if pl.log == nil {
		pl.log = logger.Nop()
	}
	if pl.metrics == nil {
		pl.metrics = NewMetrics()
	}
	return pl
}

func (p *Pipeline) Metrics() *Metrics {
	return p.metrics
}

// MoodResult is everything StartMoodGeneration produces. EmptyRoomImage is a
// data URL.
type MoodResult struct {
	Moods          []models.Mood
	EmptyRoomImage string
}

// ClassifyEmpty asks whether photo shows a room with nothing in it. Any
// failure propagates; there is no default answer.
func (p *Pipeline) ClassifyEmpty(ctx context.Context, photo models.Image) (bool, error) {
	req := models.NewContentRequest(p.textModel, models.ModeText,
		models.ImagePart(photo), models.TextPart(prompt.EmptyRoomQuestion()))

	resp, err := p.call(ctx, KindClassify, req)
	if err != nil {
		p.metrics.record(KindClassify, OutcomeError)
		return false, fmt.Errorf("classify room: %w", err)
	}
	p.metrics.record(KindClassify, OutcomeOK)

	answer := strings.ToLower(strings.TrimSpace(resp.Text()))
	return answer == "true", nil
}

// StartMoodGeneration classifies the photo, then generates the mood set and
// the empty-room image in parallel. Either branch failing fails the whole
// operation and nothing partial is returned.
func (p *Pipeline) StartMoodGeneration(ctx context.Context, photo models.Image, controls models.GenerationControls, reference *models.Image) (*MoodResult, error) {
	if err := photo.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMoodGeneration, err)
	}

	empty, err := p.ClassifyEmpty(ctx, photo)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMoodGeneration, err)
	}
	p.log.Debug("room classified", "empty", empty)

	var (
		moods     []models.Mood
		emptyRoom string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		moods, err = p.generateMoods(gctx, photo, controls, reference)
		return err
	})
	g.Go(func() error {
		if empty {
			emptyRoom = photo.DataURL()
			return nil
		}
		var err error
		emptyRoom, err = p.EmptyRoom(gctx, photo)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMoodGeneration, err)
	}

	return &MoodResult{Moods: moods, EmptyRoomImage: emptyRoom}, nil
}

func (p *Pipeline) generateMoods(ctx context.Context, photo models.Image, controls models.GenerationControls, reference *models.Image) ([]models.Mood, error) {
	parts := []models.Part{models.ImagePart(photo)}
	if reference != nil {
		parts = append(parts, models.ImagePart(*reference))
	}
	parts = append(parts, models.TextPart(prompt.MoodSet(controls, reference != nil)))

	var proposals []moodProposal
	if err := p.structured(ctx, KindMoods, moodSetSchema(), &proposals, parts...); err != nil {
		return nil, fmt.Errorf("mood proposals: %w", err)
	}
	if len(proposals) > models.MoodsPerGeneration {
		p.log.Warn("extra mood proposals dropped", "got", len(proposals), "kept", models.MoodsPerGeneration)
		proposals = proposals[:models.MoodsPerGeneration]
	}

	moods := make([]models.Mood, len(proposals))
	g, gctx := errgroup.WithContext(ctx)
	for i, prop := range proposals {
		g.Go(func() error {
			url, err := p.moodImage(gctx, photo, prop, controls)
			if err != nil {
				return fmt.Errorf("image for mood %q: %w", prop.Name, err)
			}
			moods[i] = models.Mood{Name: prop.Name, Description: prop.Description, ImageURL: url}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return moods, nil
}

// moodImage renders one proposal. A response without an image degrades to
// the placeholder for that mood name.
func (p *Pipeline) moodImage(ctx context.Context, photo models.Image, prop moodProposal, controls models.GenerationControls) (string, error) {
	req := models.NewContentRequest(p.imageModel, models.ModeImage,
		models.ImagePart(photo), models.TextPart(prompt.MoodImage(prop.Name, prop.Description, controls)))

	img, err := p.generateImage(ctx, KindMoodImage, req, OutcomePlaceholder)
	if errors.Is(err, provider.ErrNoImage) {
		p.log.Warn("mood image missing, using placeholder", "mood", prop.Name)
		return models.PlaceholderImageURL(prop.Name), nil
	}
	if err != nil {
		return "", err
	}
	return img.DataURL(), nil
}

// EmptyRoom asks for the photo with all furniture removed and returns it as a
// data URL.
func (p *Pipeline) EmptyRoom(ctx context.Context, photo models.Image) (string, error) {
	req := models.NewContentRequest(p.imageModel, models.ModeImage,
		models.ImagePart(photo), models.TextPart(prompt.Defurnish()))

	img, err := p.generateImage(ctx, KindEmptyRoom, req, OutcomeNoImage)
	if err != nil {
		return "", fmt.Errorf("empty room: %w", err)
	}
	return img.DataURL(), nil
}

// SuggestRefinements never fails; problems are logged and yield an empty list.
func (p *Pipeline) SuggestRefinements(ctx context.Context, mood models.Mood) []string {
	var out suggestionList
	if err := p.structured(ctx, KindSuggest, suggestionsSchema(), &out, models.TextPart(prompt.Suggestions(mood))); err != nil {
		p.log.Warn("refinement suggestions unavailable", "mood", mood.Name, "error", err)
		return []string{}
	}
	if out.Suggestions == nil {
		return []string{}
	}
	return out.Suggestions
}

// ApplyFinalComposite renders the refinement and/or objects onto baseImage,
// which is a data URL or a placeholder URL. The result is a data URL.
func (p *Pipeline) ApplyFinalComposite(ctx context.Context, baseImage, refinement string, objects []models.Image) (string, error) {
	hasRefinement := strings.TrimSpace(refinement) != ""
	if !hasRefinement && len(objects) == 0 {
		return "", ErrNothingToApply
	}

	base, err := p.resolveBase(ctx, baseImage)
	if err != nil {
		return "", err
	}

	parts := []models.Part{
		models.ImagePart(base),
		models.TextPart(prompt.Composite(refinement, len(objects) > 0)),
	}
	for _, obj := range p.prepareObjects(base, objects) {
		parts = append(parts, models.ImagePart(obj))
	}

	req := models.NewContentRequest(p.imageModel, models.ModeImage, parts...)
	img, err := p.generateImage(ctx, KindComposite, req, OutcomeNoImage)
	if err != nil {
		return "", fmt.Errorf("final composite: %w", err)
	}
	return img.DataURL(), nil
}

func (p *Pipeline) resolveBase(ctx context.Context, baseImage string) (models.Image, error) {
	switch {
	case strings.TrimSpace(baseImage) == "":
		return models.Image{}, ErrNoBaseImage
	case models.IsDataURL(baseImage):
		img, err := models.ImageFromDataURL(baseImage, "room")
		if err != nil {
			return models.Image{}, fmt.Errorf("%w: %w", ErrNoBaseImage, err)
		}
		return img, nil
	case p.fetcher == nil:
		return models.Image{}, fmt.Errorf("%w: cannot fetch %s", ErrNoBaseImage, baseImage)
	default:
		img, err := p.fetcher.Fetch(ctx, baseImage)
		if err != nil {
			return models.Image{}, fmt.Errorf("%w: %w", ErrNoBaseImage, err)
		}
		return img, nil
	}
}

// prepareObjects fits every object to the base image's size. If the base or
// any object cannot be decoded, all objects are sent as they were.
func (p *Pipeline) prepareObjects(base models.Image, objects []models.Image) []models.Image {
	if len(objects) == 0 {
		return nil
	}
	w, h, err := image.Dimensions(base.Data)
	if err != nil {
		p.log.Warn("base image unreadable, sending objects unresized", "error", err)
		return objects
	}
	return p.fitObjects(w, h, objects)
}

func (p *Pipeline) fitObjects(w, h int, objects []models.Image) []models.Image {
	if w <= 0 || h <= 0 {
		return objects
	}
	fitted := make([]models.Image, 0, len(objects))
	for _, obj := range objects {
		f, err := image.Fit(obj, w, h)
		if err != nil {
			p.log.Warn("object resize failed, sending objects unresized", "object", obj.Name, "error", err)
			return objects
		}
		fitted = append(fitted, f)
	}
	return fitted
}

// generateImage makes an image-mode call and extracts the first inline image.
// missing is the outcome recorded when the response has none.
func (p *Pipeline) generateImage(ctx context.Context, kind string, req *models.ContentRequest, missing string) (models.Image, error) {
	resp, err := p.call(ctx, kind, req)
	if err != nil {
		p.metrics.record(kind, OutcomeError)
		return models.Image{}, err
	}
	img, ok := resp.FirstInlineImage()
	if !ok {
		p.metrics.record(kind, missing)
		return models.Image{}, provider.ErrNoImage
	}
	if img.MIMEType == "" {
		img.MIMEType = models.FormatPNG.MIMEType()
	}
	p.metrics.record(kind, OutcomeOK)
	return img, nil
}

func (p *Pipeline) structured(ctx context.Context, kind string, schema *openapi3.Schema, out any, parts ...models.Part) error {
	req := models.NewContentRequest(p.textModel, models.ModeStructured, parts...)
	req.Schema = schema

	resp, err := p.call(ctx, kind, req)
	if err == nil {
		err = decodeStructured(resp.Text(), schema, out)
	}
	if err != nil {
		p.metrics.record(kind, OutcomeError)
		return err
	}
	p.metrics.record(kind, OutcomeOK)
	return nil
}

// call performs one logical remote call: each attempt gets its own timeout,
// and remote failures are retried up to p.retries times.
func (p *Pipeline) call(ctx context.Context, kind string, req *models.ContentRequest) (*models.ContentResponse, error) {
	start := time.Now()
	defer func() { p.metrics.observe(kind, time.Since(start)) }()

	var (
		resp *models.ContentResponse
		err  error
	)
	for attempt := 0; attempt <= p.retries; attempt++ {
		if attempt > 0 {
			p.log.Warn("retrying remote call", "kind", kind, "attempt", attempt, "error", err)
		}
		resp, err = p.attempt(ctx, req)
		if err == nil || !retryable(ctx, err) {
			break
		}
	}
	if err != nil {
		p.log.Debug("remote call failed", "kind", kind, "model", req.Model, "error", err)
		return nil, err
	}
	return resp, nil
}

func (p *Pipeline) attempt(ctx context.Context, req *models.ContentRequest) (*models.ContentResponse, error) {
	cctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.provider.GenerateContent(cctx, req)
	if err != nil {
		if ctx.Err() == nil && errors.Is(cctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: timed out after %s", provider.ErrRemote, p.timeout)
		}
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: empty response", provider.ErrInvalidResponse)
	}
	return resp, nil
}

func retryable(ctx context.Context, err error) bool {
	return ctx.Err() == nil && errors.Is(err, provider.ErrRemote) && !errors.Is(err, provider.ErrBlocked)
}
