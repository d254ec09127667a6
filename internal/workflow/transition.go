package workflow

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/manash/roommood/internal/pipeline"
	"github.com/manash/roommood/pkg/models"
)

// Messages shown to the user when an operation fails.
const (
	MsgMoodGenerationFailed = "Could not generate moods. Please try again."
	MsgFinalImageFailed     = "Could not create the final image. Please try again."
	MsgNothingToApply       = "Please describe a refinement or add at least one object."
)

var (
	ErrBusy          = errors.New("a generation is in progress")
	ErrNoPhoto       = errors.New("upload a room photo first")
	ErrWrongStage    = errors.New("not allowed at this stage")
	ErrInvalidIndex  = errors.New("index out of range")
	ErrInvalidTarget = errors.New("cannot navigate back to that stage")
	ErrAlreadySaved  = errors.New("this mood is already saved")
	ErrUnknownEvent  = errors.New("unknown event")
)

// Event is an input to Transition.
type Event interface {
	eventName() string
}

type (
	UploadPhoto          struct{ Photo models.Image }
	SetReferenceMood     struct{ Image models.Image }
	ClearReferenceMood   struct{}
	SetControls          struct{ Controls models.GenerationControls }
	BeginMoodGeneration  struct{}
	MoodGenerationFailed struct{}
	SelectMood           struct{ Index int }
	SelectFurnitureMode  struct{}
	SuggestionsLoaded    struct{ Suggestions []string }
	SetRefinementPrompt  struct{ Text string }
	UseSuggestion        struct{ Index int }
	AddObjects           struct{ Objects []models.Image }
	RemoveObject         struct{ Index int }
	BeginFinalImage      struct{}
	FinalImageGenerated  struct{ Image string }
	FinalImageFailed     struct{}
	NavigateBack         struct{ Target Stage }
	Restart              struct{}
	SetTitle             struct{ Title string }
	MarkSaved            struct{}
	LoadSaved            struct{ Mood models.SavedMood }
	SetError             struct{ Message string }
)

type MoodsGenerated struct {
	Moods          []models.Mood
	EmptyRoomImage string
}

func (UploadPhoto) eventName() string          { return "upload-photo" }
func (SetReferenceMood) eventName() string     { return "set-reference-mood" }
func (ClearReferenceMood) eventName() string   { return "clear-reference-mood" }
func (SetControls) eventName() string          { return "set-controls" }
func (BeginMoodGeneration) eventName() string  { return "begin-mood-generation" }
func (MoodsGenerated) eventName() string       { return "moods-generated" }
func (MoodGenerationFailed) eventName() string { return "mood-generation-failed" }
func (SelectMood) eventName() string           { return "select-mood" }
func (SelectFurnitureMode) eventName() string  { return "select-furniture-mode" }
func (SuggestionsLoaded) eventName() string    { return "suggestions-loaded" }
func (SetRefinementPrompt) eventName() string  { return "set-refinement-prompt" }
func (UseSuggestion) eventName() string        { return "use-suggestion" }
func (AddObjects) eventName() string           { return "add-objects" }
func (RemoveObject) eventName() string         { return "remove-object" }
func (BeginFinalImage) eventName() string      { return "begin-final-image" }
func (FinalImageGenerated) eventName() string  { return "final-image-generated" }
func (FinalImageFailed) eventName() string     { return "final-image-failed" }
func (NavigateBack) eventName() string         { return "navigate-back" }
func (Restart) eventName() string              { return "restart" }
func (SetTitle) eventName() string             { return "set-title" }
func (MarkSaved) eventName() string            { return "mark-saved" }
func (LoadSaved) eventName() string            { return "load-saved" }
func (SetError) eventName() string             { return "set-error" }

// Transition applies e to s and returns the resulting session. s is never
// modified. On error the returned session is s unchanged, except for
// rejections that surface a message to the user, which come back with Error
// set.
func Transition(s Session, e Event) (Session, error) {
	next := s.Clone()

	switch ev := e.(type) {
	case UploadPhoto:
		if err := requireIdle(s, StageUpload); err != nil {
			return s, err
		}
		if err := ev.Photo.Validate(); err != nil {
			return s, err
		}
		next.Photo = ev.Photo.Clone()
		next.Error = ""

	case SetReferenceMood:
		if err := requireIdle(s, StageUpload); err != nil {
			return s, err
		}
		if err := ev.Image.Validate(); err != nil {
			return s, err
		}
		ref := ev.Image.Clone()
		next.Reference = &ref

	case ClearReferenceMood:
		if err := requireIdle(s, StageUpload); err != nil {
			return s, err
		}
		next.Reference = nil

	case SetControls:
		if s.Loading() {
			return s, ErrBusy
		}
		next.Controls = ev.Controls

	case BeginMoodGeneration:
		if err := requireIdle(s, StageUpload); err != nil {
			return s, err
		}
		if !s.HasPhoto() {
			return s, ErrNoPhoto
		}
		next.Stage = StageGeneratingMoods
		next.Error = ""

	case MoodsGenerated:
		if s.Stage != StageGeneratingMoods {
			return s, wrongStage(e, s)
		}
		next.Stage = StageMoodsResult
		next.Moods = slices.Clone(ev.Moods)
		next.EmptyRoomImage = ev.EmptyRoomImage

	case MoodGenerationFailed:
		if s.Stage != StageGeneratingMoods {
			return s, wrongStage(e, s)
		}
		next.Stage = StageUpload
		next.Error = MsgMoodGenerationFailed

	case SelectMood:
		if s.Stage != StageMoodsResult {
			return s, wrongStage(e, s)
		}
		if ev.Index < 0 || ev.Index >= len(s.Moods) {
			return s, fmt.Errorf("%w: mood %d", ErrInvalidIndex, ev.Index+1)
		}
		next.Stage = StageRefiningMood
		next.Selection = models.ProposedSelection(s.Moods[ev.Index])
		next.Suggestions = nil
		next.Error = ""

	case SelectFurnitureMode:
		if s.Stage != StageMoodsResult {
			return s, wrongStage(e, s)
		}
		if s.EmptyRoomImage == "" {
			return s, fmt.Errorf("%w: no empty room image", ErrWrongStage)
		}
		next.Stage = StageRefineResult
		next.Selection = models.EmptyCanvasSelection(s.EmptyRoomImage)
		next.Suggestions = []string{}
		next.Error = ""

	case SuggestionsLoaded:
		if s.Stage != StageRefiningMood {
			return s, wrongStage(e, s)
		}
		next.Stage = StageRefineResult
		next.Suggestions = slices.Clone(ev.Suggestions)
		if next.Suggestions == nil {
			next.Suggestions = []string{}
		}

	case SetRefinementPrompt:
		if err := requireIdle(s, StageRefineResult); err != nil {
			return s, err
		}
		next.RefinementPrompt = ev.Text

	case UseSuggestion:
		if err := requireIdle(s, StageRefineResult); err != nil {
			return s, err
		}
		if ev.Index < 0 || ev.Index >= len(s.Suggestions) {
			return s, fmt.Errorf("%w: suggestion %d", ErrInvalidIndex, ev.Index+1)
		}
		next.RefinementPrompt = s.Suggestions[ev.Index]

	case AddObjects:
		if err := requireIdle(s, StageRefineResult); err != nil {
			return s, err
		}
		for _, obj := range ev.Objects {
			if err := obj.Validate(); err != nil {
				return s, fmt.Errorf("object %q: %w", obj.Name, err)
			}
		}
		next.Objects = append(next.Objects, models.CloneImages(ev.Objects)...)

	case RemoveObject:
		if err := requireIdle(s, StageRefineResult); err != nil {
			return s, err
		}
		if ev.Index < 0 || ev.Index >= len(s.Objects) {
			return s, fmt.Errorf("%w: object %d", ErrInvalidIndex, ev.Index+1)
		}
		next.Objects = slices.Delete(next.Objects, ev.Index, ev.Index+1)

	case BeginFinalImage:
		if err := requireIdle(s, StageRefineResult); err != nil {
			return s, err
		}
		if strings.TrimSpace(s.RefinementPrompt) == "" && len(s.Objects) == 0 {
			next = s.Clone()
			next.Error = MsgNothingToApply
			return next, pipeline.ErrNothingToApply
		}
		next.Stage = StageGeneratingFinalImage
		next.Error = ""

	case FinalImageGenerated:
		if s.Stage != StageGeneratingFinalImage {
			return s, wrongStage(e, s)
		}
		next.Stage = StageFinalResult
		next.FinalImage = ev.Image
		if r := strings.TrimSpace(s.RefinementPrompt); r != "" {
			next.History = append(next.History, r)
		}
		next.RefinementPrompt = ""
		next.Saved = false
		if strings.TrimSpace(next.Title) == "" {
			next.Title = s.Selection.Mood.Name + " Vibe"
		}

	case FinalImageFailed:
		if s.Stage != StageGeneratingFinalImage {
			return s, wrongStage(e, s)
		}
		next.Stage = StageRefineResult
		next.Error = MsgFinalImageFailed

	case NavigateBack:
		if err := checkBackTarget(s, ev.Target); err != nil {
			return s, err
		}
		navigateBack(&next, ev.Target)

	case Restart:
		if s.Stage != StageFinalResult {
			return s, wrongStage(e, s)
		}
		next = NewSession()
		next.Epoch = s.Epoch + 1

	case SetTitle:
		next.Title = ev.Title
		next.Saved = false

	case MarkSaved:
		if s.Stage != StageFinalResult {
			return s, wrongStage(e, s)
		}
		if s.Saved {
			return s, ErrAlreadySaved
		}
		next.Saved = true
		next.Error = ""

	case LoadSaved:
		loaded := NewSession()
		loaded.Stage = StageFinalResult
		loaded.Controls = s.Controls
		loaded.Photo = ev.Mood.OriginalImage.Clone()
		loaded.FinalImage = ev.Mood.FinalImage
		// The saved final image is the base for any further refinement.
		if ev.Mood.MoodName == models.FurnitureModeName {
			loaded.Selection = models.EmptyCanvasSelection(ev.Mood.FinalImage)
		} else {
			loaded.Selection = models.ProposedSelection(models.Mood{Name: ev.Mood.MoodName, ImageURL: ev.Mood.FinalImage})
		}
		loaded.Title = ev.Mood.Title
		loaded.History = slices.Clone(ev.Mood.Refinements)
		loaded.Objects = models.CloneImages(ev.Mood.AddedObjects)
		loaded.Saved = true
		loaded.Epoch = s.Epoch + 1
		next = loaded

	case SetError:
		next.Error = ev.Message

	default:
		return s, fmt.Errorf("%w: %T", ErrUnknownEvent, e)
	}

	return next, nil
}

func requireIdle(s Session, stage Stage) error {
	if s.Loading() {
		return ErrBusy
	}
	if s.Stage != stage {
		return fmt.Errorf("%w: currently at %s", ErrWrongStage, s.Stage)
	}
	return nil
}

func wrongStage(e Event, s Session) error {
	return fmt.Errorf("%w: %s during %s", ErrWrongStage, e.eventName(), s.Stage)
}

func checkBackTarget(s Session, target Stage) error {
	switch target {
	case StageUpload, StageMoodsResult, StageRefineResult:
	default:
		return fmt.Errorf("%w: %s", ErrInvalidTarget, target)
	}
	if target.Step() >= s.Stage.Step() {
		return fmt.Errorf("%w: %s is not behind %s", ErrInvalidTarget, target, s.Stage)
	}
	if target == StageMoodsResult && len(s.Moods) == 0 {
		return fmt.Errorf("%w: no moods to go back to", ErrInvalidTarget)
	}
	if target == StageRefineResult && !s.Selection.IsSet() {
		return fmt.Errorf("%w: no mood selected", ErrInvalidTarget)
	}
	if target == StageRefineResult && s.Selection.Mood.ImageURL == "" {
		return fmt.Errorf("%w: selected mood has no image to refine", ErrInvalidTarget)
	}
	return nil
}

// navigateBack clears everything produced after target and invalidates any
// work still in flight.
func navigateBack(s *Session, target Stage) {
	switch target {
	case StageUpload:
		s.Moods = nil
		s.EmptyRoomImage = ""
		s.Title = ""
		clearSelection(s)
	case StageMoodsResult:
		clearSelection(s)
	case StageRefineResult:
		s.FinalImage = ""
		s.Saved = false
	}
	s.Stage = target
	s.Error = ""
	s.Epoch++
}

func clearSelection(s *Session) {
	s.Selection = models.MoodSelection{}
	s.RefinementPrompt = ""
	s.History = nil
	s.Suggestions = nil
	s.Objects = nil
	s.FinalImage = ""
	s.Saved = false
}
