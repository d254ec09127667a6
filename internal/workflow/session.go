package workflow

import (
	"fmt"
	"slices"
	"strings"

	"github.com/manash/roommood/pkg/models"
)

type Stage int

const (
	StageUpload Stage = iota
	StageGeneratingMoods
	StageMoodsResult
	StageRefiningMood
	StageRefineResult
	StageGeneratingFinalImage
	StageFinalResult
)

var stageNames = map[Stage]string{
	StageUpload:               "upload",
	StageGeneratingMoods:      "generating-moods",
	StageMoodsResult:          "moods",
	StageRefiningMood:         "refining-mood",
	StageRefineResult:         "refine",
	StageGeneratingFinalImage: "generating-final-image",
	StageFinalResult:          "final",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Step is the stage's position in the four-step progress indicator. Loading
// stages share the step of the result they lead to.
func (s Stage) Step() int {
	switch s {
	case StageUpload:
		return 0
	case StageGeneratingMoods, StageMoodsResult:
		return 1
	case StageRefiningMood, StageRefineResult, StageGeneratingFinalImage:
		return 2
	case StageFinalResult:
		return 3
	default:
		return -1
	}
}

// Loading reports whether a remote operation is in flight for this stage.
func (s Stage) Loading() bool {
	return s == StageGeneratingMoods || s == StageRefiningMood || s == StageGeneratingFinalImage
}

// ParseBackTarget maps a user-facing name onto a stage that can be navigated
// back to.
func ParseBackTarget(name string) (Stage, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "upload":
		return StageUpload, nil
	case "moods", "mood":
		return StageMoodsResult, nil
	case "refine", "refinement":
		return StageRefineResult, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidTarget, name)
	}
}

// Session is the single mutable aggregate of one redesign project.
type Session struct {
	Stage     Stage
	Photo     models.Image
	Reference *models.Image
	Controls  models.GenerationControls

	Moods          []models.Mood
	EmptyRoomImage string
	Selection      models.MoodSelection

	Suggestions      []string
	RefinementPrompt string
	History          []string
	Objects          []models.Image

	FinalImage string
	Title      string
	Saved      bool
	Error      string

	// Epoch changes whenever navigation makes in-flight results irrelevant.
	Epoch uint64
}

func NewSession() Session {
	return Session{
		Stage:    StageUpload,
		Controls: models.DefaultControls(),
	}
}

func (s Session) Loading() bool {
	return s.Stage.Loading()
}

func (s Session) HasPhoto() bool {
	return !s.Photo.IsZero()
}

// Clone returns a copy that shares no slices or image bytes with s.
func (s Session) Clone() Session {
	c := s
	c.Photo = s.Photo.Clone()
	if s.Reference != nil {
		ref := s.Reference.Clone()
		c.Reference = &ref
	}
	c.Moods = slices.Clone(s.Moods)
	c.Suggestions = slices.Clone(s.Suggestions)
	c.History = slices.Clone(s.History)
	c.Objects = models.CloneImages(s.Objects)
	return c
}
