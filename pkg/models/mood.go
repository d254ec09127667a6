package models

import (
	"net/url"
	"slices"
	"strings"
	"time"
)

const (
	FurnitureModeName        = "Furnitures Mode"
	FurnitureModeDescription = "Start with a blank canvas and furnish your room from scratch."

	MoodsPerGeneration = 3
)

// GenerationControls are the user toggles that become constraint clauses in
// every generation prompt.
type GenerationControls struct {
	AllowPaintChanges bool `json:"allowPaintChanges" yaml:"allow_paint_changes"`
	AllowFloorChanges bool `json:"allowFloorChanges" yaml:"allow_floor_changes"`
	RemoveFurniture   bool `json:"removeFurniture" yaml:"remove_furniture"`
}

func DefaultControls() GenerationControls {
	return GenerationControls{
		AllowPaintChanges: true,
		AllowFloorChanges: true,
		RemoveFurniture:   true,
	}
}

type Mood struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl"`
}

// PlaceholderImageURL is the deterministic stand-in used when the remote
// service returns no image for a mood.
func PlaceholderImageURL(moodName string) string {
	seed := strings.ReplaceAll(url.QueryEscape(moodName), "+", "%20")
	return "https://picsum.photos/seed/" + seed + "/512/512"
}

type SelectionKind int

const (
	SelectionNone SelectionKind = iota
	SelectionProposed
	SelectionEmptyCanvas
)

func (k SelectionKind) String() string {
	switch k {
	case SelectionProposed:
		return "proposed"
	case SelectionEmptyCanvas:
		return "empty-canvas"
	default:
		return "none"
	}
}

// MoodSelection is either one of the proposed moods or the empty-canvas
// (furniture mode) option built from the emptied room image.
type MoodSelection struct {
	Kind SelectionKind
	Mood Mood
}

func ProposedSelection(m Mood) MoodSelection {
	return MoodSelection{Kind: SelectionProposed, Mood: m}
}

func EmptyCanvasSelection(emptyRoomImage string) MoodSelection {
	return MoodSelection{
		Kind: SelectionEmptyCanvas,
		Mood: Mood{
			Name:        FurnitureModeName,
			Description: FurnitureModeDescription,
			ImageURL:    emptyRoomImage,
		},
	}
}

func (s MoodSelection) IsSet() bool {
	return s.Kind != SelectionNone
}

func (s MoodSelection) IsFurnitureMode() bool {
	return s.Kind == SelectionEmptyCanvas
}

// SavedMood is an immutable snapshot of a completed session.
type SavedMood struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	OriginalImage Image     `json:"originalImage"`
	FinalImage    string    `json:"finalImage"`
	MoodName      string    `json:"moodName"`
	Refinements   []string  `json:"refinements"`
	AddedObjects  []Image   `json:"addedObjects"`
	CreatedAt     time.Time `json:"createdAt,omitzero"`
}

// Clone returns a deep copy so callers can never alias stored records.
func (s SavedMood) Clone() SavedMood {
	c := s
	c.OriginalImage = s.OriginalImage.Clone()
	c.Refinements = slices.Clone(s.Refinements)
	c.AddedObjects = CloneImages(s.AddedObjects)
	return c
}
