// Package prompt builds every instruction text sent to the generative
// service, including the constraint clauses derived from GenerationControls.
package prompt

import (
	"fmt"
	"strings"

	"github.com/manash/roommood/pkg/models"
)

const (
	ConstraintPreamble = "It is critical to adhere to these constraints: "

	PaintAllowed    = "You can change wall colors and textures."
	PaintPreserved  = "You must preserve the original wall colors and textures."
	FloorAllowed    = "You can change the flooring."
	FloorPreserved  = "You must preserve the original flooring."
	RemoveFurniture = "You must remove all existing furniture."
	KeepFurniture   = "You must keep the existing furniture, potentially altering its style to fit the new mood."

	// AddDecor always follows KeepFurniture: keeping the furniture means the
	// mood has to be carried by added decor instead.
	AddDecor = "To better illustrate the new mood, you should also add a few small, complementary decorative items or furniture pieces like plants, lamps, rugs, or a side table."
)

// Clauses returns the three constraint directives in fixed order: paint,
// floor, furniture.
func Clauses(c models.GenerationControls) []string {
	clauses := make([]string, 0, 3)

	if c.AllowPaintChanges {
		clauses = append(clauses, PaintAllowed)
	} else {
		clauses = append(clauses, PaintPreserved)
	}

	if c.AllowFloorChanges {
		clauses = append(clauses, FloorAllowed)
	} else {
		clauses = append(clauses, FloorPreserved)
	}

	if c.RemoveFurniture {
		clauses = append(clauses, RemoveFurniture)
	} else {
		clauses = append(clauses, KeepFurniture+" "+AddDecor)
	}

	return clauses
}

func Constraints(c models.GenerationControls) string {
	return ConstraintPreamble + strings.Join(Clauses(c), " ")
}

const emptyRoomQuestion = "Is this image of an empty room with no furniture or significant objects inside? " +
	"Answer with only the word 'true' if it's empty, or 'false' if it contains furniture or other items."

func EmptyRoomQuestion() string {
	return emptyRoomQuestion
}

func MoodSet(c models.GenerationControls, withReference bool) string {
	if withReference {
		return fmt.Sprintf("The first image is a room. The second is a reference mood. "+
			"Generate %d distinct mood variations for the room based *only* on the style, colors, and atmosphere of the reference mood. %s",
			models.MoodsPerGeneration, Constraints(c))
	}
	return fmt.Sprintf("Based on the attached image of a room, generate %d distinct and creative new interior design mood suggestions. %s",
		models.MoodsPerGeneration, Constraints(c))
}

func MoodImage(name, description string, c models.GenerationControls) string {
	return fmt.Sprintf("Transform this room to embody a '%s: %s' mood. "+
		"Preserve the original room's architecture and dimensions. %s "+
		"It is essential to furnish the room with appropriate, stylish furniture and accessories that match the mood, making it look functional and inviting. "+
		"If the original room is empty, you must add furniture. Focus on creating a complete and inspiring scene.",
		name, description, Constraints(c))
}

const defurnish = "Remove all furniture and objects from this room. " +
	"It is critical to preserve the original room's architecture, dimensions, walls, windows, doors, and flooring. " +
	"The room should look completely empty and ready for new furniture."

func Defurnish() string {
	return defurnish
}

func Suggestions(m models.Mood) string {
	return fmt.Sprintf("For an interior with a '%s: %s' style, suggest 3 actionable and creative refinement ideas. "+
		"Frame them as suggestions. For example: \"I would suggest you go for a berber carpet and a big mirror.\" "+
		"or \"How about adding some pampas grass in a ceramic vase?\".",
		m.Name, m.Description)
}

const integrateObjects = "Then, seamlessly integrate the following objects into the room. " +
	"For each object, remove its background and place it realistically, respecting the room's perspective, lighting, scale, and style."

// Composite builds the instruction for the final image. The refinement clause
// is included only when refinement is non-blank and the integration clause
// only when there are objects to place.
func Composite(refinement string, hasObjects bool) string {
	var b strings.Builder
	b.WriteString("This is the room. ")
	if r := strings.TrimSpace(refinement); r != "" {
		fmt.Fprintf(&b, "First, apply this refinement: %q. ", r)
	}
	if hasObjects {
		b.WriteString(integrateObjects)
	}
	return b.String()
}
