package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/manash/roommood/internal/image"
	"github.com/manash/roommood/internal/workflow"
	"github.com/manash/roommood/pkg/models"
)

type Command interface {
	Name() string
	Aliases() []string
	Description() string
	Usage() string
	Execute(ctx context.Context, r *REPL, args []string) error
}

func allCommands() []Command {
	return []Command{
		&UploadCommand{},
		&ReferenceCommand{},
		&ControlsCommand{},
		&GenerateCommand{},
		&MoodsCommand{},
		&SelectCommand{},
		&SuggestionsCommand{},
		&UseCommand{},
		&RefineCommand{},
		&ObjectCommand{},
		&MakeCommand{},
		&BackCommand{},
		&TitleCommand{},
		&SaveCommand{},
		&SavedCommand{},
		&LoadCommand{},
		&DownloadCommand{},
		&ShowCommand{},
		&RestartCommand{},
		&StatusCommand{},
		&StatsCommand{},
		&HelpCommand{},
		&QuitCommand{},
	}
}

func (r *REPL) registerCommands() {
	for _, cmd := range allCommands() {
		r.commands[cmd.Name()] = cmd
		for _, alias := range cmd.Aliases() {
			r.commands[alias] = cmd
		}
	}
}

// UploadCommand sets the room photo
type UploadCommand struct{}

func (c *UploadCommand) Name() string        { return "upload" }
func (c *UploadCommand) Aliases() []string   { return []string{"photo"} }
func (c *UploadCommand) Description() string { return "Upload the room photo to redesign" }
func (c *UploadCommand) Usage() string       { return "upload <path>" }

func (c *UploadCommand) Execute(_ context.Context, r *REPL, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s", c.Usage())
	}
	img, err := image.LoadFile(args[0])
	if err != nil {
		return err
	}
	if err := r.machine.Upload(img); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Photo uploaded: %s (%s)\n", img.Name, img.MIMEType)
	return nil
}

// ReferenceCommand sets or clears the reference mood image
type ReferenceCommand struct{}

func (c *ReferenceCommand) Name() string        { return "reference" }
func (c *ReferenceCommand) Aliases() []string   { return []string{"ref"} }
func (c *ReferenceCommand) Description() string { return "Set a reference mood image, or clear it" }
func (c *ReferenceCommand) Usage() string       { return "reference <path>|clear" }

func (c *ReferenceCommand) Execute(_ context.Context, r *REPL, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s", c.Usage())
	}
	if strings.EqualFold(args[0], "clear") {
		if err := r.machine.SetReference(nil); err != nil {
			return err
		}
		fmt.Fprintln(r.out, "Reference mood cleared")
		return nil
	}

	img, err := image.LoadFile(args[0])
	if err != nil {
		return err
	}
	if err := r.machine.SetReference(&img); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Reference mood set: %s\n", img.Name)
	return nil
}

// ControlsCommand shows or toggles the generation controls
type ControlsCommand struct{}

func (c *ControlsCommand) Name() string        { return "controls" }
func (c *ControlsCommand) Aliases() []string   { return []string{"ctl"} }
func (c *ControlsCommand) Description() string { return "Show or toggle what the redesign may change" }
func (c *ControlsCommand) Usage() string       { return "controls [paint|floor|furniture on|off]" }

func (c *ControlsCommand) Execute(_ context.Context, r *REPL, args []string) error {
	controls := r.machine.Snapshot().Controls
	if len(args) == 0 {
		writeControls(r.out, controls)
		return nil
	}
	if len(args) != 2 {
		return fmt.Errorf("usage: %s", c.Usage())
	}

	var on bool
	switch strings.ToLower(args[1]) {
	case "on", "yes", "true":
		on = true
	case "off", "no", "false":
	default:
		return fmt.Errorf("expected on or off, got %q", args[1])
	}

	switch strings.ToLower(args[0]) {
	case "paint":
		controls.AllowPaintChanges = on
	case "floor":
		controls.AllowFloorChanges = on
	case "furniture":
		controls.RemoveFurniture = on
	default:
		return fmt.Errorf("unknown control %q (paint, floor, furniture)", args[0])
	}

	if err := r.machine.SetControls(controls); err != nil {
		return err
	}
	writeControls(r.out, controls)
	return nil
}

func writeControls(w io.Writer, c models.GenerationControls) {
	fmt.Fprintf(w, "  paint      %s\n", onOff(c.AllowPaintChanges))
	fmt.Fprintf(w, "  floor      %s\n", onOff(c.AllowFloorChanges))
	fmt.Fprintf(w, "  furniture  %s\n", onOff(c.RemoveFurniture))
}

// GenerateCommand proposes moods for the uploaded photo
type GenerateCommand struct{}

func (c *GenerateCommand) Name() string        { return "generate" }
func (c *GenerateCommand) Aliases() []string   { return []string{"gen", "g"} }
func (c *GenerateCommand) Description() string { return "Generate mood proposals for the photo" }
func (c *GenerateCommand) Usage() string       { return "generate" }

func (c *GenerateCommand) Execute(ctx context.Context, r *REPL, _ []string) error {
	fmt.Fprintln(r.out, "Generating moods...")
	if err := r.failure(r.machine.GenerateMoods(ctx)); err != nil {
		return err
	}
	writeMoods(r.out, r.machine.Snapshot())
	return nil
}

// MoodsCommand lists the proposed moods
type MoodsCommand struct{}

func (c *MoodsCommand) Name() string        { return "moods" }
func (c *MoodsCommand) Aliases() []string   { return []string{"ls"} }
func (c *MoodsCommand) Description() string { return "List the proposed moods" }
func (c *MoodsCommand) Usage() string       { return "moods" }

func (c *MoodsCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	s := r.machine.Snapshot()
	if len(s.Moods) == 0 {
		fmt.Fprintln(r.out, "No moods yet - use 'generate' first")
		return nil
	}
	writeMoods(r.out, s)
	return nil
}

func writeMoods(w io.Writer, s workflow.Session) {
	for i, m := range s.Moods {
		fmt.Fprintf(w, "  [%d] %s - %s%s\n", i+1, m.Name, m.Description, placeholderNote(m.ImageURL))
	}
	if s.EmptyRoomImage != "" {
		fmt.Fprintf(w, "  [f] %s - %s\n", models.FurnitureModeName, models.FurnitureModeDescription)
	}
}

// SelectCommand picks a mood to refine
type SelectCommand struct{}

func (c *SelectCommand) Name() string        { return "select" }
func (c *SelectCommand) Aliases() []string   { return []string{"pick"} }
func (c *SelectCommand) Description() string { return "Select a mood, or furniture mode for an empty room" }
func (c *SelectCommand) Usage() string       { return "select <n>|furniture" }

func (c *SelectCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s", c.Usage())
	}

	switch strings.ToLower(args[0]) {
	case "furniture", "f":
		if err := r.machine.SelectFurnitureMode(); err != nil {
			return err
		}
		fmt.Fprintln(r.out, "Furniture mode: describe what to add or attach object photos")
		return nil
	}

	n, err := parseIndex(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(r.out, "Loading refinement ideas...")
	if err := r.machine.SelectMood(ctx, n); err != nil {
		return err
	}
	s := r.machine.Snapshot()
	fmt.Fprintf(r.out, "Selected: %s\n", s.Selection.Mood.Name)
	writeSuggestions(r.out, s.Suggestions)
	return nil
}

// SuggestionsCommand lists refinement ideas
type SuggestionsCommand struct{}

func (c *SuggestionsCommand) Name() string        { return "suggestions" }
func (c *SuggestionsCommand) Aliases() []string   { return []string{"ideas"} }
func (c *SuggestionsCommand) Description() string { return "List refinement suggestions for the selected mood" }
func (c *SuggestionsCommand) Usage() string       { return "suggestions" }

func (c *SuggestionsCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	writeSuggestions(r.out, r.machine.Snapshot().Suggestions)
	return nil
}

func writeSuggestions(w io.Writer, suggestions []string) {
	if len(suggestions) == 0 {
		fmt.Fprintln(w, "No suggestions")
		return
	}
	fmt.Fprintln(w, "Suggestions:")
	for i, s := range suggestions {
		fmt.Fprintf(w, "  [%d] %s\n", i+1, s)
	}
}

// UseCommand copies a suggestion into the refinement prompt
type UseCommand struct{}

func (c *UseCommand) Name() string        { return "use" }
func (c *UseCommand) Aliases() []string   { return nil }
func (c *UseCommand) Description() string { return "Use a suggestion as the refinement" }
func (c *UseCommand) Usage() string       { return "use <n>" }

func (c *UseCommand) Execute(_ context.Context, r *REPL, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s", c.Usage())
	}
	n, err := parseIndex(args[0])
	if err != nil {
		return err
	}
	if err := r.machine.UseSuggestion(n); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Refinement: %s\n", r.machine.Snapshot().RefinementPrompt)
	return nil
}

// RefineCommand sets the refinement prompt
type RefineCommand struct{}

func (c *RefineCommand) Name() string        { return "refine" }
func (c *RefineCommand) Aliases() []string   { return []string{"r"} }
func (c *RefineCommand) Description() string { return "Describe a change to apply to the mood" }
func (c *RefineCommand) Usage() string       { return "refine <text>" }

func (c *RefineCommand) Execute(_ context.Context, r *REPL, args []string) error {
	if len(args) == 0 {
		prompt := r.machine.Snapshot().RefinementPrompt
		if prompt == "" {
			prompt = "(none)"
		}
		fmt.Fprintf(r.out, "Refinement: %s\n", prompt)
		return nil
	}
	text := strings.Join(args, " ")
	if err := r.machine.SetRefinement(text); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Refinement: %s\n", text)
	return nil
}

// ObjectCommand manages object photos to composite into the room
type ObjectCommand struct{}

func (c *ObjectCommand) Name() string        { return "object" }
func (c *ObjectCommand) Aliases() []string   { return []string{"obj"} }
func (c *ObjectCommand) Description() string { return "Add, remove or list object photos to place in the room" }
func (c *ObjectCommand) Usage() string       { return "object add <paths...>|rm <n>|list" }

func (c *ObjectCommand) Execute(_ context.Context, r *REPL, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: %s", c.Usage())
	}

	switch strings.ToLower(args[0]) {
	case "add":
		if len(args) < 2 {
			return fmt.Errorf("usage: object add <paths...>")
		}
		objects := make([]models.Image, 0, len(args)-1)
		for _, path := range args[1:] {
			img, err := image.LoadFile(path)
			if err != nil {
				return err
			}
			objects = append(objects, img)
		}
		if err := r.machine.AddObjects(objects...); err != nil {
			return err
		}
		fmt.Fprintf(r.out, "Added %d object(s)\n", len(objects))
		return nil
	case "rm", "remove":
		if len(args) != 2 {
			return fmt.Errorf("usage: object rm <n>")
		}
		n, err := parseIndex(args[1])
		if err != nil {
			return err
		}
		return r.machine.RemoveObject(n)
	case "list", "ls":
		objects := r.machine.Snapshot().Objects
		if len(objects) == 0 {
			fmt.Fprintln(r.out, "No objects")
			return nil
		}
		for i, obj := range objects {
			fmt.Fprintf(r.out, "  [%d] %s (%s)\n", i+1, obj.Name, obj.MIMEType)
		}
		return nil
	default:
		return fmt.Errorf("unknown object command: %s", args[0])
	}
}

// MakeCommand produces the final image
type MakeCommand struct{}

func (c *MakeCommand) Name() string        { return "make" }
func (c *MakeCommand) Aliases() []string   { return []string{"apply"} }
func (c *MakeCommand) Description() string { return "Apply the refinement and objects to the mood" }
func (c *MakeCommand) Usage() string       { return "make" }

func (c *MakeCommand) Execute(ctx context.Context, r *REPL, _ []string) error {
	fmt.Fprintln(r.out, "Creating the final image...")
	if err := r.failure(r.machine.MakeItHappen(ctx)); err != nil {
		return err
	}
	s := r.machine.Snapshot()
	fmt.Fprintf(r.out, "Final image ready: %s\n", s.Title)
	if r.displayer != nil {
		if err := r.displayer.Show(ctx, s.FinalImage); err != nil {
			fmt.Fprintf(r.err, "Warning: failed to display: %v\n", err)
		}
	}
	return nil
}

// BackCommand navigates to an earlier step
type BackCommand struct{}

func (c *BackCommand) Name() string        { return "back" }
func (c *BackCommand) Aliases() []string   { return []string{"b"} }
func (c *BackCommand) Description() string { return "Go back to an earlier step" }
func (c *BackCommand) Usage() string       { return "back upload|moods|refine" }

func (c *BackCommand) Execute(_ context.Context, r *REPL, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s", c.Usage())
	}
	target, err := workflow.ParseBackTarget(args[0])
	if err != nil {
		return err
	}
	if err := r.machine.Back(target); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Back at %s\n", target)
	return nil
}

// TitleCommand names the project
type TitleCommand struct{}

func (c *TitleCommand) Name() string        { return "title" }
func (c *TitleCommand) Aliases() []string   { return []string{"name"} }
func (c *TitleCommand) Description() string { return "Show or set the project title" }
func (c *TitleCommand) Usage() string       { return "title [text]" }

func (c *TitleCommand) Execute(_ context.Context, r *REPL, args []string) error {
	if len(args) == 0 {
		fmt.Fprintf(r.out, "Title: %s\n", r.machine.Snapshot().Title)
		return nil
	}
	title := strings.Join(args, " ")
	if err := r.machine.SetTitle(title); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Title: %s\n", title)
	return nil
}

// SaveCommand stores the finished mood
type SaveCommand struct{}

func (c *SaveCommand) Name() string        { return "save" }
func (c *SaveCommand) Aliases() []string   { return []string{"s"} }
func (c *SaveCommand) Description() string { return "Save the finished mood" }
func (c *SaveCommand) Usage() string       { return "save" }

func (c *SaveCommand) Execute(ctx context.Context, r *REPL, _ []string) error {
	rec, err := r.machine.Save(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Saved %q (%s)\n", rec.Title, shortID(rec.ID))
	return nil
}

// SavedCommand lists saved moods
type SavedCommand struct{}

func (c *SavedCommand) Name() string        { return "saved" }
func (c *SavedCommand) Aliases() []string   { return []string{"list"} }
func (c *SavedCommand) Description() string { return "List saved moods, newest first" }
func (c *SavedCommand) Usage() string       { return "saved" }

func (c *SavedCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	WriteSavedList(r.out, r.machine.SavedMoods())
	return nil
}

// WriteSavedList prints saved moods as a table.
func WriteSavedList(w io.Writer, moods []models.SavedMood) {
	if len(moods) == 0 {
		fmt.Fprintln(w, "No saved moods")
		return
	}

	fmt.Fprintf(w, "%-8s  %-24s  %-20s  %s\n", "ID", "Title", "Mood", "Created")
	fmt.Fprintln(w, strings.Repeat("-", 72))
	for _, m := range moods {
		created := ""
		if !m.CreatedAt.IsZero() {
			created = m.CreatedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%-8s  %-24s  %-20s  %s\n", shortID(m.ID), truncate(m.Title, 24), truncate(m.MoodName, 20), created)
	}
}

// LoadCommand reopens a saved mood
type LoadCommand struct{}

func (c *LoadCommand) Name() string        { return "load" }
func (c *LoadCommand) Aliases() []string   { return []string{"open"} }
func (c *LoadCommand) Description() string { return "Open a saved mood by id or id prefix" }
func (c *LoadCommand) Usage() string       { return "load <id>" }

func (c *LoadCommand) Execute(_ context.Context, r *REPL, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s", c.Usage())
	}
	rec, err := FindSaved(r.machine.SavedMoods(), args[0])
	if err != nil {
		return err
	}
	if err := r.machine.Load(rec.ID); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Loaded %q (%s)\n", rec.Title, rec.MoodName)
	return nil
}

// FindSaved resolves an id or unique id prefix.
func FindSaved(moods []models.SavedMood, id string) (models.SavedMood, error) {
	var found []models.SavedMood
	for _, m := range moods {
		if m.ID == id {
			return m, nil
		}
		if strings.HasPrefix(m.ID, id) {
			found = append(found, m)
		}
	}
	switch len(found) {
	case 0:
		return models.SavedMood{}, fmt.Errorf("%w: %s", workflow.ErrUnknownSaved, id)
	case 1:
		return found[0], nil
	default:
		return models.SavedMood{}, fmt.Errorf("id prefix %q matches %d saved moods", id, len(found))
	}
}

// DownloadCommand writes the final image to disk
type DownloadCommand struct{}

func (c *DownloadCommand) Name() string        { return "download" }
func (c *DownloadCommand) Aliases() []string   { return []string{"dl"} }
func (c *DownloadCommand) Description() string { return "Write the final image to a directory" }
func (c *DownloadCommand) Usage() string       { return "download [dir]" }

func (c *DownloadCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	s := r.machine.Snapshot()
	if s.FinalImage == "" {
		return errors.New("no final image yet - use 'make' first")
	}
	dir := r.downloadDir
	if len(args) > 0 {
		dir = args[0]
	}
	path, err := r.saver.SaveFinal(ctx, s.FinalImage, dir, s.Title)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Downloaded: %s\n", path)
	return nil
}

// ShowCommand displays one of the session's images
type ShowCommand struct{}

func (c *ShowCommand) Name() string        { return "show" }
func (c *ShowCommand) Aliases() []string   { return []string{"view"} }
func (c *ShowCommand) Description() string { return "Display an image in supported terminals" }
func (c *ShowCommand) Usage() string       { return "show [photo|reference|empty|final|<n>]" }

func (c *ShowCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	if r.displayer == nil {
		return errors.New("this terminal cannot display images")
	}
	s := r.machine.Snapshot()

	target := "final"
	if len(args) > 0 {
		target = strings.ToLower(args[0])
	}
	switch target {
	case "photo":
		return r.displayer.ShowImage(s.Photo)
	case "reference", "ref":
		if s.Reference == nil {
			return errors.New("no reference mood set")
		}
		return r.displayer.ShowImage(*s.Reference)
	case "empty":
		return r.displayer.Show(ctx, s.EmptyRoomImage)
	case "final":
		return r.displayer.Show(ctx, s.FinalImage)
	}

	n, err := parseIndex(target)
	if err != nil {
		return err
	}
	if n >= len(s.Moods) {
		return fmt.Errorf("%w: mood %d", workflow.ErrInvalidIndex, n+1)
	}
	return r.displayer.Show(ctx, s.Moods[n].ImageURL)
}

// RestartCommand starts a new project after a finished one
type RestartCommand struct{}

func (c *RestartCommand) Name() string        { return "restart" }
func (c *RestartCommand) Aliases() []string   { return []string{"new"} }
func (c *RestartCommand) Description() string { return "Start over with a new photo" }
func (c *RestartCommand) Usage() string       { return "restart" }

func (c *RestartCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	if err := r.machine.Restart(); err != nil {
		return err
	}
	fmt.Fprintln(r.out, "Started a new project")
	return nil
}

// StatusCommand summarizes the session
type StatusCommand struct{}

func (c *StatusCommand) Name() string        { return "status" }
func (c *StatusCommand) Aliases() []string   { return []string{"st"} }
func (c *StatusCommand) Description() string { return "Show where the project stands" }
func (c *StatusCommand) Usage() string       { return "status" }

func (c *StatusCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	s := r.machine.Snapshot()

	fmt.Fprintf(r.out, "Step:       %d/4 (%s)\n", s.Stage.Step()+1, s.Stage)
	if s.HasPhoto() {
		fmt.Fprintf(r.out, "Photo:      %s\n", s.Photo.Name)
	}
	if s.Reference != nil {
		fmt.Fprintf(r.out, "Reference:  %s\n", s.Reference.Name)
	}
	if len(s.Moods) > 0 {
		fmt.Fprintf(r.out, "Moods:      %d\n", len(s.Moods))
	}
	if s.Selection.IsSet() {
		fmt.Fprintf(r.out, "Selected:   %s\n", s.Selection.Mood.Name)
	}
	if s.RefinementPrompt != "" {
		fmt.Fprintf(r.out, "Refinement: %s\n", s.RefinementPrompt)
	}
	if len(s.History) > 0 {
		fmt.Fprintf(r.out, "Applied:    %s\n", strings.Join(s.History, "; "))
	}
	if len(s.Objects) > 0 {
		fmt.Fprintf(r.out, "Objects:    %d\n", len(s.Objects))
	}
	if s.Title != "" {
		saved := ""
		if s.Saved {
			saved = " (saved)"
		}
		fmt.Fprintf(r.out, "Title:      %s%s\n", s.Title, saved)
	}
	if s.Error != "" {
		fmt.Fprintf(r.out, "Last error: %s\n", s.Error)
	}
	return nil
}

// StatsCommand shows remote call counts for this run
type StatsCommand struct{}

func (c *StatsCommand) Name() string        { return "stats" }
func (c *StatsCommand) Aliases() []string   { return nil }
func (c *StatsCommand) Description() string { return "Show remote call counts for this run" }
func (c *StatsCommand) Usage() string       { return "stats" }

func (c *StatsCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	if r.metrics == nil {
		fmt.Fprintln(r.out, "No stats available")
		return nil
	}
	stats, err := r.metrics.Stats()
	if err != nil {
		return err
	}
	if len(stats) == 0 {
		fmt.Fprintln(r.out, "No remote calls yet")
		return nil
	}

	fmt.Fprintf(r.out, "%-12s  %-12s  %s\n", "Call", "Outcome", "Count")
	fmt.Fprintln(r.out, strings.Repeat("-", 35))
	for _, s := range stats {
		fmt.Fprintf(r.out, "%-12s  %-12s  %d\n", s.Kind, s.Outcome, s.Count)
	}
	return nil
}

// HelpCommand shows available commands
type HelpCommand struct{}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Aliases() []string   { return []string{"?"} }
func (c *HelpCommand) Description() string { return "Show available commands" }
func (c *HelpCommand) Usage() string       { return "help" }

func (c *HelpCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	fmt.Fprintln(r.out, "Available commands:")
	fmt.Fprintln(r.out)

	for _, cmd := range allCommands() {
		aliases := ""
		if len(cmd.Aliases()) > 0 {
			aliases = fmt.Sprintf(" (%s)", strings.Join(cmd.Aliases(), ", "))
		}
		fmt.Fprintf(r.out, "  %-20s%s\n", cmd.Name()+aliases, cmd.Description())
		fmt.Fprintf(r.out, "                      Usage: %s\n", cmd.Usage())
	}

	return nil
}

// QuitCommand exits the REPL
type QuitCommand struct{}

func (c *QuitCommand) Name() string        { return "quit" }
func (c *QuitCommand) Aliases() []string   { return []string{"exit", "q"} }
func (c *QuitCommand) Description() string { return "Exit interactive mode" }
func (c *QuitCommand) Usage() string       { return "quit" }

func (c *QuitCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	fmt.Fprintln(r.out, "Goodbye!")
	r.Stop()
	return nil
}

// parseIndex converts a one-based index typed by the user to zero-based.
func parseIndex(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %q", workflow.ErrInvalidIndex, s)
	}
	return n - 1, nil
}

func placeholderNote(imageURL string) string {
	if models.IsDataURL(imageURL) {
		return ""
	}
	return " (placeholder image)"
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
