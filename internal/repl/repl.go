package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/manash/roommood/internal/display"
	"github.com/manash/roommood/internal/image"
	"github.com/manash/roommood/internal/logger"
	"github.com/manash/roommood/internal/pipeline"
	"github.com/manash/roommood/internal/workflow"
)

type REPL struct {
	in          io.Reader
	out         io.Writer
	err         io.Writer
	machine     *workflow.Machine
	saver       *image.Saver
	displayer   *display.Displayer
	metrics     *pipeline.Metrics
	log         *logger.Logger
	downloadDir string
	commands    map[string]Command
	running     bool
	interactive bool
}

type Config struct {
	In          io.Reader
	Out         io.Writer
	Err         io.Writer
	Machine     *workflow.Machine
	Saver       *image.Saver
	Displayer   *display.Displayer // nil when the terminal cannot show images
	Metrics     *pipeline.Metrics
	Logger      *logger.Logger
	DownloadDir string
}

func New(cfg *Config) *REPL {
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	saver := cfg.Saver
	if saver == nil {
		saver = image.NewSaver()
	}
	r := &REPL{
		in:          cfg.In,
		out:         cfg.Out,
		err:         cfg.Err,
		machine:     cfg.Machine,
		saver:       saver,
		displayer:   cfg.Displayer,
		metrics:     cfg.Metrics,
		log:         log,
		downloadDir: cfg.DownloadDir,
		commands:    make(map[string]Command),
		interactive: isTerminal(cfg.In),
	}
	r.registerCommands()
	return r
}

func (r *REPL) Run(ctx context.Context) error {
	r.running = true
	r.printWelcome()

	scanner := bufio.NewScanner(r.in)
	for r.running {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.printPrompt()
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if err := r.execute(ctx, line); err != nil {
			fmt.Fprintf(r.err, "Error: %v\n", err)
		}
	}

	return scanner.Err()
}

func (r *REPL) execute(ctx context.Context, line string) error {
	parts := parseCommand(line)
	if len(parts) == 0 {
		return nil
	}

	cmdName := strings.ToLower(parts[0])
	args := parts[1:]

	cmd, ok := r.commands[cmdName]
	if !ok {
		return fmt.Errorf("unknown command: %s (type 'help' for available commands)", cmdName)
	}

	return cmd.Execute(ctx, r, args)
}

func (r *REPL) Stop() {
	r.running = false
}

// failure turns the error from a generation step into what the user sees:
// the session's message when the step left one, with the cause logged.
func (r *REPL) failure(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, workflow.ErrStale) {
		return err
	}
	if msg := r.machine.Snapshot().Error; msg != "" {
		r.log.Warn("generation step failed", "error", err)
		return errors.New(msg)
	}
	return err
}

func (r *REPL) printWelcome() {
	fmt.Fprintln(r.out, "roommood interactive mode")
	fmt.Fprintln(r.out, "Upload a room photo to begin. Type 'help' for commands, 'quit' to exit.")
	fmt.Fprintln(r.out)
}

func (r *REPL) printPrompt() {
	if !r.interactive {
		return
	}
	s := r.machine.Snapshot()
	fmt.Fprintf(r.out, "roommood [%d/4 %s]> ", s.Stage.Step()+1, s.Stage)
}

func isTerminal(in io.Reader) bool {
	if f, ok := in.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}

func parseCommand(line string) []string {
	var parts []string
	var current strings.Builder
	inQuotes := false
	quoteChar := rune(0)

	for _, ch := range line {
		switch {
		case ch == '"' || ch == '\'':
			if inQuotes && ch == quoteChar {
				inQuotes = false
				quoteChar = 0
			} else if !inQuotes {
				inQuotes = true
				quoteChar = ch
			} else {
				current.WriteRune(ch)
			}
		case ch == ' ' && !inQuotes:
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(ch)
		}
	}

	if current.Len() > 0 {
		parts = append(parts, current.String())
	}

	return parts
}
