package terminal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/qpg-app/qpg/internal/core"
	"github.com/qpg-app/qpg/internal/preferences"
)

// ErrUserExit signals that the user asked to leave the REPL
var ErrUserExit = errors.New("user requested exit")

// Processor runs prompts and owns chat history. *core.Engine implements it.
type Processor interface {
	Process(ctx context.Context, req core.Request) (*core.Reply, error)
	EndChat(chatID string)
}

// REPL is the interactive chat loop
type REPL struct {
	engine      Processor
	prompter    *Prompter
	output      io.Writer
	renderer    *ReplyRenderer
	preferences func() *preferences.Set
	chatID      string
	turns       int
}

// NewREPL creates a REPL that starts a fresh chat
func NewREPL(engine Processor, prompter *Prompter, output io.Writer) *REPL {
	return &REPL{
		engine:   engine,
		prompter: prompter,
		output:   output,
		chatID:   uuid.New().String(),
	}
}

// SetRenderer enables markdown rendering of replies
func (r *REPL) SetRenderer(renderer *ReplyRenderer) {
	r.renderer = renderer
}

// SetPreferences sets the source shown by /prefs
func (r *REPL) SetPreferences(source func() *preferences.Set) {
	r.preferences = source
}

// ChatID returns the id of the current chat
func (r *REPL) ChatID() string {
	return r.chatID
}

// Run reads prompts until /exit or end of input
func (r *REPL) Run(ctx context.Context) error {
	for {
		input, err := r.prompter.ReadLine("› ")
		if err == io.EOF {
			fmt.Fprintln(r.output)
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		if err := r.ProcessInput(ctx, input); err != nil {
			if errors.Is(err, ErrUserExit) {
				return nil
			}
			fmt.Fprintln(r.output, errorStyle.Render("Error: "+err.Error()))
		}
		fmt.Fprintln(r.output)
	}
}

// ProcessInput handles one line of input
func (r *REPL) ProcessInput(ctx context.Context, input string) error {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}

	if strings.HasPrefix(input, "/") {
		shouldExit, err := r.HandleCommand(input)
		if err != nil {
			return err
		}
		if shouldExit {
			return ErrUserExit
		}
		return nil
	}

	fmt.Fprint(r.output, subtleStyle.Render("thinking..."))
	reply, err := r.engine.Process(ctx, core.Request{ChatID: r.chatID, Prompt: input})
	fmt.Fprint(r.output, "\r\033[K")
	if err != nil {
		return err
	}

	r.turns++
	fmt.Fprint(r.output, r.renderer.Render(reply))
	return nil
}

// HandleCommand runs a slash command and reports whether to exit
func (r *REPL) HandleCommand(cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return false, nil
	}

	switch parts[0] {
	case "/exit", "/quit":
		r.DisplayExitSummary()
		return true, nil

	case "/help":
		r.DisplayHelp()
		return false, nil

	case "/clear":
		fmt.Fprint(r.output, "\033[H\033[2J")
		return false, nil

	case "/new":
		r.engine.EndChat(r.chatID)
		r.chatID = uuid.New().String()
		r.turns = 0
		fmt.Fprintln(r.output, "✓ started a new chat")
		return false, nil

	case "/prefs":
		return false, r.DisplayPreferences()

	default:
		fmt.Fprintf(r.output, "Unknown command: %s\n", parts[0])
		return false, nil
	}
}

// DisplayHelp shows the available commands
func (r *REPL) DisplayHelp() {
	fmt.Fprint(r.output, `
Commands:
  /help          show this help
  /new           start a new chat
  /prefs         show the preferences for this desktop
  /clear         clear the screen
  /exit, /quit   leave
`)
}

// DisplayPreferences prints the environment-filtered preferences
func (r *REPL) DisplayPreferences() error {
	var set *preferences.Set
	if r.preferences != nil {
		set = r.preferences()
	}
	if set == nil {
		fmt.Fprintln(r.output, "Preferences are loaded with the first prompt.")
		return nil
	}

	data, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	fmt.Fprintln(r.output, string(data))
	return nil
}

// DisplayExitSummary shows what happened in this chat
func (r *REPL) DisplayExitSummary() {
	fmt.Fprintf(r.output, "Chat %s ended after %d turn(s)\n", r.chatID, r.turns)
}
