package terminal

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/qpg-app/qpg/internal/core"
)

// ReplyRenderer turns an engine reply into terminal output: the model's
// message followed by what became of its command. The zero value prints
// plain text.
type ReplyRenderer struct {
	markdown *glamour.TermRenderer
}

// NewReplyRenderer renders replies as markdown wrapped at width.
func NewReplyRenderer(width int) (*ReplyRenderer, error) {
	term, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	return &ReplyRenderer{markdown: term}, nil
}

// Render formats reply. A nil renderer, or markdown that fails to render,
// falls back to plain text.
func (r *ReplyRenderer) Render(reply *core.Reply) string {
	if r == nil || r.markdown == nil {
		return plainReply(reply)
	}
	out, err := r.markdown.Render(markdownReply(reply))
	if err != nil {
		return plainReply(reply)
	}
	return out
}

type outcome struct {
	mark     string
	describe func(command string) string
	output   string
}

func outcomeOf(reply *core.Reply) (outcome, bool) {
	if reply.Command == "" {
		return outcome{}, false
	}
	switch {
	case reply.Executed && reply.Result.Succeeded():
		return outcome{mark: "✓", describe: func(command string) string {
			return "ran " + command
		}}, true
	case reply.Executed:
		return outcome{mark: "✗", describe: func(command string) string {
			return fmt.Sprintf("%s exited with %d", command, reply.Result.ExitCode)
		}, output: strings.TrimSpace(reply.Result.Output)}, true
	case reply.TaskID != "":
		return outcome{mark: "⋯", describe: func(command string) string {
			return "queued " + command + " as task " + reply.TaskID + "; review it with `qpg tasks`"
		}}, true
	default:
		return outcome{mark: "⊘", describe: func(command string) string {
			return "did not run " + command + ": " + reply.Rejected
		}}, true
	}
}

func plainReply(reply *core.Reply) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(reply.Message, "\n") + "\n")

	o, ok := outcomeOf(reply)
	if !ok {
		return b.String()
	}
	b.WriteString("\n" + o.mark + " " + o.describe(commandStyle.Render(reply.Command)) + "\n")
	if o.output != "" {
		b.WriteString(subtleStyle.Render(o.output) + "\n")
	}
	return b.String()
}

func markdownReply(reply *core.Reply) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(reply.Message) + "\n")

	o, ok := outcomeOf(reply)
	if !ok {
		return b.String()
	}
	b.WriteString("\n" + o.mark + " " + o.describe("`"+reply.Command+"`") + "\n")
	if o.output != "" {
		b.WriteString("\n```\n" + o.output + "\n```\n")
	}
	return b.String()
}
