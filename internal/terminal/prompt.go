package terminal

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	commandStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// Prompter reads answers from one input stream. The REPL and the command
// confirmation share it so neither buffers input meant for the other.
type Prompter struct {
	reader *bufio.Reader
	output io.Writer
}

// NewPrompter creates a Prompter; nil streams mean stdin and stdout.
func NewPrompter(input io.Reader, output io.Writer) *Prompter {
	if input == nil {
		input = os.Stdin
	}
	if output == nil {
		output = os.Stdout
	}
	return &Prompter{
		reader: bufio.NewReader(input),
		output: output,
	}
}

// ReadLine shows prompt and returns the next line without its newline.
// io.EOF is returned once input is exhausted.
func (p *Prompter) ReadLine(prompt string) (string, error) {
	fmt.Fprint(p.output, prompt)
	line, err := p.reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Confirm asks whether commandLine may run. It keeps asking until it gets
// y or n; end of input counts as no.
func (p *Prompter) Confirm(commandLine string) (bool, error) {
	fmt.Fprintf(p.output, "\n%s\n\n", warnStyle.Render("This command needs your approval"))
	fmt.Fprintf(p.output, "  %s\n\n", commandStyle.Render(commandLine))

	prompt := "[y] run  [n] skip\n> "
	for {
		line, err := p.ReadLine(prompt)
		if err == io.EOF {
			return false, nil
		}
		if err != nil {
			return false, err
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			fmt.Fprintln(p.output, "✓ approved")
			return true, nil
		case "n", "no", "s":
			fmt.Fprintln(p.output, "⊘ skipped")
			return false, nil
		default:
			prompt = "Please answer y or n: "
		}
	}
}
