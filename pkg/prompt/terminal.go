// Package prompt is the interactive terminal front end of the console.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"localcloud/pkg/menu"
)

// Terminal implements menu.Prompter on a TTY.
type Terminal struct {
	in  *os.File
	out io.Writer
}

var _ menu.Prompter = (*Terminal)(nil)

// NewTerminal reads keys from in and draws on out.
func NewTerminal(in *os.File, out io.Writer) *Terminal {
	return &Terminal{in: in, out: out}
}

// Interactive reports whether in is a terminal.
func (t *Terminal) Interactive() bool {
	return term.IsTerminal(int(t.in.Fd()))
}

func (t *Terminal) run(ctx context.Context, m tea.Model) (tea.Model, error) {
	if !t.Interactive() {
		return nil, fmt.Errorf("%w: stdin is not a terminal", menu.ErrPromptCancelled)
	}
	p := tea.NewProgram(m, tea.WithContext(ctx), tea.WithInput(t.in), tea.WithOutput(t.out))
	final, err := p.Run()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil, menu.ErrPromptCancelled
		}
		return nil, fmt.Errorf("prompt: %w", err)
	}
	return final, nil
}

func (t *Terminal) Select(ctx context.Context, title string, choices []menu.Choice) (int, error) {
	final, err := t.run(ctx, newSelectModel(title, choices))
	if err != nil {
		return 0, err
	}
	m := final.(selectModel)
	if m.cancelled || m.chosen < 0 {
		return 0, menu.ErrPromptCancelled
	}
	return m.chosen, nil
}

func (t *Terminal) Input(ctx context.Context, prompt, initial string) (string, error) {
	final, err := t.run(ctx, newInputModel(prompt, initial))
	if err != nil {
		return "", err
	}
	m := final.(inputModel)
	if m.cancelled {
		return "", menu.ErrPromptCancelled
	}
	return m.Value(), nil
}

func (t *Terminal) Confirm(ctx context.Context, question string, def bool) (bool, error) {
	final, err := t.run(ctx, confirmModel{question: question, def: def})
	if err != nil {
		return false, err
	}
	m := final.(confirmModel)
	if m.cancelled {
		return false, menu.ErrPromptCancelled
	}
	return m.answer, nil
}

// Secret reads a line without echo. It cannot be interrupted by ctx once
// reading has started.
func (t *Terminal) Secret(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !t.Interactive() {
		return "", fmt.Errorf("%w: stdin is not a terminal", menu.ErrPromptCancelled)
	}
	fmt.Fprint(t.out, questionStyle.Render("? "+prompt)+" ")
	b, err := term.ReadPassword(int(t.in.Fd()))
	fmt.Fprintln(t.out)
	if err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}
	return strings.TrimRight(string(b), "\r\n"), nil
}
