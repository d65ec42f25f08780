// Package menu renders selection lists and forms and runs the screen loop of
// the interactive console.
package menu

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hashicorp/go-hclog"

	"localcloud/pkg/config"
)

// ErrPromptCancelled is returned by a Prompter when the operator aborts a prompt.
var ErrPromptCancelled = errors.New("prompt cancelled")

// Kind tells how a choice behaves in a list.
type Kind int

const (
	Action Kind = iota
	Record
	Separator
)

// Choice is one line of a selection list. Separators cannot be selected.
type Choice struct {
	Kind  Kind
	Label string
}

// Prompter is the terminal front end. Implementations return
// ErrPromptCancelled on interrupt.
type Prompter interface {
	Select(ctx context.Context, title string, choices []Choice) (int, error)
	Input(ctx context.Context, prompt, initial string) (string, error)
	Confirm(ctx context.Context, question string, def bool) (bool, error)
	Secret(ctx context.Context, prompt string) (string, error)
}

// Selection is the outcome of Render. Index points into the choices passed
// to Render and is -1 when Back is set.
type Selection struct {
	Index  int
	Choice Choice
	Back   bool
}

// Screen renders one menu and returns the next one. A nil Screen means the
// root menu.
type Screen func(ctx context.Context) (Screen, error)

// Navigator owns the prompter and the output stream of the console.
type Navigator struct {
	prompter Prompter
	out      io.Writer
	describe func(error) string
	logger   hclog.Logger
}

// New builds a Navigator. describe renders screen errors for the operator;
// nil uses err.Error().
func New(p Prompter, out io.Writer, describe func(error) string, logger hclog.Logger) *Navigator {
	if describe == nil {
		describe = func(err error) string { return err.Error() }
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Navigator{prompter: p, out: out, describe: describe, logger: logger.Named("menu")}
}

// Render shows choices, optionally followed by the main menu sentinel.
func (n *Navigator) Render(ctx context.Context, title string, choices []Choice, allowBack bool) (Selection, error) {
	shown := choices
	if allowBack {
		shown = make([]Choice, 0, len(choices)+2)
		shown = append(shown, choices...)
		if len(choices) > 0 {
			shown = append(shown, Choice{Kind: Separator})
		}
		shown = append(shown, Choice{Kind: Action, Label: config.MainMenuItem})
	}
	if !selectable(shown) {
		return Selection{}, fmt.Errorf("menu %q has nothing to select", title)
	}

	idx, err := n.prompter.Select(ctx, title, shown)
	if err != nil {
		return Selection{}, err
	}
	if idx < 0 || idx >= len(shown) || shown[idx].Kind == Separator {
		return Selection{}, fmt.Errorf("menu %q: invalid selection %d", title, idx)
	}
	if allowBack && idx == len(shown)-1 {
		return Selection{Index: -1, Back: true}, nil
	}
	return Selection{Index: idx, Choice: shown[idx]}, nil
}

func selectable(cs []Choice) bool {
	for _, c := range cs {
		if c.Kind != Separator {
			return true
		}
	}
	return false
}

// Run dispatches screens until the operator cancels on the root screen.
// Cancelling anywhere else returns to root. Screen errors are printed and
// also return to root.
func (n *Navigator) Run(ctx context.Context, root Screen) error {
	cur, atRoot := root, true
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		next, err := cur(ctx)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, ErrPromptCancelled):
			if atRoot {
				return nil
			}
			next = nil
		default:
			n.logger.Warn("screen failed", "error", err)
			n.Printf("%s\n", n.describe(err))
			next = nil
		}
		if next == nil {
			cur, atRoot = root, true
			continue
		}
		cur, atRoot = next, false
	}
}

// Field is one question of a form.
type Field struct {
	Name     string
	Prompt   string
	Initial  string
	Validate func(string) error
}

// CollectForm asks each field in order. An answer rejected by Validate is
// reported and the same field is asked again.
func (n *Navigator) CollectForm(ctx context.Context, fields []Field) (map[string]string, error) {
	answers := make(map[string]string, len(fields))
	for _, f := range fields {
		for {
			v, err := n.prompter.Input(ctx, f.Prompt, f.Initial)
			if err != nil {
				return nil, err
			}
			if f.Validate != nil {
				if verr := f.Validate(v); verr != nil {
					n.Printf("%v\n", verr)
					continue
				}
			}
			answers[f.Name] = v
			break
		}
	}
	return answers, nil
}

// Confirm asks a yes/no question.
func (n *Navigator) Confirm(ctx context.Context, question string, def bool) (bool, error) {
	return n.prompter.Confirm(ctx, question, def)
}

// ConfirmDelete asks a yes/no question that defaults to no.
func (n *Navigator) ConfirmDelete(ctx context.Context, question string) (bool, error) {
	return n.prompter.Confirm(ctx, question, false)
}

// Secret reads a value without echo.
func (n *Navigator) Secret(ctx context.Context, prompt string) (string, error) {
	return n.prompter.Secret(ctx, prompt)
}

// Printf writes to the console output.
func (n *Navigator) Printf(format string, args ...any) {
	fmt.Fprintf(n.out, format, args...)
}

// Describe renders err the way Run does.
func (n *Navigator) Describe(err error) string {
	return n.describe(err)
}
