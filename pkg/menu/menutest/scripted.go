// Package menutest provides a scripted menu.Prompter for tests.
package menutest

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"localcloud/pkg/menu"
)

type stepKind int

const (
	stepSelect stepKind = iota
	stepInput
	stepConfirm
	stepSecret
	stepCancel
)

// Step is one scripted answer.
type Step struct {
	kind  stepKind
	label string
	text  string
	yes   bool
	def   bool
}

// Pick selects the choice whose label starts with prefix.
func Pick(prefix string) Step { return Step{kind: stepSelect, label: prefix} }

// Type answers an input prompt.
func Type(text string) Step { return Step{kind: stepInput, text: text} }

// Yes and No answer a confirmation explicitly.
func Yes() Step { return Step{kind: stepConfirm, yes: true} }
func No() Step  { return Step{kind: stepConfirm, yes: false} }

// Enter accepts a confirmation's default.
func Enter() Step { return Step{kind: stepConfirm, def: true} }

// Password answers a secret prompt.
func Password(s string) Step { return Step{kind: stepSecret, text: s} }

// Cancel aborts whatever prompt comes next.
func Cancel() Step { return Step{kind: stepCancel} }

// Prompt is a prompt the console showed.
type Prompt struct {
	Kind    string
	Title   string
	Choices []string
	Default bool
}

// Prompter replays steps in order. When the script runs out every prompt is
// cancelled, which ends a menu.Navigator run.
type Prompter struct {
	t     testing.TB
	steps []Step
	Seen  []Prompt
}

func New(t testing.TB, steps ...Step) *Prompter {
	return &Prompter{t: t, steps: steps}
}

// Remaining is the number of unused steps.
func (p *Prompter) Remaining() int { return len(p.steps) }

// Last returns the most recent prompt of kind.
func (p *Prompter) Last(kind string) (Prompt, bool) {
	for i := len(p.Seen) - 1; i >= 0; i-- {
		if p.Seen[i].Kind == kind {
			return p.Seen[i], true
		}
	}
	return Prompt{}, false
}

func (p *Prompter) next(want stepKind, what string) (Step, bool) {
	p.t.Helper()
	if len(p.steps) == 0 {
		return Step{kind: stepCancel}, false
	}
	s := p.steps[0]
	p.steps = p.steps[1:]
	if s.kind == stepCancel {
		return s, false
	}
	if s.kind != want {
		p.t.Fatalf("menutest: script expected another prompt kind, got %s", what)
	}
	return s, true
}

func (p *Prompter) Select(_ context.Context, title string, choices []menu.Choice) (int, error) {
	p.t.Helper()
	labels := make([]string, len(choices))
	for i, c := range choices {
		labels[i] = c.Label
	}
	p.Seen = append(p.Seen, Prompt{Kind: "select", Title: title, Choices: labels})
	s, ok := p.next(stepSelect, fmt.Sprintf("select %q", title))
	if !ok {
		return 0, menu.ErrPromptCancelled
	}
	for i, c := range choices {
		if c.Kind != menu.Separator && strings.HasPrefix(c.Label, s.label) {
			return i, nil
		}
	}
	p.t.Fatalf("menutest: %q has no choice %q in %q", title, s.label, labels)
	return 0, nil
}

func (p *Prompter) Input(_ context.Context, prompt, initial string) (string, error) {
	p.t.Helper()
	p.Seen = append(p.Seen, Prompt{Kind: "input", Title: prompt})
	s, ok := p.next(stepInput, fmt.Sprintf("input %q", prompt))
	if !ok {
		return "", menu.ErrPromptCancelled
	}
	return s.text, nil
}

func (p *Prompter) Confirm(_ context.Context, question string, def bool) (bool, error) {
	p.t.Helper()
	p.Seen = append(p.Seen, Prompt{Kind: "confirm", Title: question, Default: def})
	s, ok := p.next(stepConfirm, fmt.Sprintf("confirm %q", question))
	if !ok {
		return false, menu.ErrPromptCancelled
	}
	if s.def {
		return def, nil
	}
	return s.yes, nil
}

func (p *Prompter) Secret(_ context.Context, prompt string) (string, error) {
	p.t.Helper()
	p.Seen = append(p.Seen, Prompt{Kind: "secret", Title: prompt})
	s, ok := p.next(stepSecret, fmt.Sprintf("secret %q", prompt))
	if !ok {
		return "", menu.ErrPromptCancelled
	}
	return s.text, nil
}
