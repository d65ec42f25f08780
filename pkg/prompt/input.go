package prompt

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type inputModel struct {
	prompt    string
	input     textinput.Model
	done      bool
	cancelled bool
}

func newInputModel(prompt, initial string) inputModel {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.SetValue(initial)
	ti.Focus()
	return inputModel{prompt: prompt, input: ti}
}

func (m inputModel) Init() tea.Cmd { return textinput.Blink }

func (m inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancelled = true
			return m, tea.Quit
		case tea.KeyEnter:
			m.done = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m inputModel) Value() string { return strings.TrimSpace(m.input.Value()) }

func (m inputModel) View() string {
	title := questionStyle.Render("? " + strings.TrimRight(m.prompt, "\n"))
	if m.done {
		return title + " " + answerStyle.Render(m.Value()) + "\n"
	}
	if m.cancelled {
		return title + "\n"
	}
	return title + "\n" + m.input.View() + "\n"
}

type confirmModel struct {
	question  string
	def       bool
	answer    bool
	done      bool
	cancelled bool
}

func (m confirmModel) Init() tea.Cmd { return nil }

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch strings.ToLower(key.String()) {
	case "ctrl+c", "esc":
		m.cancelled = true
		return m, tea.Quit
	case "y":
		m.answer, m.done = true, true
		return m, tea.Quit
	case "n":
		m.answer, m.done = false, true
		return m, tea.Quit
	case "enter":
		m.answer, m.done = m.def, true
		return m, tea.Quit
	}
	return m, nil
}

func (m confirmModel) View() string {
	title := questionStyle.Render("? " + strings.TrimRight(m.question, "\n"))
	if m.done {
		a := "No"
		if m.answer {
			a = "Yes"
		}
		return title + " " + answerStyle.Render(a) + "\n"
	}
	hint := "(y/N)"
	if m.def {
		hint = "(Y/n)"
	}
	return title + " " + dimStyle.Render(hint) + "\n"
}
