package prompt

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"localcloud/pkg/menu"
)

var (
	accent        = lipgloss.Color("#127475")
	questionStyle = lipgloss.NewStyle().Bold(true)
	cursorStyle   = lipgloss.NewStyle().Foreground(accent).Bold(true)
	answerStyle   = lipgloss.NewStyle().Foreground(accent)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

const separatorLine = "──────────────"

// selectModel is a single-choice list. Separators are skipped by the cursor.
type selectModel struct {
	title     string
	choices   []menu.Choice
	cursor    int
	chosen    int
	cancelled bool
}

func newSelectModel(title string, choices []menu.Choice) selectModel {
	m := selectModel{title: title, choices: choices, cursor: -1, chosen: -1}
	m.cursor = m.step(-1, 1)
	return m
}

// step moves from i in direction dir to the next selectable choice, wrapping.
func (m selectModel) step(i, dir int) int {
	n := len(m.choices)
	for k := 0; k < n; k++ {
		i = (i + dir + n) % n
		if m.choices[i].Kind != menu.Separator {
			return i
		}
	}
	return -1
}

func (m selectModel) Init() tea.Cmd { return nil }

func (m selectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "ctrl+c", "esc":
		m.cancelled = true
		return m, tea.Quit
	case "up", "k", "shift+tab":
		m.cursor = m.step(m.cursor, -1)
	case "down", "j", "tab":
		m.cursor = m.step(m.cursor, 1)
	case "home":
		m.cursor = m.step(-1, 1)
	case "end":
		m.cursor = m.step(len(m.choices), -1)
	case "enter":
		if m.cursor >= 0 {
			m.chosen = m.cursor
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m selectModel) View() string {
	var b strings.Builder
	b.WriteString(questionStyle.Render("? " + m.title))
	if m.chosen >= 0 {
		b.WriteString(" " + answerStyle.Render(m.choices[m.chosen].Label) + "\n")
		return b.String()
	}
	if m.cancelled {
		b.WriteString("\n")
		return b.String()
	}
	b.WriteString("\n")
	for i, c := range m.choices {
		switch {
		case c.Kind == menu.Separator:
			b.WriteString("  " + dimStyle.Render(separatorLine))
		case i == m.cursor:
			b.WriteString(cursorStyle.Render("❯ " + c.Label))
		default:
			b.WriteString("  " + c.Label)
		}
		b.WriteString("\n")
	}
	b.WriteString(dimStyle.Render("(use arrow keys, enter to select)") + "\n")
	return b.String()
}
