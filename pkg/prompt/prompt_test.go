package prompt

import (
	"context"
	"os"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localcloud/pkg/menu"
)

func press(m tea.Model, keys ...tea.KeyMsg) tea.Model {
	for _, k := range keys {
		m, _ = m.Update(k)
	}
	return m
}

var (
	keyDown  = tea.KeyMsg{Type: tea.KeyDown}
	keyUp    = tea.KeyMsg{Type: tea.KeyUp}
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyCtrlC = tea.KeyMsg{Type: tea.KeyCtrlC}
)

func runeKey(r rune) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}} }

func TestSelectModel_SkipsSeparators(t *testing.T) {
	choices := []menu.Choice{
		{Kind: menu.Separator},
		{Kind: menu.Action, Label: "+ New"},
		{Kind: menu.Separator},
		{Kind: menu.Record, Label: "alpha"},
		{Kind: menu.Action, Label: "← Main Menu"},
	}
	m := newSelectModel("Pick", choices)
	assert.Equal(t, 1, m.cursor, "cursor starts on first selectable")

	got := press(m, keyDown).(selectModel)
	assert.Equal(t, 3, got.cursor)

	got = press(m, keyUp).(selectModel)
	assert.Equal(t, 4, got.cursor, "wraps past the leading separator")

	got = press(m, keyDown, keyDown, keyEnter).(selectModel)
	assert.Equal(t, 4, got.chosen)
	assert.Contains(t, got.View(), "← Main Menu")
}

func TestSelectModel_Cancel(t *testing.T) {
	m := press(newSelectModel("Pick", []menu.Choice{{Label: "a"}}), keyCtrlC).(selectModel)
	assert.True(t, m.cancelled)
	assert.Equal(t, -1, m.chosen)
}

func TestInputModel(t *testing.T) {
	m := press(newInputModel("Name:", ""), runeKey('w'), runeKey('e'), runeKey('b'), keyEnter).(inputModel)
	assert.True(t, m.done)
	assert.Equal(t, "web", m.Value())

	m = press(newInputModel("Name:", "x"), keyCtrlC).(inputModel)
	assert.True(t, m.cancelled)
}

func TestConfirmModel(t *testing.T) {
	m := press(confirmModel{question: "Delete?", def: false}, keyEnter).(confirmModel)
	assert.True(t, m.done)
	assert.False(t, m.answer)

	m = press(confirmModel{question: "Added?", def: true}, keyEnter).(confirmModel)
	assert.True(t, m.answer)

	m = press(confirmModel{question: "Delete?"}, runeKey('y')).(confirmModel)
	assert.True(t, m.answer)
	assert.Contains(t, m.View(), "Yes")
}

func TestTerminal_NotInteractiveCancels(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "stdin")
	require.NoError(t, err)
	defer f.Close()

	term := NewTerminal(f, os.Stdout)
	_, err = term.Select(context.Background(), "Pick", []menu.Choice{{Label: "a"}})
	assert.ErrorIs(t, err, menu.ErrPromptCancelled)
	_, err = term.Secret(context.Background(), "Password:")
	assert.ErrorIs(t, err, menu.ErrPromptCancelled)
}
