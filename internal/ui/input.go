package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ramonehamilton/pickdesk/internal/filter"
	"github.com/ramonehamilton/pickdesk/internal/models"
)

// promptKind identifies what the text prompt collects.
type promptKind int

const (
	promptNone promptKind = iota
	promptMissing
	promptSearch
	promptGame
	promptName
)

func (p promptKind) label() string {
	switch p {
	case promptMissing:
		return "Missing note: "
	case promptSearch:
		return "Search: "
	case promptGame:
		return "Game: "
	case promptName:
		return "Your name: "
	default:
		return ""
	}
}

// openPrompt focuses the text input for kind, prefilled with value.
func (m *Model) openPrompt(kind promptKind, target models.ItemID, value string) tea.Cmd {
	ti := textinput.New()
	ti.Prompt = kind.label()
	ti.CharLimit = 200
	ti.SetValue(value)
	ti.CursorEnd()
	m.input = ti
	m.prompt = kind
	m.promptTarget = target
	return m.input.Focus()
}

func (m *Model) closePrompt() {
	m.input.Blur()
	m.prompt = promptNone
	m.promptTarget = ""
}

// handlePromptKey edits the prompt. Enter submits, esc cancels without
// sending anything.
func (m Model) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.closePrompt()
		return m, nil
	case tea.KeyEnter:
		kind, target := m.prompt, m.promptTarget
		value := m.input.Value()
		m.closePrompt()
		return m, m.submitPrompt(kind, target, value)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submitPrompt(kind promptKind, target models.ItemID, value string) tea.Cmd {
	switch kind {
	case promptMissing:
		return m.markMissingCmd(target, strings.TrimSpace(value))
	case promptSearch:
		q := strings.TrimSpace(value)
		return m.filterCmd(func(v *filter.Values) { v.Query = q })
	case promptGame:
		game := strings.TrimSpace(value)
		return m.filterCmd(func(v *filter.Values) { v.Game = game })
	case promptName:
		return m.operatorCmd(value)
	default:
		return nil
	}
}

func (m Model) renderPrompt() string {
	return m.input.View()
}
