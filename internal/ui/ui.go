// Package ui provides the Bubble Tea terminal interface of pickdesk.
package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ramonehamilton/pickdesk/internal/app"
	"github.com/ramonehamilton/pickdesk/internal/filter"
	"github.com/ramonehamilton/pickdesk/internal/markup"
	"github.com/ramonehamilton/pickdesk/internal/models"
	"github.com/ramonehamilton/pickdesk/internal/realtime"
)

const defaultTick = 250 * time.Millisecond

// screen is the active top-level screen.
type screen int

const (
	screenList screen = iota
	screenAssist
	screenCard
)

// Options configure the UI.
type Options struct {
	Context context.Context
	Desk    *app.Desk
	Tick    time.Duration // Re-render interval
}

// Model is the root application state for Bubble Tea.
type Model struct {
	ctx  context.Context
	desk *app.Desk
	tick time.Duration

	keys   keyMap
	help   help.Model
	styles Styles

	width  int
	height int
	ready  bool
	screen screen

	// List state
	lines   []line
	cursor  int
	offset  int
	version uint64

	// Prompt state
	prompt       promptKind
	promptTarget models.ItemID
	input        textinput.Model

	lastErr error
}

// New creates the root model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	tick := opts.Tick
	if tick <= 0 {
		tick = defaultTick
	}
	m := Model{
		ctx:    ctx,
		desk:   opts.Desk,
		tick:   tick,
		keys:   defaultKeyMap(),
		help:   help.New(),
		styles: defaultStyles(),
	}
	m.syncLines()
	return m
}

// Run starts the program and blocks until the operator quits or ctx ends.
func Run(ctx context.Context, desk *app.Desk) error {
	p := tea.NewProgram(New(Options{Context: ctx, Desk: desk}), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tickCmd(m.tick)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.ready = true
		return m, nil

	case tickMsg:
		m.syncLines()
		if m.screen == screenAssist {
			m.checkImage()
		}
		return m, tickCmd(m.tick)

	case actionDoneMsg:
		m.lastErr = msg.err
		m.syncLines()
		if m.screen == screenAssist {
			m.checkImage()
		}
		return m, nil
	}

	if m.prompt != promptNone {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

// syncLines rebuilds the flattened list when the view model changed.
func (m *Model) syncLines() {
	v := m.desk.Model.Version()
	if m.lines != nil && v == m.version {
		return
	}
	m.version = v
	m.lines = flatten(m.desk.Groups())
	m.cursor = clampCursor(m.cursor, len(m.lines))
}

func (m Model) selected() (line, bool) {
	if m.cursor < 0 || m.cursor >= len(m.lines) {
		return line{}, false
	}
	return m.lines[m.cursor], true
}

func (m Model) selectedRow() (models.ItemID, bool) {
	l, ok := m.selected()
	if !ok || l.header() {
		return "", false
	}
	return l.row.ItemID, true
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.prompt != promptNone {
		return m.handlePromptKey(msg)
	}
	if m.help.ShowAll {
		m.help.ShowAll = false
		return m, nil
	}

	switch {
	case msg.Type == tea.KeyCtrlC:
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = true
		return m, nil
	}

	switch m.screen {
	case screenAssist:
		return m.handleAssistKey(msg)
	case screenCard:
		if key.Matches(msg, m.keys.Back) || key.Matches(msg, m.keys.Card) {
			m.desk.CloseCard()
			m.screen = screenList
		}
		return m, nil
	}
	return m.handleListKey(msg)
}

func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		m.cursor = clampCursor(m.cursor-1, len(m.lines))
	case key.Matches(msg, m.keys.Down):
		m.cursor = clampCursor(m.cursor+1, len(m.lines))
	case key.Matches(msg, m.keys.Top):
		m.cursor = 0
	case key.Matches(msg, m.keys.Bottom):
		m.cursor = clampCursor(len(m.lines)-1, len(m.lines))
	case key.Matches(msg, m.keys.Pick):
		if id, ok := m.selectedRow(); ok {
			return m, m.pickCmd(id)
		}
	case key.Matches(msg, m.keys.Undo):
		return m, m.undoCmd()
	case key.Matches(msg, m.keys.Missing):
		if id, ok := m.selectedRow(); ok {
			return m, m.openPrompt(promptMissing, id, "")
		}
	case key.Matches(msg, m.keys.Unmissing):
		if id, ok := m.selectedRow(); ok {
			return m, m.unmarkMissingCmd(id)
		}
	case key.Matches(msg, m.keys.Reserve):
		if l, ok := m.selected(); ok {
			return m, m.reserveCmd(l.setCode())
		}
	case key.Matches(msg, m.keys.Toggle):
		if l, ok := m.selected(); ok {
			return m, m.toggleGroupCmd(l.setCode())
		}
	case key.Matches(msg, m.keys.Card):
		if id, ok := m.selectedRow(); ok {
			m.screen = screenCard
			return m, m.openCardCmd(id)
		}
	case key.Matches(msg, m.keys.Search):
		return m, m.openPrompt(promptSearch, "", m.desk.Filter.Values().Query)
	case key.Matches(msg, m.keys.Game):
		return m, m.openPrompt(promptGame, "", m.desk.Filter.Values().Game)
	case key.Matches(msg, m.keys.Name):
		return m, m.openPrompt(promptName, "", m.desk.OperatorName())
	case key.Matches(msg, m.keys.ShowPicked):
		return m, m.filterCmd(func(v *filter.Values) { v.ShowPicked = !v.ShowPicked })
	case key.Matches(msg, m.keys.ShowMiss):
		return m, m.filterCmd(func(v *filter.Values) { v.ShowMissing = !v.ShowMissing })
	case key.Matches(msg, m.keys.ShowAll):
		return m, m.filterCmd(func(v *filter.Values) { v.ShowAll = !v.ShowAll })
	case key.Matches(msg, m.keys.Refresh):
		return m, m.refreshCmd()
	case key.Matches(msg, m.keys.Assist):
		m.desk.HideList()
		m.screen = screenAssist
		m.syncLines()
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.help.ShowAll {
		return m.help.View(m.keys) + "\n\n" + m.styles.Muted.Render(m.desk.Stats().String())
	}

	header := m.renderHeader()
	footer := m.renderFooter()
	bodyHeight := m.height - lipgloss.Height(header) - lipgloss.Height(footer)

	var body string
	switch m.screen {
	case screenAssist:
		body = m.renderAssist()
	case screenCard:
		body = m.renderCard()
	default:
		body = m.renderList(bodyHeight)
	}
	body = lipgloss.NewStyle().Height(max(bodyHeight, 0)).Render(body)

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m Model) renderHeader() string {
	counts := m.desk.Model.Counts()
	if counts == "" {
		counts = "no counts"
	}
	parts := []string{
		"pickdesk",
		m.connStatus(),
		counts,
		"operator: " + m.desk.OperatorName(),
	}
	if f := filterSummary(m.desk.Filter.Values()); f != "" {
		parts = append(parts, f)
	}
	return m.styles.Header.Width(max(m.width, 0)).Render(strings.Join(parts, " │ "))
}

func (m Model) connStatus() string {
	st := m.desk.ConnState()
	if st == realtime.StateOpen {
		return m.styles.Success.Render("live")
	}
	if st == realtime.StateClosed {
		if d := m.desk.NextReconnect(); d > 0 {
			return m.styles.Warning.Render(fmt.Sprintf("reconnecting in %s", d.Round(time.Millisecond)))
		}
	}
	return m.styles.Warning.Render(st.String())
}

// filterSummary describes non-default filter settings.
func filterSummary(v filter.Values) string {
	var parts []string
	if v.Game != "" {
		parts = append(parts, "game="+v.Game)
	}
	if v.Query != "" {
		parts = append(parts, fmt.Sprintf("q=%q", v.Query))
	}
	if v.ShowPicked {
		parts = append(parts, "+picked")
	}
	if v.ShowMissing {
		parts = append(parts, "missing only")
	}
	if v.ShowAll {
		parts = append(parts, "all")
	}
	return strings.Join(parts, " ")
}

func (m Model) renderFooter() string {
	var rows []string
	if t := m.desk.Toasts.Current(); t.Visible {
		text := fmt.Sprintf("%s  (u undo, %ds)", t.Message, t.Remaining)
		if t.Undoing {
			text = t.Message + "  undoing..."
		}
		rows = append(rows, m.styles.Toast.Render(text))
	}
	if m.prompt != promptNone {
		rows = append(rows, m.renderPrompt())
	}
	if m.lastErr != nil {
		rows = append(rows, m.styles.Danger.Render("Error: "+m.lastErr.Error()))
	}
	rows = append(rows, m.styles.Footer.Render(m.help.View(m.keys)))
	return strings.Join(rows, "\n")
}

func (m Model) renderCard() string {
	if !m.desk.Overlay.Attached() {
		return m.styles.Muted.Render("Card closed")
	}
	_, content := m.desk.Overlay.Content()
	if content == "" {
		return m.styles.Muted.Render("Loading card...")
	}
	return m.styles.Panel.Render(markup.Text(content))
}
