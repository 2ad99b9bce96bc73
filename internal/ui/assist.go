package ui

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ramonehamilton/pickdesk/internal/assist"
	"github.com/ramonehamilton/pickdesk/internal/models"
)

func (m Model) handleAssistKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.screen = screenList
		return m, m.showListCmd()
	case key.Matches(msg, m.keys.ModeTop):
		return m, m.selectModeCmd(models.ModeTopDown)
	case key.Matches(msg, m.keys.ModeBottom):
		return m, m.selectModeCmd(models.ModeBottomUp)
	case key.Matches(msg, m.keys.ModeMiddle):
		return m, m.selectModeCmd(models.ModeMiddleOut)
	}

	if !m.desk.Assist.ControlsEnabled() {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.ActPicked):
		return m, m.actCmd(models.ActionPicked)
	case key.Matches(msg, m.keys.ActAll):
		return m, m.actCmd(models.ActionPickAll)
	case key.Matches(msg, m.keys.ActSkip):
		return m, m.actCmd(models.ActionSkip)
	case key.Matches(msg, m.keys.ActMissing):
		return m, m.actCmd(models.ActionMissing)
	}
	return m, nil
}

// imageLoadable reports whether an image source can be shown. Anything but
// an absolute http(s) URL counts as a failed load.
func imageLoadable(src string) bool {
	u, err := url.Parse(strings.TrimSpace(src))
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// checkImage reports a failed image load to the session once per item.
func (m Model) checkImage() {
	p := m.desk.Assist.Panel()
	if p.Item == nil || p.Item.Placeholder {
		return
	}
	if !imageLoadable(p.Item.ImageURL) {
		m.desk.Assist.ImageFailed()
	}
}

func (m Model) renderAssist() string {
	p := m.desk.Assist.Panel()
	s := m.styles

	var b strings.Builder
	b.WriteString(s.GroupTitle.Render("Assisted picking"))
	if p.Mode != "" {
		b.WriteString(s.Muted.Render("  " + p.Mode.Label()))
	}
	b.WriteString("\n\n")

	switch p.State {
	case assist.Unselected:
		b.WriteString("Choose a traversal: t top down, b bottom up, o middle out")
	case assist.AwaitingItem:
		b.WriteString(s.Muted.Render("Loading next item..."))
	case assist.Complete:
		b.WriteString(s.Success.Render("All items handled"))
	case assist.Presenting:
		b.WriteString(renderItemPanel(m.styles, p))
	}

	if p.Err != nil {
		b.WriteString("\n\n")
		b.WriteString(s.Danger.Render(p.Err.Error()))
	}
	if len(p.Exclusions) > 0 {
		b.WriteString("\n\n")
		b.WriteString(s.Muted.Render(fmt.Sprintf("Skipped: %d", len(p.Exclusions))))
	}
	return b.String()
}

func renderItemPanel(s Styles, p assist.Panel) string {
	if p.Item == nil {
		return ""
	}
	it := p.Item
	rows := []string{
		s.Accent.Render(it.Name),
		fmt.Sprintf("%s #%s %s", it.Set, it.Number, it.Printing),
		it.ConditionLanguage,
		"Qty " + it.Quantity,
		s.Muted.Render("Image: " + it.Image()),
		"",
		it.Progress(),
	}
	controls := "p picked  P picked all  s skip  x missing"
	if !p.ControlsEnabled {
		controls = s.Muted.Render(controls)
	}
	rows = append(rows, "", controls)
	return s.Panel.Render(strings.Join(rows, "\n"))
}
