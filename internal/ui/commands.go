package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ramonehamilton/pickdesk/internal/filter"
	"github.com/ramonehamilton/pickdesk/internal/models"
)

// tickMsg triggers a re-render of state changed by background work.
type tickMsg time.Time

// actionDoneMsg reports the outcome of a desk action.
type actionDoneMsg struct {
	action string
	err    error
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// actionCmd runs fn off the update loop.
func actionCmd(action string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{action: action, err: fn()}
	}
}

func (m Model) pickCmd(id models.ItemID) tea.Cmd {
	return actionCmd("pick", func() error {
		_, err := m.desk.Pick(m.ctx, id)
		return err
	})
}

func (m Model) undoCmd() tea.Cmd {
	t := m.desk.Toasts.Live()
	if t == nil {
		return nil
	}
	return actionCmd("undo", func() error {
		return t.Undo(m.ctx)
	})
}

func (m Model) markMissingCmd(id models.ItemID, note string) tea.Cmd {
	return actionCmd("missing", func() error {
		return m.desk.MarkMissing(m.ctx, id, note)
	})
}

func (m Model) unmarkMissingCmd(id models.ItemID) tea.Cmd {
	return actionCmd("unmissing", func() error {
		return m.desk.UnmarkMissing(m.ctx, id)
	})
}

func (m Model) reserveCmd(setCode string) tea.Cmd {
	return actionCmd("reserve", func() error {
		return m.desk.ReserveSet(m.ctx, setCode)
	})
}

func (m Model) toggleGroupCmd(setCode string) tea.Cmd {
	return actionCmd("collapse", func() error {
		return m.desk.ToggleSetGroup(m.ctx, setCode)
	})
}

func (m Model) filterCmd(fn func(*filter.Values)) tea.Cmd {
	return actionCmd("filter", func() error {
		return m.desk.SetFilter(m.ctx, fn)
	})
}

func (m Model) operatorCmd(name string) tea.Cmd {
	return actionCmd("name", func() error {
		return m.desk.SetOperatorName(m.ctx, name)
	})
}

func (m Model) refreshCmd() tea.Cmd {
	return actionCmd("refresh", func() error {
		if err := m.desk.Refresh(m.ctx); err != nil {
			return err
		}
		return m.desk.RefreshCounts(m.ctx)
	})
}

func (m Model) openCardCmd(id models.ItemID) tea.Cmd {
	return actionCmd("card", func() error {
		return m.desk.OpenCard(m.ctx, id)
	})
}

func (m Model) showListCmd() tea.Cmd {
	return actionCmd("list", func() error {
		return m.desk.ShowList(m.ctx)
	})
}

func (m Model) selectModeCmd(mode models.Mode) tea.Cmd {
	return actionCmd("assist", func() error {
		return m.desk.Assist.SelectMode(m.ctx, mode)
	})
}

func (m Model) actCmd(action models.Action) tea.Cmd {
	return actionCmd("assist", func() error {
		return m.desk.Assist.Act(m.ctx, action)
	})
}
