package ui

import (
	"fmt"
	"strings"

	"github.com/ramonehamilton/pickdesk/internal/view"
)

// line is one selectable entry of the list screen: a set header or a row.
type line struct {
	group view.Group
	row   *view.Row
}

func (l line) header() bool { return l.row == nil }

// setCode returns the set the line belongs to.
func (l line) setCode() string {
	return l.group.SetCode
}

// flatten lays groups out as headers followed by their rows. Rows of
// collapsed groups are hidden.
func flatten(groups []view.Group) []line {
	var lines []line
	for _, g := range groups {
		lines = append(lines, line{group: g})
		if g.Collapsed {
			continue
		}
		for i := range g.Rows {
			lines = append(lines, line{group: g, row: &g.Rows[i]})
		}
	}
	return lines
}

// clampCursor keeps the cursor inside [0, n).
func clampCursor(cursor, n int) int {
	if n == 0 || cursor < 0 {
		return 0
	}
	if cursor >= n {
		return n - 1
	}
	return cursor
}

// window returns the first visible line index so that cursor stays within
// a viewport of height lines.
func window(offset, cursor, height, n int) int {
	if height <= 0 || n <= height {
		return 0
	}
	if cursor < offset {
		offset = cursor
	}
	if cursor >= offset+height {
		offset = cursor - height + 1
	}
	if offset > n-height {
		offset = n - height
	}
	return max(offset, 0)
}

func groupHeading(g view.Group) string {
	title := g.Title
	if title == "" {
		title = strings.ToUpper(g.Key())
	}
	marker := "▾"
	if g.Collapsed {
		marker = "▸"
	}
	return fmt.Sprintf("%s %s (%d)", marker, title, len(g.Rows))
}

func (m Model) renderList(height int) string {
	if !m.desk.Model.Attached() {
		return m.styles.Muted.Render("List hidden")
	}
	if len(m.lines) == 0 {
		return m.styles.Muted.Render("Nothing to pick")
	}

	start := window(m.offset, m.cursor, height, len(m.lines))
	end := min(start+height, len(m.lines))

	var b strings.Builder
	for i := start; i < end; i++ {
		l := m.lines[i]
		var text string
		if l.header() {
			text = m.styles.GroupTitle.Render(groupHeading(l.group))
			if l.group.ReservedBy != "" {
				text += " " + m.styles.Badge.Render(l.group.ReservedBy)
			}
		} else {
			text = "   " + l.row.Summary
			if strings.Contains(l.row.Summary, "MISSING") {
				text = m.styles.Warning.Render(text)
			}
		}
		if i == m.cursor {
			text = m.styles.Selected.Render(text)
		}
		b.WriteString(text)
		if i < end-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
