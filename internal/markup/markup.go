// Package markup extracts list structure from server-rendered fragments.
//
// Fragments stay opaque payloads; only the attributes needed to index them
// are read: row ids ("item-<id>"), set codes, group titles and reservation
// badges.
package markup

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ramonehamilton/pickdesk/internal/models"
	"github.com/ramonehamilton/pickdesk/internal/view"
)

const (
	rowIDPrefix      = "item-"
	rowSelector      = "[id^='item-']"
	groupSelector    = ".set-group"
	badgeSelector    = ".reserve-badge"
	titleSelector    = ".set-title"
	nameSelector     = ".card-name"
	reservedByPrefix = "Reserved by "
)

// ErrNoRow is returned when a row fragment holds no item element.
var ErrNoRow = errors.New("fragment contains no item row")

func parse(fragment string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil, fmt.Errorf("parse fragment: %w", err)
	}
	return doc, nil
}

// ParseRow parses a single row fragment.
func ParseRow(fragment string) (view.Row, error) {
	doc, err := parse(fragment)
	if err != nil {
		return view.Row{}, err
	}
	sel := doc.Find(rowSelector).First()
	if sel.Length() == 0 {
		return view.Row{}, ErrNoRow
	}
	return rowFrom(sel, "")
}

// ParseList parses a full list fragment into set groups in display order.
// Rows that are not inside a set group are grouped by their own set code.
func ParseList(fragment string) ([]view.Group, error) {
	doc, err := parse(fragment)
	if err != nil {
		return nil, err
	}

	var (
		groups  []view.Group
		loose   = map[string]int{}
		rowErrs []error
	)

	doc.Find(groupSelector).Each(func(_ int, gs *goquery.Selection) {
		code := strings.TrimSpace(gs.AttrOr("data-set-code", ""))
		g := view.Group{
			SetCode:    code,
			Title:      collapse(gs.Find(titleSelector).First().Text()),
			ReservedBy: reservedBy(gs),
		}
		gs.Find(rowSelector).Each(func(_ int, rs *goquery.Selection) {
			row, err := rowFrom(rs, code)
			if err != nil {
				rowErrs = append(rowErrs, err)
				return
			}
			g.Rows = append(g.Rows, row)
		})
		groups = append(groups, g)
	})

	doc.Find(rowSelector).Each(func(_ int, rs *goquery.Selection) {
		if rs.ParentsFiltered(groupSelector).Length() > 0 {
			return
		}
		row, err := rowFrom(rs, "")
		if err != nil {
			rowErrs = append(rowErrs, err)
			return
		}
		key := view.GroupKey(row.SetCode)
		idx, ok := loose[key]
		if !ok {
			groups = append(groups, view.Group{SetCode: row.SetCode})
			idx = len(groups) - 1
			loose[key] = idx
		}
		groups[idx].Rows = append(groups[idx].Rows, row)
	})

	if len(rowErrs) > 0 {
		return groups, errors.Join(rowErrs...)
	}
	return groups, nil
}

// Text flattens a fragment to its whitespace-collapsed text.
func Text(fragment string) string {
	doc, err := parse(fragment)
	if err != nil {
		return collapse(fragment)
	}
	return collapse(doc.Text())
}

func rowFrom(sel *goquery.Selection, groupCode string) (view.Row, error) {
	id := strings.TrimPrefix(sel.AttrOr("id", ""), rowIDPrefix)
	if strings.TrimSpace(id) == "" {
		return view.Row{}, fmt.Errorf("row without item id")
	}
	html, err := goquery.OuterHtml(sel)
	if err != nil {
		return view.Row{}, fmt.Errorf("render row %s: %w", id, err)
	}
	code := strings.TrimSpace(sel.AttrOr("data-set-code", groupCode))

	summary := sel.AttrOr("data-summary", "")
	if summary == "" {
		summary = sel.Text()
	}

	name := sel.AttrOr("data-name", "")
	if name == "" {
		name = sel.Find(nameSelector).First().Text()
	}

	return view.Row{
		ItemID:  models.ItemID(id),
		SetCode: code,
		Name:    collapse(name),
		Markup:  html,
		Summary: collapse(summary),
	}, nil
}

func reservedBy(group *goquery.Selection) string {
	if v, ok := group.Attr("data-reserved-by"); ok {
		return strings.TrimSpace(v)
	}
	badge := collapse(group.Find(badgeSelector).First().Text())
	return strings.TrimSpace(strings.TrimPrefix(badge, reservedByPrefix))
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
