package view

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/pickdesk/internal/models"
)

func sampleGroups() []Group {
	return []Group{
		{SetCode: "woe", Title: "Wilds of Eldraine", Rows: []Row{
			{ItemID: "1", SetCode: "woe", Summary: "Alpha"},
			{ItemID: "2", SetCode: "woe", Summary: "Beta"},
		}},
		{SetCode: "sv1", Title: "Scarlet & Violet", Rows: []Row{
			{ItemID: "3", SetCode: "sv1", Summary: "Zard"},
		}},
	}
}

func TestModel_ReplaceRowKeepsPosition(t *testing.T) {
	m := NewModel()
	m.ReplaceAll(sampleGroups())

	ok := m.ReplaceRow(Row{ItemID: "1", SetCode: "woe", Summary: "Alpha (1 left)"})
	require.True(t, ok)

	groups := m.Groups()
	assert.Equal(t, "Alpha (1 left)", groups[0].Rows[0].Summary)
	assert.Equal(t, models.ItemID("2"), groups[0].Rows[1].ItemID)
	assert.Equal(t, []models.ItemID{"1", "2", "3"}, m.ItemIDs())
}

func TestModel_ReplaceAbsentRowIsNoop(t *testing.T) {
	m := NewModel()
	m.ReplaceAll(sampleGroups())
	before := m.Version()

	assert.False(t, m.ReplaceRow(Row{ItemID: "99"}))
	assert.Equal(t, before, m.Version())
	assert.Equal(t, 3, m.Len())
}

func TestModel_RemoveAndPrune(t *testing.T) {
	m := NewModel()
	m.ReplaceAll(sampleGroups())

	assert.True(t, m.RemoveRow("3"))
	assert.False(t, m.RemoveRow("3"), "second removal must be a no-op")

	assert.Equal(t, 1, m.PruneEmptyGroups())
	groups := m.Groups()
	require.Len(t, groups, 1)
	assert.Equal(t, "woe", groups[0].SetCode)
	assert.Equal(t, 0, m.PruneEmptyGroups())
}

func TestModel_ReplaceAllDropsDuplicates(t *testing.T) {
	m := NewModel()
	groups := sampleGroups()
	groups[1].Rows = append(groups[1].Rows, Row{ItemID: "1", SetCode: "sv1"})

	m.ReplaceAll(groups)

	assert.Equal(t, []models.ItemID{"1", "2", "3"}, m.ItemIDs())
}

func TestModel_SetReservationReplacesBadge(t *testing.T) {
	m := NewModel()
	m.ReplaceAll(sampleGroups())

	assert.Equal(t, 1, m.SetReservation("WOE", "ana"))
	assert.Equal(t, "ana", m.Groups()[0].ReservedBy)

	m.SetReservation("woe", "ben")
	assert.Equal(t, "ben", m.Groups()[0].ReservedBy)

	m.SetReservation("woe", "")
	assert.Empty(t, m.Groups()[0].ReservedBy)

	assert.Equal(t, 0, m.SetReservation("mom", "ana"))
}

func TestModel_Collapse(t *testing.T) {
	m := NewModel()
	m.ReplaceAll(append(sampleGroups(), Group{SetCode: "", Rows: []Row{{ItemID: "4"}}}))

	m.ApplyCollapse(func(key string) bool { return key == "sv1" || key == UnknownSetCode })

	groups := m.Groups()
	assert.False(t, groups[0].Collapsed)
	assert.True(t, groups[1].Collapsed)
	assert.True(t, groups[2].Collapsed)

	assert.True(t, m.SetCollapsed("sv1", false))
	assert.False(t, m.Collapsed("sv1"))
	assert.False(t, m.SetCollapsed("nope", true))
}

func TestModel_ChangesCoalesce(t *testing.T) {
	m := NewModel()
	m.SetCounts("1 remaining")
	m.SetCounts("0 remaining")

	select {
	case <-m.Changes():
	default:
		t.Fatal("expected a change notification")
	}
	select {
	case <-m.Changes():
		t.Fatal("notifications should coalesce")
	default:
	}
	assert.Equal(t, "0 remaining", m.Counts())
}

func TestOverlay_SwapRequiresAttachment(t *testing.T) {
	o := NewOverlay()
	assert.False(t, o.Swap("1", "<div>card</div>"))

	o.Ensure()
	assert.True(t, o.Swap("1", "<div>card</div>"))
	id, content := o.Content()
	assert.Equal(t, models.ItemID("1"), id)
	assert.Equal(t, "<div>card</div>", content)

	o.Close()
	assert.False(t, o.Attached())
	o.Clear()
	assert.True(t, o.Attached())
	_, content = o.Content()
	assert.Empty(t, content)
}

func TestModel_ReplaceAllIfAttached(t *testing.T) {
	m := NewModel()
	m.Detach()
	before := m.Version()

	assert.False(t, m.ReplaceAllIfAttached(sampleGroups()))
	assert.Zero(t, m.Len())
	assert.Equal(t, before, m.Version())

	m.Attach()
	assert.True(t, m.ReplaceAllIfAttached(sampleGroups()))
	assert.Equal(t, []models.ItemID{"1", "2", "3"}, m.ItemIDs())
}
