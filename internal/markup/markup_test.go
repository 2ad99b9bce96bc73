package markup

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/pickdesk/internal/models"
)

const listFragment = `
<div class="set-group" data-set-code="woe">
  <div class="set-header">
    <span class="set-title">Wilds of Eldraine</span>
    <div class="set-actions"><span class="reserve-badge">Reserved by ana</span></div>
  </div>
  <div class="item-row" id="item-1" data-set-code="woe"><b class="card-name">Alpha</b>   NM / EN   2/3</div>
  <div class="item-row" id="item-2" data-set-code="woe" data-summary="Beta NM 1/1"><b>Beta</b></div>
</div>
<div class="set-group" data-set-code="">
  <div class="set-header"><span class="set-title">No set</span><div class="set-actions"></div></div>
  <div class="item-row" id="item-7">Omega</div>
</div>
<div class="item-row" id="item-9" data-set-code="sv1">Zard</div>
`

func TestParseList(t *testing.T) {
	groups, err := ParseList(listFragment)
	require.NoError(t, err)
	require.Len(t, groups, 3)

	woe := groups[0]
	assert.Equal(t, "woe", woe.SetCode)
	assert.Equal(t, "Wilds of Eldraine", woe.Title)
	assert.Equal(t, "ana", woe.ReservedBy)
	require.Len(t, woe.Rows, 2)
	assert.Equal(t, models.ItemID("1"), woe.Rows[0].ItemID)
	assert.Equal(t, "Alpha NM / EN 2/3", woe.Rows[0].Summary)
	assert.Equal(t, "Beta NM 1/1", woe.Rows[1].Summary)
	assert.Equal(t, "Alpha", woe.Rows[0].Name)
	assert.Equal(t, "Beta NM 1/1", woe.Rows[1].Label())
	assert.Contains(t, woe.Rows[0].Markup, `id="item-1"`)

	assert.Equal(t, "", groups[1].SetCode)
	assert.Empty(t, groups[1].ReservedBy)
	assert.Equal(t, models.ItemID("7"), groups[1].Rows[0].ItemID)

	assert.Equal(t, "sv1", groups[2].SetCode)
	assert.Equal(t, models.ItemID("9"), groups[2].Rows[0].ItemID)
}

func TestParseRow(t *testing.T) {
	row, err := ParseRow(`<div class="item-row" id="item-12" data-set-code="mom" data-name="Atraxa">Atraxa  <i>foil</i></div>`)
	require.NoError(t, err)

	assert.Equal(t, models.ItemID("12"), row.ItemID)
	assert.Equal(t, "mom", row.SetCode)
	assert.Equal(t, "Atraxa foil", row.Summary)
	assert.Equal(t, "Atraxa", row.Label())
}

func TestParseRow_NoRow(t *testing.T) {
	_, err := ParseRow(`<p>nothing here</p>`)
	assert.True(t, errors.Is(err, ErrNoRow))
}

func TestText(t *testing.T) {
	assert.Equal(t, "Total 5 Remaining 2", Text("<div>Total <b>5</b>\n Remaining <b>2</b></div>"))
}
