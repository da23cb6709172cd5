package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bombilla() Product {
	return Product{ID: 2, Name: "Bombilla", Price: Price("15.50"), Stock: 10}
}

func TestLineItem_LineTotal_UsesEffectivePrice(t *testing.T) {
	li := LineItem{Product: mate(), Quantity: 2}
	assert.True(t, li.LineTotal().Equal(Price("160")))
	assert.Equal(t, "$160.00", li.FormattedLineTotal())
}

func TestLines_Totals(t *testing.T) {
	lines := Lines{
		{Product: mate(), Quantity: 2},
		{Product: bombilla(), Quantity: 3},
	}

	assert.Equal(t, 5, lines.TotalItems())
	assert.True(t, lines.TotalPrice().Equal(Price("206.50")))
	assert.Equal(t, 1, lines.Index(2))
	assert.Equal(t, -1, lines.Index(99))
	assert.Equal(t, 3, lines.Quantity(2))
	assert.Equal(t, 0, lines.Quantity(99))
}

func TestLines_EmptyTotals(t *testing.T) {
	var lines Lines
	assert.Equal(t, 0, lines.TotalItems())
	assert.True(t, lines.TotalPrice().IsZero())
}

func TestLines_Clone_IsIndependent(t *testing.T) {
	lines := Lines{{Product: mate(), Quantity: 1}}
	clone := lines.Clone()
	clone[0].Quantity = 4

	assert.Equal(t, 1, lines[0].Quantity)
	assert.NotNil(t, Lines(nil).Clone())
}

func TestNewSnapshot(t *testing.T) {
	snap := NewSnapshot("sess-1", Lines{{Product: mate(), Quantity: 2}}, true)

	assert.Equal(t, "sess-1", snap.SessionID)
	assert.True(t, snap.IsOpen)
	assert.Equal(t, 2, snap.TotalItems)
	assert.True(t, snap.TotalPrice.Equal(Price("160")))

	empty := NewSnapshot("sess-2", nil, false)
	assert.NotNil(t, empty.Items)
	assert.True(t, empty.TotalPrice.IsZero())
}

func TestLines_JSONRoundTripKeepsSnapshotFields(t *testing.T) {
	lines := Lines{{Product: mate(), Quantity: 2}}

	data, err := json.Marshal(lines)
	require.NoError(t, err)

	var got Lines
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Mate Imperial", got[0].Product.Name)
	assert.Equal(t, "Mates", got[0].Product.Category.Name)
	assert.True(t, got[0].LineTotal().Equal(Price("160")))
}
