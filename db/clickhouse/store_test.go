package clickhouse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"menu-cost/db/pricestore"
)

func TestHistoryRows(t *testing.T) {
	ts := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	entry := pricestore.HistoryEntry{
		ID:             "entry-1",
		Timestamp:      ts,
		Reason:         pricestore.ReasonUpdate,
		ArchivedPrices: map[string]float64{"duck": 30, "butter": 2.5},
		Introduced:     []string{"saffron", "caviar"},
	}

	rows := HistoryRows(entry)

	require.Len(t, rows, 4)
	assert.Equal(t, "butter", rows[0].Ingredient)
	assert.Equal(t, ChangeArchived, rows[0].Change)
	require.NotNil(t, rows[0].Price)
	assert.Equal(t, "2.5", rows[0].Price.String())
	assert.Equal(t, "duck", rows[1].Ingredient)
	assert.Equal(t, "caviar", rows[2].Ingredient)
	assert.Equal(t, ChangeIntroduced, rows[2].Change)
	assert.Nil(t, rows[2].Price)
	assert.Equal(t, "saffron", rows[3].Ingredient)

	for _, row := range rows {
		assert.Equal(t, "entry-1", row.EntryID)
		assert.Equal(t, ts, row.RecordedAt)
		assert.Equal(t, pricestore.ReasonUpdate, row.Reason)
	}
	assert.NotEqual(t, rows[0].ID, rows[1].ID)
	assert.Equal(t, []string{"saffron", "caviar"}, entry.Introduced)
}

func TestHistoryRowsEmpty(t *testing.T) {
	assert.Empty(t, HistoryRows(pricestore.HistoryEntry{ID: "noop"}))
}
