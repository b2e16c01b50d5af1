package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildUpdate(t *testing.T) {
	query, args, ok := buildUpdate("events", map[string]any{
		"city": "Potsdam",
		"name": "Run",
	}, eventColumns, 7)

	require.True(t, ok)
	assert.Equal(t, "UPDATE events SET city = $1, name = $2, updated_at = NOW() WHERE id = $3", query)
	assert.Equal(t, []any{"Potsdam", "Run", int64(7)}, args)
}

func TestBuildUpdateSkipsUnknownColumns(t *testing.T) {
	query, args, ok := buildUpdate("races", map[string]any{
		"price":      "25",
		"rating":     5, // not a column
		"edition_id": 9, // never updatable
	}, raceColumns, 501)

	require.True(t, ok)
	assert.Equal(t, "UPDATE races SET price = $1, updated_at = NOW() WHERE id = $2", query)
	assert.Equal(t, []any{"25", int64(501)}, args)
}

func TestBuildUpdateEmpty(t *testing.T) {
	_, _, ok := buildUpdate("events", map[string]any{"rating": 5}, eventColumns, 7)
	assert.False(t, ok)

	_, _, ok = buildUpdate("events", nil, eventColumns, 7)
	assert.False(t, ok)
}
