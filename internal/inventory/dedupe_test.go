package inventory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/mutker/fleetinv/internal/inventory"
)

func TestDedupeFirstSeenWins(t *testing.T) {
	entities := []inventory.Entity{
		{ID: "uuid-0", Name: "srv-0", Serial: "SN-1"},
		{ID: "uuid-1", Name: "srv-1", Serial: "SN-1"},
		{ID: "uuid-2", Name: "srv-2", Serial: "SN-2"},
	}

	got := inventory.Dedupe(entities, func(e inventory.Entity) string { return e.Serial })

	require.Len(t, got, 2)
	assert.Equal(t, "uuid-0", got[0].ID, "the first holder of a duplicated serial wins")
	assert.Equal(t, "uuid-2", got[1].ID)
}

func TestDedupeRetainsEmptyKeys(t *testing.T) {
	names := []string{"", "cat-a", "", "cat-a", ""}

	got := inventory.Dedupe(names, func(s string) string { return s })

	assert.Equal(t, []string{"", "cat-a", "", ""}, got, "items without a key are never duplicates of each other")
}

func TestDedupeNoDuplicates(t *testing.T) {
	entities := []inventory.Entity{
		{ID: "uuid-0", Serial: "SN-1"},
		{ID: "uuid-1", Serial: "SN-2"},
	}

	got := inventory.Dedupe(entities, func(e inventory.Entity) string { return e.Serial })

	assert.Equal(t, entities, got)
}
