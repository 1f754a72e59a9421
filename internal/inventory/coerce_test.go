package inventory_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/mutker/fleetinv/internal/inventory"
)

func TestCoerceEpochFormats(t *testing.T) {
	noon := time.Date(2026, time.January, 6, 12, 0, 0, 0, time.UTC).Unix()

	cases := []struct {
		in   string
		want int64
	}{
		{"1736164800", 1736164800},
		{"2026-01-06T12:00:00Z", noon},
		{"2026-01-06 12:00:00", noon},
		{"2026-01-06T12:00:00", noon},
		{"01/06/2026 12:00:00", noon},
		{"2026-01-06", time.Date(2026, time.January, 6, 0, 0, 0, 0, time.UTC).Unix()},
	}

	for _, tc := range cases {
		v, ok := inventory.Coerce(tc.in, inventory.TypeEpoch)
		require.True(t, ok, tc.in)
		assert.Equal(t, inventory.IntValue(tc.want), v, tc.in)
	}
}

func TestCoerceEpochNumeric(t *testing.T) {
	v, ok := inventory.Coerce(1736164800.0, inventory.TypeEpoch)
	require.True(t, ok)
	assert.Equal(t, inventory.IntValue(1736164800), v)
}

func TestCoerceConversions(t *testing.T) {
	v, ok := inventory.Coerce(25000.0, inventory.TypeString)
	require.True(t, ok)
	assert.Equal(t, inventory.StringValue("25000"), v, "whole numbers render without a fraction")

	v, ok = inventory.Coerce(" 42 ", inventory.TypeInt)
	require.True(t, ok)
	assert.Equal(t, inventory.IntValue(42), v)

	v, ok = inventory.Coerce("2.5", inventory.TypeInt)
	require.True(t, ok, "fractional text truncates")
	assert.Equal(t, inventory.IntValue(2), v)

	v, ok = inventory.Coerce(true, inventory.TypeString)
	require.True(t, ok)
	assert.Equal(t, inventory.StringValue("true"), v)
}

func TestCoerceRejectsUnrepresentable(t *testing.T) {
	cases := []struct {
		name string
		raw  any
		ft   inventory.FieldType
	}{
		{"free-form datetime", "next tuesday", inventory.TypeEpoch},
		{"blank epoch", "  ", inventory.TypeEpoch},
		{"non-numeric int", "fast", inventory.TypeInt},
		{"bool as float", true, inventory.TypeFloat},
		{"object as string", map[string]any{}, inventory.TypeString},
	}

	for _, tc := range cases {
		v, ok := inventory.Coerce(tc.raw, tc.ft)
		assert.False(t, ok, tc.name)
		assert.True(t, v.IsAbsent(), tc.name)
	}
}
