package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuantity(t *testing.T) {
	cases := []struct {
		in   string
		want Quantity
	}{
		{"0", 0},
		{"1", 10_000},
		{"1.5", 15_000},
		{"0.0001", 1},
		{"-2.25", -22_500},
		{"+3", 30_000},
		{"10.12345", 101_234}, // extra digits truncated
		{".5", 5_000},
		{"1e2", 1_000_000},
	}
	for _, tc := range cases {
		got, err := ParseQuantity(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestParseQuantity_Invalid(t *testing.T) {
	for _, in := range []string{"", "  ", "abc", "1.2.3", "1,5"} {
		_, err := ParseQuantity(in)
		assert.Error(t, err, in)
	}
}

func TestQuantityString(t *testing.T) {
	assert.Equal(t, "1.5000", Quantity(15_000).String())
	assert.Equal(t, "-0.2500", Quantity(-2_500).String())
	assert.Equal(t, "0.0000", Quantity(0).String())
}

func TestQuantityJSONRoundTrip(t *testing.T) {
	type payload struct {
		Qty Quantity `json:"qty"`
	}

	data, err := json.Marshal(payload{Qty: 12_500})
	require.NoError(t, err)
	assert.Equal(t, `{"qty":1.2500}`, string(data))

	var fromNumber payload
	require.NoError(t, json.Unmarshal([]byte(`{"qty":3.25}`), &fromNumber))
	assert.Equal(t, Quantity(32_500), fromNumber.Qty)

	var fromString payload
	require.NoError(t, json.Unmarshal([]byte(`{"qty":"3.25"}`), &fromString))
	assert.Equal(t, Quantity(32_500), fromString.Qty)
}

func TestQuantityDecimal(t *testing.T) {
	q := Quantity(15_000)
	assert.Equal(t, "1.5", q.Decimal().String())
	assert.InDelta(t, 1.5, q.Float64(), 1e-9)
}
