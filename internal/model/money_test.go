package model

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommission_RoundsHalfUp(t *testing.T) {
	rate := decimal.RequireFromString("0.10")

	cases := []struct {
		price Money
		want  Money
	}{
		{price: 15000, want: 1500},
		{price: 12345, want: 1235},
		{price: 999, want: 100},
		{price: 1, want: 0},
		{price: 5, want: 1},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Commission(tc.price, rate), "price %s", tc.price)
	}
}

func TestMoney_JSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Total Money `json:"total"`
	}{Total: 16500})
	require.NoError(t, err)
	assert.JSONEq(t, `{"total":165.00}`, string(b))

	var in struct {
		Price Money `json:"price"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"price":150.5}`), &in))
	assert.Equal(t, Money(15050), in.Price)

	require.NoError(t, json.Unmarshal([]byte(`{"price":"42"}`), &in))
	assert.Equal(t, Money(4200), in.Price)

	assert.Error(t, json.Unmarshal([]byte(`{"price":1.005}`), &in))
}

func TestMoney_RejectsOutOfRange(t *testing.T) {
	var in struct {
		Price Money `json:"price"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"price":1000000.00}`), &in))
	assert.Equal(t, MaxAmount, in.Price)

	for _, raw := range []string{`1000000.01`, `90000000000000000.00`, `1e30`, `-1e30`} {
		in.Price = 7
		assert.Error(t, json.Unmarshal([]byte(`{"price":`+raw+`}`), &in), raw)
		assert.Equal(t, Money(7), in.Price, raw)
	}

	_, err := MoneyFromDecimal(decimal.RequireFromString("92233720368547758.08"))
	assert.Error(t, err)
}

func TestCategory_ClosedSet(t *testing.T) {
	for _, c := range Categories() {
		assert.True(t, c.Valid())
		assert.NotEmpty(t, c.Info().Name)
	}
	assert.False(t, Category("Premium").Valid())
	assert.Equal(t, "Category 1", CategoryCat1.Info().Name)
}
