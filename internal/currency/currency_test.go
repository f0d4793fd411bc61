package currency

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConverter(t *testing.T) {
	c := NewConverter("usd", map[string]float64{"EUR": 0.92, "IQD": 1310, "BAD": 0})

	t.Run("base passes through", func(t *testing.T) {
		got, err := c.ToBase(decimal.NewFromInt(25), "USD")
		require.NoError(t, err)
		assert.True(t, got.Equal(decimal.NewFromInt(25)))

		got, err = c.ToBase(decimal.NewFromInt(25), "")
		require.NoError(t, err)
		assert.True(t, got.Equal(decimal.NewFromInt(25)))
	})

	t.Run("foreign to base", func(t *testing.T) {
		got, err := c.ToBase(decimal.NewFromInt(13100), "iqd")
		require.NoError(t, err)
		assert.True(t, got.Equal(decimal.NewFromInt(10)), got.String())
	})

	t.Run("base to foreign", func(t *testing.T) {
		got, err := c.FromBase(decimal.NewFromInt(100), "EUR")
		require.NoError(t, err)
		assert.True(t, got.Equal(decimal.NewFromInt(92)), got.String())
	})

	t.Run("unknown or non-positive rate", func(t *testing.T) {
		_, err := c.ToBase(decimal.NewFromInt(1), "GBP")
		assert.Error(t, err)
		_, err = c.ToBase(decimal.NewFromInt(1), "BAD")
		assert.Error(t, err)
	})

	assert.Equal(t, "USD", c.Base())
}
