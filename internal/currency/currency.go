// Package currency converts amounts between the configured currencies and the
// base currency. Rates are units of currency per one unit of base.
package currency

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type Converter struct {
	base  string
	rates map[string]decimal.Decimal
}

// NewConverter builds a converter from a rate table. The base currency is
// always present with a rate of 1.
func NewConverter(base string, rates map[string]float64) *Converter {
	base = strings.ToUpper(base)
	c := &Converter{base: base, rates: make(map[string]decimal.Decimal, len(rates)+1)}
	for code, rate := range rates {
		if rate <= 0 {
			continue
		}
		c.rates[strings.ToUpper(code)] = decimal.NewFromFloat(rate)
	}
	c.rates[base] = decimal.NewFromInt(1)
	return c
}

func (c *Converter) Base() string { return c.base }

// ToBase converts amount expressed in code into the base currency.
// An empty code means the amount is already in base.
func (c *Converter) ToBase(amount decimal.Decimal, code string) (decimal.Decimal, error) {
	if code == "" {
		return amount, nil
	}
	rate, ok := c.rates[strings.ToUpper(code)]
	if !ok {
		return decimal.Zero, fmt.Errorf("unknown currency %q", code)
	}
	return amount.Div(rate), nil
}

// FromBase converts a base amount into code.
func (c *Converter) FromBase(amount decimal.Decimal, code string) (decimal.Decimal, error) {
	if code == "" {
		return amount, nil
	}
	rate, ok := c.rates[strings.ToUpper(code)]
	if !ok {
		return decimal.Zero, fmt.Errorf("unknown currency %q", code)
	}
	return amount.Mul(rate), nil
}
