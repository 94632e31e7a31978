package types

import (
	"bytes"
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is an exact decimal amount. It serialises as a bare JSON number so
// snapshots stay readable by other tools.
type Money struct {
	d decimal.Decimal
}

func NewMoney(d decimal.Decimal) Money {
	return Money{d: d}
}

func MoneyFromFloat(f float64) Money {
	return Money{d: decimal.NewFromFloat(f)}
}

func MoneyFromInt(i int64) Money {
	return Money{d: decimal.NewFromInt(i)}
}

// ParseMoney parses a decimal string such as "12.50".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("parse money %q: %w", s, err)
	}
	return Money{d: d}, nil
}

func (m Money) Decimal() decimal.Decimal { return m.d }

func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }

func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }

// Times multiplies by an integer quantity.
func (m Money) Times(qty int) Money {
	return Money{d: m.d.Mul(decimal.NewFromInt(int64(qty)))}
}

// Div divides by n, rounding to 2 places. n <= 0 yields zero.
func (m Money) Div(n int) Money {
	if n <= 0 {
		return Money{}
	}
	return Money{d: m.d.DivRound(decimal.NewFromInt(int64(n)), 2)}
}

func (m Money) Equal(o Money) bool { return m.d.Equal(o.d) }

func (m Money) Cmp(o Money) int { return m.d.Cmp(o.d) }

func (m Money) IsNegative() bool { return m.d.IsNegative() }

func (m Money) IsZero() bool { return m.d.IsZero() }

func (m Money) Float64() float64 {
	f, _ := m.d.Float64()
	return f
}

func (m Money) String() string { return m.d.String() }

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.d.String()), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		m.d = decimal.Zero
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	m.d = d
	return nil
}

// SumMoney adds a list of amounts.
func SumMoney(values ...Money) Money {
	total := Money{}
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
