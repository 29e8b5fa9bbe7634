package invoices

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount indicates a monetary value that is missing, non-numeric or negative.
var ErrInvalidAmount = errors.New("invoices: invalid amount")

// Amount is a non-negative monetary value. An invalid Amount contributes zero to
// sums; Valid reports whether the upstream value was usable.
type Amount struct {
	value decimal.Decimal
	valid bool
}

// NewAmount builds an Amount from a float. Negative and non-finite values are invalid.
func NewAmount(v float64) Amount {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return Amount{}
	}
	return Amount{value: decimal.NewFromFloat(v), valid: true}
}

// ParseAmount parses a decimal string.
func ParseAmount(raw string) (Amount, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Amount{}, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	if d.IsNegative() {
		return Amount{}, fmt.Errorf("%w: negative %s", ErrInvalidAmount, raw)
	}
	return Amount{value: d, valid: true}, nil
}

// Valid reports whether the amount was parsed successfully.
func (a Amount) Valid() bool {
	return a.valid
}

// Decimal exposes the exact value; zero when invalid.
func (a Amount) Decimal() decimal.Decimal {
	if !a.valid {
		return decimal.Zero
	}
	return a.value
}

// Float64 returns the amount for double precision arithmetic; zero when invalid.
func (a Amount) Float64() float64 {
	if !a.valid {
		return 0
	}
	f, _ := a.value.Float64()
	return f
}

// String formats the amount, "" when invalid.
func (a Amount) String() string {
	if !a.valid {
		return ""
	}
	return a.value.String()
}

// MarshalJSON renders the amount as a JSON number or null.
func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.valid {
		return []byte("null"), nil
	}
	return []byte(a.value.String()), nil
}

// UnmarshalJSON accepts numbers and numeric strings. Anything else leaves the
// amount invalid without failing the surrounding document.
func (a *Amount) UnmarshalJSON(data []byte) error {
	*a = Amount{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	raw := string(data)
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		raw = s
	}
	parsed, err := ParseAmount(raw)
	if err != nil {
		return nil
	}
	*a = parsed
	return nil
}
