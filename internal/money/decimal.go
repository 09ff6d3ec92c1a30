// Package money wraps github.com/shopspring/decimal with the exact
// semantics this engine needs: no float round-tripping, and output
// always rendered to 4 fractional digits as spec.md's account-snapshot
// and event-log formats require.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// outputScale is the number of fractional digits in rendered output,
// per spec.md §3/§6.
const outputScale = 4

// Decimal is an exact fixed-point value. The zero value is 0.
type Decimal struct {
	d decimal.Decimal
}

// Zero is the additive identity.
var Zero = Decimal{}

// Parse reads a decimal literal such as "3.0" or "-12.5". It rejects
// scientific notation and whitespace-padded input is the caller's
// responsibility to trim first (the CSV layer does this).
func Parse(s string) (Decimal, error) {
	if strings.ContainsAny(s, "eE") {
		return Decimal{}, fmt.Errorf("money: invalid decimal %q: scientific notation not accepted", s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Decimal{}, fmt.Errorf("money: invalid decimal %q: %w", s, err)
	}
	return Decimal{d: d}, nil
}

// Add returns a + b.
func (a Decimal) Add(b Decimal) Decimal { return Decimal{d: a.d.Add(b.d)} }

// Sub returns a - b.
func (a Decimal) Sub(b Decimal) Decimal { return Decimal{d: a.d.Sub(b.d)} }

// Neg returns -a.
func (a Decimal) Neg() Decimal { return Decimal{d: a.d.Neg()} }

// Sign returns -1, 0, or 1.
func (a Decimal) Sign() int { return a.d.Sign() }

// IsPositive reports whether a > 0.
func (a Decimal) IsPositive() bool { return a.d.IsPositive() }

// IsNegative reports whether a < 0.
func (a Decimal) IsNegative() bool { return a.d.IsNegative() }

// LessThan reports whether a < b.
func (a Decimal) LessThan(b Decimal) bool { return a.d.LessThan(b.d) }

// Equal reports whether a == b, numerically (1.10 == 1.1).
func (a Decimal) Equal(b Decimal) bool { return a.d.Equal(b.d) }

// String renders a with exactly 4 fractional digits, e.g. "1.5000".
func (a Decimal) String() string {
	return a.d.StringFixed(outputScale)
}

// MarshalText implements encoding.TextMarshaler with the same
// 4-fractional-digit rendering as String.
func (a Decimal) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}
