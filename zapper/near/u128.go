package near

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidU128 = errors.New("invalid u128")

	maxU128 = decimal.RequireFromString("340282366920938463463374607431768211455")
	two     = decimal.NewFromInt(2)

	// 2^128-1 has 39 digits; exponents, signs and fractions are not amounts.
	u128Regex = regexp.MustCompile(`^[0-9]{1,39}$`)
)

// U128 is an unsigned 128-bit integer amount. It is encoded in JSON as a decimal
// string, the same way token amounts travel between contracts.
type U128 struct {
	d decimal.Decimal
}

// NewU128 returns the amount v.
func NewU128(v uint64) U128 {
	return U128{d: decimal.NewFromUint64(v)}
}

// ParseU128 parses a base-10 integer string in the range [0, 2^128-1].
func ParseU128(s string) (U128, error) {
	if !u128Regex.MatchString(s) {
		return U128{}, fmt.Errorf("%w: %.48q is not a decimal digit string", ErrInvalidU128, s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return U128{}, fmt.Errorf("%w: %q: %v", ErrInvalidU128, s, err)
	}
	if d.GreaterThan(maxU128) {
		return U128{}, fmt.Errorf("%w: %q overflows 128 bits", ErrInvalidU128, s)
	}
	return U128{d: d}, nil
}

func fromDecimal(d decimal.Decimal) (U128, error) {
	if !d.IsInteger() {
		return U128{}, fmt.Errorf("%w: %s is not an integer", ErrInvalidU128, d.String())
	}
	if d.IsNegative() {
		return U128{}, fmt.Errorf("%w: %s is negative", ErrInvalidU128, d.String())
	}
	if d.GreaterThan(maxU128) {
		return U128{}, fmt.Errorf("%w: %s overflows 128 bits", ErrInvalidU128, d.String())
	}
	return U128{d: d.Truncate(0)}, nil
}

// Half returns floor(u / 2). An odd amount drops its remainder of one unit.
func (u U128) Half() U128 {
	q, _ := u.d.QuoRem(two, 0)
	return U128{d: q}
}

// Add returns u + v, failing on overflow.
func (u U128) Add(v U128) (U128, error) {
	return fromDecimal(u.d.Add(v.d))
}

// Sub returns u - v, failing when v > u.
func (u U128) Sub(v U128) (U128, error) {
	return fromDecimal(u.d.Sub(v.d))
}

func (u U128) IsZero() bool {
	return u.d.IsZero()
}

func (u U128) Cmp(v U128) int {
	return u.d.Cmp(v.d)
}

func (u U128) Equal(v U128) bool {
	return u.d.Equal(v.d)
}

// Decimal exposes the underlying value for arithmetic outside this package.
func (u U128) Decimal() decimal.Decimal {
	return u.d
}

// FromDecimal converts d to a U128, truncating any fractional part first.
func FromDecimal(d decimal.Decimal) (U128, error) {
	return fromDecimal(d.Truncate(0))
}

func (u U128) String() string {
	return u.d.String()
}

func (u U128) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.d.String())
}

func (u *U128) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: expected a decimal string: %v", ErrInvalidU128, err)
	}
	v, err := ParseU128(s)
	if err != nil {
		return err
	}
	*u = v
	return nil
}
