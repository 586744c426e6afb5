// Package near provides the chain primitives used by the zap contract: account ids,
// 128-bit token amounts and gas.
package near

import (
	"errors"
	"fmt"
	"regexp"
)

const (
	MinAccountIDLen = 2
	MaxAccountIDLen = 64
)

var ErrInvalidAccountID = errors.New("invalid account id")

// accountIDPattern matches lowercase alphanumeric parts joined by single '-', '_' or '.'
// separators. Separators may not lead, trail or repeat.
var accountIDPattern = regexp.MustCompile(`^(([a-z\d]+[\-_])*[a-z\d]+\.)*([a-z\d]+[\-_])*[a-z\d]+$`)

// AccountID is a validated chain account identifier such as "wrap.testnet".
type AccountID string

// ParseAccountID validates s and returns it as an AccountID.
func ParseAccountID(s string) (AccountID, error) {
	if len(s) < MinAccountIDLen || len(s) > MaxAccountIDLen {
		return "", fmt.Errorf("%w: %q must be between %d and %d characters",
			ErrInvalidAccountID, s, MinAccountIDLen, MaxAccountIDLen)
	}
	if !accountIDPattern.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAccountID, s)
	}
	return AccountID(s), nil
}

// MustParseAccountID is ParseAccountID for constants; it panics on a malformed id.
func MustParseAccountID(s string) AccountID {
	id, err := ParseAccountID(s)
	if err != nil {
		panic(err)
	}
	return id
}

func (a AccountID) String() string {
	return string(a)
}

// Validate reports whether an already typed id still satisfies the format rules,
// for values that bypassed ParseAccountID (JSON decoding, struct literals).
func (a AccountID) Validate() error {
	_, err := ParseAccountID(string(a))
	return err
}
