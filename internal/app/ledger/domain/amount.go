package domain

import (
	"regexp"

	"github.com/shopspring/decimal"
)

// Amounts are carried as int64 minor units with a fixed scale of 2
// (cents). All arithmetic inside the ledger is integer arithmetic;
// decimal strings only exist at the API boundary.
const CurrencyScale = 100

// amountPattern is the accepted decimal grammar: an unsigned integer part
// of at most 16 digits and at most two fractional digits. It deliberately
// rejects signs, scientific notation, leading/trailing whitespace and bare
// ".50". The digit cap keeps every accepted amount well inside int64 minor
// units, so the shift in ParseAmount can never overflow.
var amountPattern = regexp.MustCompile(`^\d{1,16}(?:\.\d{1,2})?$`)

// ParseAmount normalizes a boundary amount string into minor units.
// It returns ErrInvalidAmount for zero, negative, over-precision,
// non-finite or otherwise malformed input.
func ParseAmount(s string) (int64, error) {
	if !amountPattern.MatchString(s) {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if !d.IsPositive() {
		return 0, ErrInvalidAmount
	}
	// The grammar guarantees at most two fractional digits, so shifting
	// by the scale is exact.
	return d.Shift(2).IntPart(), nil
}

// ValidAmount reports whether s is an acceptable monetary amount.
func ValidAmount(s string) bool {
	_, err := ParseAmount(s)
	return err == nil
}

// FormatAmount renders minor units back into a two-decimal string, e.g.
// 3050 -> "30.50".
func FormatAmount(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}
