package ledger

import (
	"fmt"
	"math/big"
	"strings"
)

// ParseAmount parses a non-negative decimal integer in base units.
func ParseAmount(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return n, nil
}

// FormatAmount renders amount base units as a decimal with the given number
// of fractional digits, trimming trailing zeros: 150000000 with 8 decimals
// is "1.5". A nil amount renders as "0".
func FormatAmount(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	if decimals == 0 {
		return amount.String()
	}

	abs := new(big.Int).Abs(amount)
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(abs, unit, new(big.Int))

	sign := ""
	if amount.Sign() < 0 {
		sign = "-"
	}
	if frac.Sign() == 0 {
		return sign + whole.String()
	}

	f := frac.String()
	f = strings.Repeat("0", int(decimals)-len(f)) + f
	return sign + whole.String() + "." + strings.TrimRight(f, "0")
}
