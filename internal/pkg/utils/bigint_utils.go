package utils

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"fundchain/internal/domain/entity"
)

// FormatBigInt converts a base-unit amount to a decimal string without trailing zeros.
// Example: amount=1234500000000000000, decimals=18 => "1.2345"
func FormatBigInt(amount *big.Int, decimals uint8) (string, error) {
	if amount == nil {
		return "0", nil
	}
	if decimals == 0 {
		return amount.String(), nil
	}

	formatted := formatScaled(amount, int(decimals))
	if strings.Contains(formatted, ".") {
		formatted = strings.TrimRight(formatted, "0")
		formatted = strings.TrimRight(formatted, ".")
	}
	if formatted == "" || formatted == "-" {
		return "", fmt.Errorf("formatting resulted in empty string for %s", amount.String())
	}
	if formatted == "-0" {
		formatted = "0"
	}
	return formatted, nil
}

// FormatBigIntFixed formats a base-unit amount with exactly places fractional digits,
// rounding half away from zero. Used for display only.
func FormatBigIntFixed(amount *big.Int, decimals uint8, places int) string {
	if amount == nil {
		amount = new(big.Int)
	}
	if places < 0 {
		places = 0
	}
	if places >= int(decimals) {
		return formatScaled(new(big.Int).Mul(amount, pow10(places-int(decimals))), places)
	}

	scale := pow10(int(decimals) - places)
	half := new(big.Int).Quo(scale, big.NewInt(2))
	abs := new(big.Int).Abs(amount)
	rounded := new(big.Int).Quo(abs.Add(abs, half), scale)
	if amount.Sign() < 0 && rounded.Sign() != 0 {
		rounded.Neg(rounded)
	}
	return formatScaled(rounded, places)
}

// ParseUnits converts a display-unit decimal string such as "1.5" into base units.
// Digits beyond decimals are rounded half up. Negative, signed or malformed input is rejected.
func ParseUnits(value string, decimals uint8) (*big.Int, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return nil, entity.NewInvalidInput("amount", "empty value")
	}
	if strings.HasPrefix(s, "-") {
		return nil, entity.NewInvalidInput("amount", "must not be negative")
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return nil, entity.NewInvalidInput("amount", fmt.Sprintf("%q has no digits", value))
	}
	if whole == "" {
		whole = "0"
	}
	if !isDigits(whole) || (frac != "" && !isDigits(frac)) || strings.Count(s, ".") > 1 {
		return nil, entity.NewInvalidInput("amount", fmt.Sprintf("%q is not a decimal number", value))
	}

	roundUp := false
	if len(frac) > int(decimals) {
		roundUp = frac[decimals] >= '5'
		frac = frac[:decimals]
	}
	frac += strings.Repeat("0", int(decimals)-len(frac))

	out, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, entity.NewInvalidInput("amount", fmt.Sprintf("%q is not a decimal number", value))
	}
	if roundUp {
		out.Add(out, big.NewInt(1))
	}
	return out, nil
}

// FloatToUnits converts a display-unit float into base units via its shortest decimal
// representation, so 1.5 always becomes exactly 1.5 * 10^decimals.
func FloatToUnits(value float64, decimals uint8) (*big.Int, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, entity.NewInvalidInput("amount", "must be a finite number")
	}
	if value < 0 {
		return nil, entity.NewInvalidInput("amount", "must not be negative")
	}
	return ParseUnits(strconv.FormatFloat(value, 'f', -1, 64), decimals)
}

func formatScaled(amount *big.Int, places int) string {
	neg := amount.Sign() < 0
	digits := new(big.Int).Abs(amount).String()
	if places > 0 {
		if len(digits) <= places {
			digits = strings.Repeat("0", places-len(digits)+1) + digits
		}
		digits = digits[:len(digits)-places] + "." + digits[len(digits)-places:]
	}
	if neg {
		return "-" + digits
	}
	return digits
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
