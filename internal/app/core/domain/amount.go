package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountScale is the number of fractional digits the ledger keeps.
// Balances are persisted as int64 minor units (1/100).
const AmountScale = 2

// MaxBalance is the largest amount or balance the ledger holds, a DECIMAL(10,2).
var MaxBalance = decimal.New(9_999_999_999, -AmountScale)

// ParseAmount parses a textual amount such as "150.00".
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, s)
	}
	return d, nil
}

// MustAmount is ParseAmount for literals known to be valid.
func MustAmount(s string) decimal.Decimal {
	d, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return d
}

// ValidateAmount requires a positive amount with at most AmountScale decimals.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s must be positive", ErrInvalidAmount, amount.String())
	}
	if !amount.Equal(amount.Truncate(AmountScale)) {
		return fmt.Errorf("%w: %s has more than %d decimal places", ErrInvalidAmount, amount.String(), AmountScale)
	}
	if amount.GreaterThan(MaxBalance) {
		return fmt.Errorf("%w: %s exceeds the ledger range", ErrInvalidAmount, amount.String())
	}
	return nil
}

// ValidateBalance requires 0 <= balance <= MaxBalance with at most AmountScale decimals.
func ValidateBalance(balance decimal.Decimal) error {
	if balance.IsNegative() {
		return fmt.Errorf("%w: balance %s", ErrInsufficientFunds, balance.String())
	}
	if !balance.Equal(balance.Truncate(AmountScale)) {
		return fmt.Errorf("%w: balance %s has more than %d decimal places", ErrInvalidAmount, balance.String(), AmountScale)
	}
	if balance.GreaterThan(MaxBalance) {
		return fmt.Errorf("%w: balance %s exceeds %s", ErrInvalidAmount, balance.String(), FormatAmount(MaxBalance))
	}
	return nil
}

// ToMinorUnits converts an amount to integer cents.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(AmountScale).Round(0).IntPart()
}

// FromMinorUnits converts integer cents back to an amount.
func FromMinorUnits(units int64) decimal.Decimal {
	return decimal.New(units, -AmountScale)
}

// FormatAmount renders an amount with exactly AmountScale decimals.
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(AmountScale)
}
