package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Account is the single authoritative balance of one owner.
// It is only mutated by the ledger engine inside the account's critical section.
type Account struct {
	ID        int64
	Balance   decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewAccount(id int64, balance decimal.Decimal) *Account {
	return &Account{
		ID:      id,
		Balance: balance,
	}
}

// Credit returns the balance after adding amount.
// The balance may never exceed MaxBalance.
func (a *Account) Credit(amount decimal.Decimal) (decimal.Decimal, error) {
	if err := ValidateAmount(amount); err != nil {
		return a.Balance, err
	}
	next := a.Balance.Add(amount)
	if next.GreaterThan(MaxBalance) {
		return a.Balance, fmt.Errorf("%w: credit of %s would take the balance past %s",
			ErrInvalidAmount, FormatAmount(amount), FormatAmount(MaxBalance))
	}
	return next, nil
}

// Debit returns the balance after removing amount.
// The balance may never go below zero.
func (a *Account) Debit(amount decimal.Decimal) (decimal.Decimal, error) {
	if err := ValidateAmount(amount); err != nil {
		return a.Balance, err
	}
	if a.Balance.LessThan(amount) {
		return a.Balance, ErrInsufficientFunds
	}
	return a.Balance.Sub(amount), nil
}

// Apply computes the balance produced by an entry of the given kind.
func (a *Account) Apply(kind EntryKind, amount decimal.Decimal) (decimal.Decimal, error) {
	switch kind {
	case EntryKindCredit:
		return a.Credit(amount)
	case EntryKindDebit:
		return a.Debit(amount)
	default:
		return a.Balance, ErrInvalidKind
	}
}
