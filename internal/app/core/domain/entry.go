package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryKind is the direction of an entry.
type EntryKind string

const (
	// EntryKindCredit increases the balance.
	EntryKindCredit EntryKind = "credit"
	// EntryKindDebit decreases the balance.
	EntryKindDebit EntryKind = "debit"
)

func (k EntryKind) IsValid() bool {
	return k == EntryKindCredit || k == EntryKindDebit
}

// ParseEntryKind accepts "credit"/"debit" in any case.
func ParseEntryKind(s string) (EntryKind, error) {
	k := EntryKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", ErrInvalidKind
	}
	return k, nil
}

// LedgerEntry is one committed, immutable credit or debit.
//
// ID is assigned at commit time and orders the entries of one account.
// BalanceAfter is the account balance immediately after this entry.
type LedgerEntry struct {
	ID           uint64          `json:"id"`
	AccountID    int64           `json:"account_id"`
	RefID        uuid.UUID       `json:"ref_id"`
	Kind         EntryKind       `json:"kind"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
	Category     string          `json:"category,omitempty"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	CreatedAt    time.Time       `json:"created_at"`
}

// SignedAmount is +Amount for credits and -Amount for debits.
func (e *LedgerEntry) SignedAmount() decimal.Decimal {
	if e.Kind == EntryKindDebit {
		return e.Amount.Neg()
	}
	return e.Amount
}

// SameIntent reports whether e was produced by a request equivalent to req.
// Used to answer a replayed ref id.
func (e *LedgerEntry) SameIntent(req *ApplyRequest) bool {
	return e.AccountID == req.AccountID &&
		e.Kind == req.Kind &&
		e.Amount.Equal(req.Amount)
}
