package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxDescriptionLength bounds the free-text label of an entry.
const MaxDescriptionLength = 255

// ApplyRequest asks the engine to apply one signed amount to an account.
type ApplyRequest struct {
	AccountID   int64
	Kind        EntryKind
	Amount      decimal.Decimal
	Description string
	Category    string
	// RefID is an optional caller idempotency key. uuid.Nil disables replay detection.
	RefID uuid.UUID
}

// Validate checks everything that does not depend on the stored balance.
func (r *ApplyRequest) Validate() error {
	if !r.Kind.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, r.Kind)
	}
	if err := ValidateAmount(r.Amount); err != nil {
		return err
	}
	desc := strings.TrimSpace(r.Description)
	if desc == "" {
		return fmt.Errorf("%w: description is required", ErrInvalidRequest)
	}
	if utf8.RuneCountInString(desc) > MaxDescriptionLength {
		return fmt.Errorf("%w: description longer than %d characters", ErrInvalidRequest, MaxDescriptionLength)
	}
	if utf8.RuneCountInString(r.Category) > MaxDescriptionLength {
		return fmt.Errorf("%w: category longer than %d characters", ErrInvalidRequest, MaxDescriptionLength)
	}
	return nil
}

// NewEntry builds the uncommitted entry for this request.
// ID and CreatedAt are assigned by the store at commit time.
func (r *ApplyRequest) NewEntry(balanceAfter decimal.Decimal) *LedgerEntry {
	return &LedgerEntry{
		AccountID:    r.AccountID,
		RefID:        r.RefID,
		Kind:         r.Kind,
		Amount:       r.Amount,
		Description:  strings.TrimSpace(r.Description),
		Category:     strings.TrimSpace(r.Category),
		BalanceAfter: balanceAfter,
	}
}
