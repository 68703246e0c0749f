package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventEntryCommitted names the event published for every committed entry.
const EventEntryCommitted = "ledger.entry.committed"

// EntryCommitted is the outbound notification for one committed entry.
// Amounts are fixed-point strings so consumers never see float rounding.
type EntryCommitted struct {
	EntryID      uint64    `json:"entry_id"`
	AccountID    int64     `json:"account_id"`
	RefID        string    `json:"ref_id,omitempty"`
	Kind         EntryKind `json:"kind"`
	Amount       string    `json:"amount"`
	Description  string    `json:"description"`
	Category     string    `json:"category,omitempty"`
	BalanceAfter string    `json:"balance_after"`
	CommittedAt  time.Time `json:"committed_at"`
}

func NewEntryCommitted(e LedgerEntry) EntryCommitted {
	ev := EntryCommitted{
		EntryID:      e.ID,
		AccountID:    e.AccountID,
		Kind:         e.Kind,
		Amount:       FormatAmount(e.Amount),
		Description:  e.Description,
		Category:     e.Category,
		BalanceAfter: FormatAmount(e.BalanceAfter),
		CommittedAt:  e.CreatedAt,
	}
	if e.RefID != uuid.Nil {
		ev.RefID = e.RefID.String()
	}
	return ev
}
