package sqlstore

import (
	"time"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// sqlAccount maps the accounts table. Balance is in minor units.
type sqlAccount struct {
	ID        int64 `gorm:"primaryKey;autoIncrement:false"`
	Balance   int64 `gorm:"not null"`
	Version   int64 `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (*sqlAccount) TableName() string {
	return "accounts"
}

func (a *sqlAccount) toDomain() *domain.Account {
	return &domain.Account{
		ID:        a.ID,
		Balance:   domain.FromMinorUnits(a.Balance),
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// entrySequence names the counter row that hands out entry ids.
const entrySequence = "ledger_entries"

// sqlSequence maps the ledger_sequences table. Value is the last id handed out.
// The row is taken FOR UPDATE at commit, so ids are assigned in commit order
// and a rolled back commit gives its ids back.
type sqlSequence struct {
	Name  string `gorm:"primaryKey;size:64"`
	Value uint64 `gorm:"not null"`
}

func (*sqlSequence) TableName() string {
	return "ledger_sequences"
}

// sqlEntry maps the ledger_entries table.
// ID comes from the ledger_entries sequence row, not from the database.
// RefID is NULL when the caller sent no idempotency key.
type sqlEntry struct {
	ID           uint64  `gorm:"primaryKey;autoIncrement:false"`
	AccountID    int64   `gorm:"not null;index:idx_entries_account;uniqueIndex:idx_entries_ref,priority:1"`
	RefID        *string `gorm:"column:ref_id;size:36;uniqueIndex:idx_entries_ref,priority:2"`
	Kind         string  `gorm:"size:8;not null"`
	Amount       int64   `gorm:"not null"`
	Description  string  `gorm:"size:255;not null"`
	Category     string  `gorm:"size:255"`
	BalanceAfter int64   `gorm:"not null"`
	CreatedAt    time.Time
}

func (*sqlEntry) TableName() string {
	return "ledger_entries"
}

func newSQLEntry(e *domain.LedgerEntry) sqlEntry {
	row := sqlEntry{
		AccountID:    e.AccountID,
		Kind:         string(e.Kind),
		Amount:       domain.ToMinorUnits(e.Amount),
		Description:  e.Description,
		Category:     e.Category,
		BalanceAfter: domain.ToMinorUnits(e.BalanceAfter),
		CreatedAt:    e.CreatedAt,
	}
	if e.RefID != uuid.Nil {
		ref := e.RefID.String()
		row.RefID = &ref
	}
	return row
}

func (r *sqlEntry) toDomain() domain.LedgerEntry {
	e := domain.LedgerEntry{
		ID:           r.ID,
		AccountID:    r.AccountID,
		Kind:         domain.EntryKind(r.Kind),
		Amount:       domain.FromMinorUnits(r.Amount),
		Description:  r.Description,
		Category:     r.Category,
		BalanceAfter: domain.FromMinorUnits(r.BalanceAfter),
		CreatedAt:    r.CreatedAt.UTC(),
	}
	if r.RefID != nil {
		if ref, err := uuid.Parse(*r.RefID); err == nil {
			e.RefID = ref
		}
	}
	return e
}
