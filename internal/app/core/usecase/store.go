package usecase

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// ListOptions pages through an account's entries, newest first.
type ListOptions struct {
	// Limit caps the page size. Zero means no limit.
	Limit int
	// BeforeID restarts the listing below this entry id. Zero starts from the newest entry.
	BeforeID uint64
}

// AccountTx is the view of one account inside its critical section.
// It must not be used after the WithAccountLock callback returns.
type AccountTx interface {
	// ReadBalance returns the authoritative balance (including this tx's own write).
	ReadBalance(ctx context.Context) (decimal.Decimal, error)
	// WriteBalance stages the new balance.
	WriteBalance(ctx context.Context, balance decimal.Decimal) error
	// AppendEntry stages an entry. ID and CreatedAt are filled when the store commits.
	AppendEntry(ctx context.Context, entry *domain.LedgerEntry) error
	// FindByRef returns the committed entry carrying refID, or ErrEntryNotFound.
	FindByRef(ctx context.Context, refID uuid.UUID) (*domain.LedgerEntry, error)
}

// LedgerStore is the durable home of accounts and their entries.
//
// WithAccountLock gives fn exclusive access to one account. The staged balance
// and entries are committed together when fn returns nil and discarded otherwise.
// A nil return means the commit is durable.
type LedgerStore interface {
	WithAccountLock(ctx context.Context, accountID int64, fn func(ctx context.Context, tx AccountTx) error) error

	OpenAccount(ctx context.Context, account *domain.Account) error
	AccountExists(ctx context.Context, accountID int64) (bool, error)
	LoadAllAccounts(ctx context.Context) (map[int64]*domain.Account, error)

	GetBalance(ctx context.Context, accountID int64) (decimal.Decimal, error)
	ListEntries(ctx context.Context, accountID int64, opts ListOptions) ([]domain.LedgerEntry, error)
	GetEntry(ctx context.Context, accountID int64, entryID uint64) (*domain.LedgerEntry, error)
	// ListCommittedAfter returns entries of every account with ID > afterID, ascending.
	ListCommittedAfter(ctx context.Context, afterID uint64, limit int) ([]domain.LedgerEntry, error)
}
