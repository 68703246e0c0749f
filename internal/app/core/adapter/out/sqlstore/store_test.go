package sqlstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/pkg/database"
)

var fixedNow = time.Date(2026, 3, 1, 9, 30, 15, 123_000_000, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	client, err := database.NewClient(ctx, database.Config{
		Driver:       database.DriverSQLite,
		Path:         "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
		LogLevel:     "silent",
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store := NewStore(client, WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, store.Migrate(ctx))
	return store
}

func openAccount(t *testing.T, s *Store, id int64, opening string) {
	t.Helper()
	require.NoError(t, s.OpenAccount(context.Background(), domain.NewAccount(id, domain.MustAmount(opening))))
}

func credit(id int64, amount string) domain.ApplyRequest {
	return domain.ApplyRequest{AccountID: id, Kind: domain.EntryKindCredit, Amount: domain.MustAmount(amount), Description: "deposit"}
}

func debit(id int64, amount string) domain.ApplyRequest {
	return domain.ApplyRequest{AccountID: id, Kind: domain.EntryKindDebit, Amount: domain.MustAmount(amount), Description: "purchase", Category: "Shopping"}
}

func TestOpenAccount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	openAccount(t, s, 7, "150.25")

	ok, err := s.AccountExists(ctx, 7)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.AccountExists(ctx, 8)
	require.NoError(t, err)
	assert.False(t, ok)

	bal, err := s.GetBalance(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "150.25", domain.FormatAmount(bal))

	err = s.OpenAccount(ctx, domain.NewAccount(7, decimal.Zero))
	assert.ErrorIs(t, err, domain.ErrAccountAlreadyExists)

	_, err = s.GetBalance(ctx, 8)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestApplyThroughEngine(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	openAccount(t, s, 1, "100.00")
	engine := usecase.NewLedgerEngine(s)

	first, err := engine.Apply(ctx, credit(1, "50.00"))
	require.NoError(t, err)
	assert.Equal(t, "150.00", domain.FormatAmount(first.BalanceAfter))
	assert.NotZero(t, first.ID)
	assert.True(t, first.CreatedAt.Equal(fixedNow))

	_, err = engine.Apply(ctx, debit(1, "200.00"))
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	second, err := engine.Apply(ctx, debit(1, "149.99"))
	require.NoError(t, err)
	assert.Equal(t, "0.01", domain.FormatAmount(second.BalanceAfter))
	assert.Greater(t, second.ID, first.ID)

	entries, err := s.ListEntries(ctx, 1, usecase.ListOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, second.ID, entries[0].ID, "newest first")
	assert.Equal(t, "Shopping", entries[0].Category)
	assert.Equal(t, domain.EntryKindDebit, entries[0].Kind)
	assert.Equal(t, "149.99", domain.FormatAmount(entries[0].Amount))

	got, err := s.GetEntry(ctx, 1, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.True(t, got.CreatedAt.Equal(fixedNow))
	assert.Equal(t, "150.00", domain.FormatAmount(got.BalanceAfter))

	_, err = s.GetEntry(ctx, 1, second.ID+100)
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)
}

func TestCallbackErrorRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	openAccount(t, s, 1, "10.00")

	boom := errors.New("boom")
	err := s.WithAccountLock(ctx, 1, func(ctx context.Context, tx usecase.AccountTx) error {
		require.NoError(t, tx.WriteBalance(ctx, domain.MustAmount("99.00")))
		require.NoError(t, tx.AppendEntry(ctx, &domain.LedgerEntry{AccountID: 1, Kind: domain.EntryKindCredit, Amount: domain.MustAmount("89.00"), Description: "x"}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	bal, err := s.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "10.00", domain.FormatAmount(bal))

	entries, err := s.ListEntries(ctx, 1, usecase.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUnknownAccount(t *testing.T) {
	s := newTestStore(t)
	err := s.WithAccountLock(context.Background(), 42, func(context.Context, usecase.AccountTx) error {
		t.Fatal("callback must not run")
		return nil
	})
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, err = s.ListEntries(context.Background(), 42, usecase.ListOptions{})
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, err = s.GetEntry(context.Background(), 42, 1)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestEntryOfAnotherAccountIsNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	openAccount(t, s, 1, "0")
	openAccount(t, s, 2, "0")
	entry, err := usecase.NewLedgerEngine(s).Apply(ctx, credit(1, "5.00"))
	require.NoError(t, err)

	_, err = s.GetEntry(ctx, 2, entry.ID)
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)
}

func TestBalanceStaysInStorableRange(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	openAccount(t, s, 1, "60000000.00")
	engine := usecase.NewLedgerEngine(s)

	_, err := engine.Apply(ctx, credit(1, "60000000.00"))
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = engine.Apply(ctx, credit(1, "39999999.99"))
	require.NoError(t, err)

	err = s.WithAccountLock(ctx, 1, func(ctx context.Context, tx usecase.AccountTx) error {
		return tx.WriteBalance(ctx, domain.MaxBalance.Add(domain.MustAmount("0.01")))
	})
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	bal, err := s.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "99999999.99", domain.FormatAmount(bal))
	assert.False(t, bal.IsNegative())
}

func TestVersionConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	openAccount(t, s, 1, "10.00")

	err := s.WithAccountLock(ctx, 1, func(ctx context.Context, tx usecase.AccountTx) error {
		// another writer slipped in between read and write
		require.NoError(t, tx.(*accountTx).db.Exec("UPDATE accounts SET version = version + 1 WHERE id = ?", 1).Error)
		return tx.WriteBalance(ctx, domain.MustAmount("11.00"))
	})
	require.ErrorIs(t, err, domain.ErrConcurrencyConflict)
	assert.True(t, domain.KindOf(err).Retryable())

	bal, err := s.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "10.00", domain.FormatAmount(bal))
}

func TestClosedTxIsRejected(t *testing.T) {
	s := newTestStore(t)
	openAccount(t, s, 1, "0")

	var leaked usecase.AccountTx
	require.NoError(t, s.WithAccountLock(context.Background(), 1, func(_ context.Context, tx usecase.AccountTx) error {
		leaked = tx
		return nil
	}))
	_, err := leaked.ReadBalance(context.Background())
	assert.ErrorIs(t, err, domain.ErrStorageFailure)
	assert.ErrorIs(t, leaked.WriteBalance(context.Background(), decimal.NewFromInt(1)), domain.ErrStorageFailure)
}

func TestRefIDIsPerAccount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	openAccount(t, s, 1, "100.00")
	openAccount(t, s, 2, "100.00")
	engine := usecase.NewLedgerEngine(s)

	ref := uuid.New()
	r := debit(1, "25.00")
	r.RefID = ref
	first, err := engine.Apply(ctx, r)
	require.NoError(t, err)

	replay, err := engine.Apply(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, first.ID, replay.ID)
	assert.Equal(t, ref, replay.RefID)

	r.Amount = domain.MustAmount("26.00")
	_, err = engine.Apply(ctx, r)
	assert.ErrorIs(t, err, domain.ErrDuplicateReference)

	other := debit(2, "25.00")
	other.RefID = ref
	_, err = engine.Apply(ctx, other)
	require.NoError(t, err)

	bal, err := s.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "75.00", domain.FormatAmount(bal))
}

func TestPagingAndFeed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	openAccount(t, s, 1, "0")
	openAccount(t, s, 2, "0")
	engine := usecase.NewLedgerEngine(s)

	for i := 0; i < 5; i++ {
		_, err := engine.Apply(ctx, credit(1, "1.00"))
		require.NoError(t, err)
		_, err = engine.Apply(ctx, credit(2, "2.00"))
		require.NoError(t, err)
	}

	page, err := s.ListEntries(ctx, 1, usecase.ListOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	next, err := s.ListEntries(ctx, 1, usecase.ListOptions{Limit: 2, BeforeID: page[1].ID})
	require.NoError(t, err)
	require.Len(t, next, 2)
	assert.Less(t, next[0].ID, page[1].ID)
	assert.Equal(t, "3.00", domain.FormatAmount(next[0].BalanceAfter))

	feed, err := s.ListCommittedAfter(ctx, 0, 4)
	require.NoError(t, err)
	require.Len(t, feed, 4)
	for i := 1; i < len(feed); i++ {
		assert.Greater(t, feed[i].ID, feed[i-1].ID)
	}
	rest, err := s.ListCommittedAfter(ctx, feed[3].ID, 0)
	require.NoError(t, err)
	assert.Len(t, rest, 6)
}

func TestConcurrentDebits(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	openAccount(t, s, 1, "100.00")
	engine := usecase.NewLedgerEngine(s)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.Apply(ctx, debit(1, "30.00"))
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, ok)
	bal, err := s.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "10.00", domain.FormatAmount(bal))
}

func TestCanceledContext(t *testing.T) {
	s := newTestStore(t)
	openAccount(t, s, 1, "5.00")
	engine := usecase.NewLedgerEngine(s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := engine.Apply(ctx, credit(1, "1.00"))
	assert.Equal(t, domain.KindCanceled, domain.KindOf(err))

	bal, err := s.GetBalance(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "5.00", domain.FormatAmount(bal))
}

func TestSeedsMemoryStore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	openAccount(t, s, 1, "12.34")
	openAccount(t, s, 2, "0.50")

	accounts, err := s.LoadAllAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 2)

	mem, err := memory.NewMutexStore(accounts, nil)
	require.NoError(t, err)
	bal, err := mem.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "12.34", domain.FormatAmount(bal))
}

func TestEntryIDsAreGaplessAcrossRollbacks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	openAccount(t, s, 1, "0")
	openAccount(t, s, 2, "0")
	engine := usecase.NewLedgerEngine(s)

	ref := uuid.New()
	req := credit(1, "1.00")
	req.RefID = ref
	first, err := engine.Apply(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first.ID)

	// the insert fails on the ref index after the sequence was advanced
	err = s.WithAccountLock(ctx, 1, func(ctx context.Context, tx usecase.AccountTx) error {
		require.NoError(t, tx.WriteBalance(ctx, domain.MustAmount("3.00")))
		dup := req.NewEntry(domain.MustAmount("3.00"))
		return tx.AppendEntry(ctx, dup)
	})
	require.ErrorIs(t, err, domain.ErrDuplicateReference)

	second, err := engine.Apply(ctx, credit(2, "2.00"))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), second.ID, "a rolled back commit gives its id back")

	feed, err := s.ListCommittedAfter(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, feed, 2)
	assert.Equal(t, []uint64{1, 2}, []uint64{feed[0].ID, feed[1].ID})
}

func TestMigrateResumesSequenceAfterExistingEntries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	openAccount(t, s, 1, "0")
	db := s.client.DB()

	require.NoError(t, db.Create(&sqlEntry{ID: 41, AccountID: 1, Kind: "credit", Amount: 100, Description: "imported", BalanceAfter: 100, CreatedAt: fixedNow}).Error)
	require.NoError(t, db.Model(&sqlAccount{}).Where("id = ?", 1).Update("balance", 100).Error)
	require.NoError(t, db.Where("name = ?", entrySequence).Delete(&sqlSequence{}).Error)

	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Migrate(ctx), "migrate is repeatable")

	entry, err := usecase.NewLedgerEngine(s).Apply(ctx, credit(1, "1.00"))
	require.NoError(t, err)
	assert.Equal(t, uint64(42), entry.ID)
	assert.Equal(t, "2.00", domain.FormatAmount(entry.BalanceAfter))
}
