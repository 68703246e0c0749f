package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/semaphore"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
)

// Journal is the durable log behind the store. *wal.WAL implements it.
type Journal interface {
	Append(v any) error
	Replay(fn func(raw json.RawMessage) error) error
}

const (
	opOpen   = "open"
	opCommit = "commit"
)

// walRecord is one WAL line.
// A commit carries the new balance and its entries together so replay never
// sees one without the other.
type walRecord struct {
	Op        string               `json:"op"`
	AccountID int64                `json:"account_id"`
	Balance   decimal.Decimal      `json:"balance"`
	CreatedAt time.Time            `json:"created_at"`
	Entries   []domain.LedgerEntry `json:"entries,omitempty"`
}

// accountState holds one account. writer serialises WithAccountLock callers;
// mu guards the fields for concurrent readers.
type accountState struct {
	writer  *semaphore.Weighted
	mu      sync.RWMutex
	account domain.Account
	entries []domain.LedgerEntry
	byRef   map[uuid.UUID]int
}

func newAccountState(account domain.Account) *accountState {
	return &accountState{
		writer:  semaphore.NewWeighted(1),
		account: account,
		byRef:   make(map[uuid.UUID]int),
	}
}

// MutexStore keeps accounts in memory behind per-account locks, with a WAL for durability.
//
// Layout:
//
//	accounts: account id -> state, guarded by mu
//	commitMu: orders entry ids and journal writes
//	feed: every committed entry in id order, guarded by feedMu
type MutexStore struct {
	mu       sync.RWMutex
	accounts map[int64]*accountState

	commitMu sync.Mutex
	seq      uint64
	journal  Journal

	feedMu sync.RWMutex
	feed   []domain.LedgerEntry

	now func() time.Time
}

// Option configures a MutexStore.
type Option func(*MutexStore)

// WithClock overrides the commit timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *MutexStore) {
		s.now = now
	}
}

// NewMutexStore 建立記憶體帳本並重播 WAL
//
// 參數:
//
//	accounts: map[int64]*domain.Account - 初始帳戶 (例如從 SQL store 載入)，可為 nil
//	journal: Journal - 持久化日誌，nil 表示只存在記憶體
//
// 回傳值:
//
//	*MutexStore: 在初始帳戶之上重播完日誌的 store
//	error: 重播失敗時回傳錯誤
func NewMutexStore(accounts map[int64]*domain.Account, journal Journal, opts ...Option) (*MutexStore, error) {
	s := &MutexStore{
		accounts: make(map[int64]*accountState, len(accounts)),
		journal:  journal,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	for id, acc := range accounts {
		s.accounts[id] = newAccountState(*acc)
	}
	if journal != nil {
		if err := s.recoverFromJournal(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// recoverFromJournal rebuilds state from the WAL.
// Only called from the constructor, so no locking.
func (s *MutexStore) recoverFromJournal() error {
	return s.journal.Replay(func(raw json.RawMessage) error {
		var rec walRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("decode wal record: %w", err)
		}
		switch rec.Op {
		case opOpen:
			if _, ok := s.accounts[rec.AccountID]; ok {
				return nil
			}
			s.accounts[rec.AccountID] = newAccountState(domain.Account{
				ID:        rec.AccountID,
				Balance:   rec.Balance,
				CreatedAt: rec.CreatedAt,
				UpdatedAt: rec.CreatedAt,
			})
		case opCommit:
			state, ok := s.accounts[rec.AccountID]
			if !ok {
				return fmt.Errorf("wal commit for unknown account %d", rec.AccountID)
			}
			s.install(state, rec.Balance, rec.CreatedAt, rec.Entries)
			for _, e := range rec.Entries {
				if e.ID > s.seq {
					s.seq = e.ID
				}
			}
		default:
			return fmt.Errorf("unknown wal op %q", rec.Op)
		}
		return nil
	})
}

func (s *MutexStore) state(accountID int64) (*accountState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrAccountNotFound, accountID)
	}
	return state, nil
}

// WithAccountLock implements usecase.LedgerStore.
func (s *MutexStore) WithAccountLock(ctx context.Context, accountID int64, fn func(ctx context.Context, tx usecase.AccountTx) error) error {
	state, err := s.state(accountID)
	if err != nil {
		return err
	}
	if err := state.writer.Acquire(ctx, 1); err != nil {
		return err
	}
	defer state.writer.Release(1)

	state.mu.RLock()
	tx := &accountTx{state: state, balance: state.account.Balance}
	state.mu.RUnlock()

	err = fn(ctx, tx)
	tx.closed = true
	if err != nil {
		return err
	}
	if !tx.dirty && len(tx.staged) == 0 {
		return nil
	}
	// Last point where cancellation wins. After the journal write the outcome is committed.
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.commit(state, tx)
}

func (s *MutexStore) commit(state *accountState, tx *accountTx) error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	now := s.now().UTC()
	entries := make([]domain.LedgerEntry, len(tx.staged))
	for i, staged := range tx.staged {
		entries[i] = *staged
		entries[i].ID = s.seq + uint64(i) + 1
		entries[i].CreatedAt = now
	}
	if s.journal != nil {
		rec := walRecord{
			Op:        opCommit,
			AccountID: state.account.ID,
			Balance:   tx.balance,
			CreatedAt: now,
			Entries:   entries,
		}
		if err := s.journal.Append(rec); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrStorageFailure, err)
		}
	}
	s.seq += uint64(len(entries))
	for i, staged := range tx.staged {
		staged.ID = entries[i].ID
		staged.CreatedAt = now
	}
	s.install(state, tx.balance, now, entries)
	return nil
}

// install makes a commit visible to readers: balance, account log and feed together.
func (s *MutexStore) install(state *accountState, balance decimal.Decimal, at time.Time, entries []domain.LedgerEntry) {
	state.mu.Lock()
	state.account.Balance = balance
	state.account.UpdatedAt = at
	for _, e := range entries {
		if e.RefID != uuid.Nil {
			state.byRef[e.RefID] = len(state.entries)
		}
		state.entries = append(state.entries, e)
	}
	state.mu.Unlock()

	s.feedMu.Lock()
	s.feed = append(s.feed, entries...)
	s.feedMu.Unlock()
}

// OpenAccount implements usecase.LedgerStore.
func (s *MutexStore) OpenAccount(ctx context.Context, account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.ID]; ok {
		return fmt.Errorf("%w: %d", domain.ErrAccountAlreadyExists, account.ID)
	}
	now := s.now().UTC()
	if s.journal != nil {
		rec := walRecord{Op: opOpen, AccountID: account.ID, Balance: account.Balance, CreatedAt: now}
		if err := s.journal.Append(rec); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrStorageFailure, err)
		}
	}
	account.CreatedAt, account.UpdatedAt = now, now
	s.accounts[account.ID] = newAccountState(*account)
	return nil
}

// AccountExists implements usecase.LedgerStore.
func (s *MutexStore) AccountExists(ctx context.Context, accountID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.accounts[accountID]
	return ok, nil
}

// LoadAllAccounts returns a snapshot of every account.
func (s *MutexStore) LoadAllAccounts(ctx context.Context) (map[int64]*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64]*domain.Account, len(s.accounts))
	for id, state := range s.accounts {
		state.mu.RLock()
		acc := state.account
		state.mu.RUnlock()
		out[id] = &acc
	}
	return out, nil
}

// GetBalance returns the committed balance.
func (s *MutexStore) GetBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	state, err := s.state(accountID)
	if err != nil {
		return decimal.Zero, err
	}
	state.mu.RLock()
	defer state.mu.RUnlock()
	return state.account.Balance, nil
}

// ListEntries implements usecase.LedgerStore.
func (s *MutexStore) ListEntries(ctx context.Context, accountID int64, opts usecase.ListOptions) ([]domain.LedgerEntry, error) {
	state, err := s.state(accountID)
	if err != nil {
		return nil, err
	}
	state.mu.RLock()
	defer state.mu.RUnlock()

	end := len(state.entries)
	if opts.BeforeID > 0 {
		end = sort.Search(len(state.entries), func(i int) bool {
			return state.entries[i].ID >= opts.BeforeID
		})
	}
	out := make([]domain.LedgerEntry, 0, end)
	for i := end - 1; i >= 0; i-- {
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
		out = append(out, state.entries[i])
	}
	return out, nil
}

// GetEntry implements usecase.LedgerStore.
func (s *MutexStore) GetEntry(ctx context.Context, accountID int64, entryID uint64) (*domain.LedgerEntry, error) {
	state, err := s.state(accountID)
	if err != nil {
		return nil, err
	}
	state.mu.RLock()
	defer state.mu.RUnlock()

	i := sort.Search(len(state.entries), func(i int) bool {
		return state.entries[i].ID >= entryID
	})
	if i == len(state.entries) || state.entries[i].ID != entryID {
		return nil, fmt.Errorf("%w: %d", domain.ErrEntryNotFound, entryID)
	}
	entry := state.entries[i]
	return &entry, nil
}

// ListCommittedAfter implements usecase.LedgerStore.
func (s *MutexStore) ListCommittedAfter(ctx context.Context, afterID uint64, limit int) ([]domain.LedgerEntry, error) {
	s.feedMu.RLock()
	defer s.feedMu.RUnlock()

	start := sort.Search(len(s.feed), func(i int) bool {
		return s.feed[i].ID > afterID
	})
	end := len(s.feed)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	out := make([]domain.LedgerEntry, end-start)
	copy(out, s.feed[start:end])
	return out, nil
}

// accountTx stages writes until WithAccountLock commits them.
type accountTx struct {
	state   *accountState
	balance decimal.Decimal
	dirty   bool
	staged  []*domain.LedgerEntry
	closed  bool
}

var errTxClosed = fmt.Errorf("%w: account tx used outside its critical section", domain.ErrStorageFailure)

func (t *accountTx) ReadBalance(ctx context.Context) (decimal.Decimal, error) {
	if t.closed {
		return decimal.Zero, errTxClosed
	}
	return t.balance, nil
}

func (t *accountTx) WriteBalance(ctx context.Context, balance decimal.Decimal) error {
	if t.closed {
		return errTxClosed
	}
	if err := domain.ValidateBalance(balance); err != nil {
		return err
	}
	t.balance = balance
	t.dirty = true
	return nil
}

func (t *accountTx) AppendEntry(ctx context.Context, entry *domain.LedgerEntry) error {
	if t.closed {
		return errTxClosed
	}
	if entry.AccountID != t.state.account.ID {
		return fmt.Errorf("%w: entry for account %d staged on %d", domain.ErrInvalidRequest, entry.AccountID, t.state.account.ID)
	}
	t.staged = append(t.staged, entry)
	return nil
}

func (t *accountTx) FindByRef(ctx context.Context, refID uuid.UUID) (*domain.LedgerEntry, error) {
	t.state.mu.RLock()
	defer t.state.mu.RUnlock()
	i, ok := t.state.byRef[refID]
	if !ok {
		return nil, fmt.Errorf("%w: ref %s", domain.ErrEntryNotFound, refID)
	}
	entry := t.state.entries[i]
	return &entry, nil
}

var _ usecase.LedgerStore = (*MutexStore)(nil)
