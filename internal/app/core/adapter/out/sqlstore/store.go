package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/pkg/database"
)

var errTxClosed = fmt.Errorf("%w: account tx used outside its lock", domain.ErrStorageFailure)

// Store persists accounts and entries through gorm.
//
// The account row is taken with SELECT ... FOR UPDATE for the length of the
// callback, and the balance write is additionally guarded by the version
// column so a driver without row locks (sqlite) still detects lost updates.
// Entry ids come from a sequence row locked at commit, so they are gapless and
// follow commit order. Migrate must have run before the first write.
type Store struct {
	client *database.Client
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the commit timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func NewStore(client *database.Client, opts ...Option) *Store {
	s := &Store{client: client, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate creates or updates the ledger tables and the entry id sequence.
// The sequence starts after the highest entry id already stored.
func (s *Store) Migrate(ctx context.Context) error {
	db := s.client.DB().WithContext(ctx)
	if err := db.AutoMigrate(&sqlAccount{}, &sqlEntry{}, &sqlSequence{}); err != nil {
		return fmt.Errorf("migrate ledger schema: %w", err)
	}
	var last uint64
	if err := db.Model(&sqlEntry{}).Select("COALESCE(MAX(id), 0)").Scan(&last).Error; err != nil {
		return fmt.Errorf("migrate ledger schema: read last entry id: %w", err)
	}
	seq := sqlSequence{Name: entrySequence, Value: last}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seq).Error; err != nil {
		return fmt.Errorf("migrate ledger schema: seed entry sequence: %w", err)
	}
	return nil
}

// timestamp is truncated to what DATETIME(3) keeps, so what we return equals what is read back.
func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// WithAccountLock implements usecase.LedgerStore.
func (s *Store) WithAccountLock(ctx context.Context, accountID int64, fn func(ctx context.Context, tx usecase.AccountTx) error) error {
	var (
		staged []*domain.LedgerEntry
		rows   []sqlEntry
	)
	err := s.client.WithTx(ctx, func(db *gorm.DB) error {
		var acc sqlAccount
		err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", accountID).
			Take(&acc).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %d", domain.ErrAccountNotFound, accountID)
		}
		if err != nil {
			return storageErr("lock account", err)
		}

		tx := &accountTx{db: db, accountID: accountID, balance: domain.FromMinorUnits(acc.Balance)}
		err = fn(ctx, tx)
		tx.closed = true
		if err != nil {
			return err
		}
		if !tx.dirty && len(tx.staged) == 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		now := s.timestamp()
		res := db.Model(&sqlAccount{}).
			Where("id = ? AND version = ?", accountID, acc.Version).
			Updates(map[string]any{
				"balance":    domain.ToMinorUnits(tx.balance),
				"version":    acc.Version + 1,
				"updated_at": now,
			})
		if res.Error != nil {
			return storageErr("update balance", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: account %d version %d", domain.ErrConcurrencyConflict, accountID, acc.Version)
		}

		if len(tx.staged) == 0 {
			return nil
		}
		first, err := nextEntryIDs(db, len(tx.staged))
		if err != nil {
			return err
		}
		rows = make([]sqlEntry, len(tx.staged))
		for i, e := range tx.staged {
			e.CreatedAt = now
			rows[i] = newSQLEntry(e)
			rows[i].ID = first + uint64(i)
		}
		if err := db.Create(&rows).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: %w", domain.ErrDuplicateReference, err)
			}
			return storageErr("insert entries", err)
		}
		staged = tx.staged
		return nil
	})
	if err != nil {
		return s.commitErr(ctx, err)
	}
	for i, e := range staged {
		e.ID = rows[i].ID
	}
	return nil
}

// nextEntryIDs reserves n consecutive entry ids and returns the first.
// The sequence row stays locked until the surrounding transaction ends, which
// orders entry ids by commit across all accounts.
func nextEntryIDs(db *gorm.DB, n int) (uint64, error) {
	var seq sqlSequence
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("name = ?", entrySequence).
		Take(&seq).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, storageErr("lock entry sequence", fmt.Errorf("sequence %q missing, run Migrate", entrySequence))
	}
	if err != nil {
		return 0, storageErr("lock entry sequence", err)
	}
	err = db.Model(&sqlSequence{}).
		Where("name = ?", entrySequence).
		Update("value", seq.Value+uint64(n)).Error
	if err != nil {
		return 0, storageErr("advance entry sequence", err)
	}
	return seq.Value + 1, nil
}

// commitErr classifies a failed transaction. A commit that lost to the
// context was rolled back, so it is reported as a cancellation.
func (s *Store) commitErr(ctx context.Context, err error) error {
	if ctx.Err() != nil && domain.KindOf(err) == domain.KindStorageFailure {
		return fmt.Errorf("%w: %w", domain.ErrCanceled, ctx.Err())
	}
	return storageErr("commit", err)
}

// OpenAccount implements usecase.LedgerStore.
func (s *Store) OpenAccount(ctx context.Context, account *domain.Account) error {
	now := s.timestamp()
	row := sqlAccount{
		ID:        account.ID,
		Balance:   domain.ToMinorUnits(account.Balance),
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.client.DB().WithContext(ctx).Create(&row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %d", domain.ErrAccountAlreadyExists, account.ID)
	}
	if err != nil {
		return storageErr("open account", err)
	}
	account.CreatedAt, account.UpdatedAt = now, now
	return nil
}

// AccountExists implements usecase.LedgerStore.
func (s *Store) AccountExists(ctx context.Context, accountID int64) (bool, error) {
	var count int64
	err := s.client.DB().WithContext(ctx).Model(&sqlAccount{}).Where("id = ?", accountID).Count(&count).Error
	if err != nil {
		return false, storageErr("account exists", err)
	}
	return count > 0, nil
}

// LoadAllAccounts implements usecase.LedgerStore.
func (s *Store) LoadAllAccounts(ctx context.Context) (map[int64]*domain.Account, error) {
	var rows []sqlAccount
	if err := s.client.DB().WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, storageErr("load accounts", err)
	}
	accounts := make(map[int64]*domain.Account, len(rows))
	for i := range rows {
		accounts[rows[i].ID] = rows[i].toDomain()
	}
	return accounts, nil
}

// GetBalance implements usecase.LedgerStore.
func (s *Store) GetBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	var acc sqlAccount
	err := s.client.DB().WithContext(ctx).Where("id = ?", accountID).Take(&acc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, fmt.Errorf("%w: %d", domain.ErrAccountNotFound, accountID)
	}
	if err != nil {
		return decimal.Zero, storageErr("get balance", err)
	}
	return domain.FromMinorUnits(acc.Balance), nil
}

// ListEntries implements usecase.LedgerStore.
func (s *Store) ListEntries(ctx context.Context, accountID int64, opts usecase.ListOptions) ([]domain.LedgerEntry, error) {
	ok, err := s.AccountExists(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrAccountNotFound, accountID)
	}

	q := s.client.DB().WithContext(ctx).Where("account_id = ?", accountID)
	if opts.BeforeID > 0 {
		q = q.Where("id < ?", opts.BeforeID)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	var rows []sqlEntry
	if err := q.Order("id DESC").Find(&rows).Error; err != nil {
		return nil, storageErr("list entries", err)
	}
	return toDomainEntries(rows), nil
}

// GetEntry implements usecase.LedgerStore.
func (s *Store) GetEntry(ctx context.Context, accountID int64, entryID uint64) (*domain.LedgerEntry, error) {
	var row sqlEntry
	err := s.client.DB().WithContext(ctx).
		Where("account_id = ? AND id = ?", accountID, entryID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		ok, existsErr := s.AccountExists(ctx, accountID)
		if existsErr != nil {
			return nil, existsErr
		}
		if !ok {
			return nil, fmt.Errorf("%w: %d", domain.ErrAccountNotFound, accountID)
		}
		return nil, fmt.Errorf("%w: account %d entry %d", domain.ErrEntryNotFound, accountID, entryID)
	}
	if err != nil {
		return nil, storageErr("get entry", err)
	}
	e := row.toDomain()
	return &e, nil
}

// ListCommittedAfter implements usecase.LedgerStore.
func (s *Store) ListCommittedAfter(ctx context.Context, afterID uint64, limit int) ([]domain.LedgerEntry, error) {
	q := s.client.DB().WithContext(ctx).Where("id > ?", afterID).Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []sqlEntry
	if err := q.Find(&rows).Error; err != nil {
		return nil, storageErr("list committed", err)
	}
	return toDomainEntries(rows), nil
}

func toDomainEntries(rows []sqlEntry) []domain.LedgerEntry {
	out := make([]domain.LedgerEntry, len(rows))
	for i := range rows {
		out[i] = rows[i].toDomain()
	}
	return out
}

// storageErr wraps driver errors; domain and context errors pass through.
func storageErr(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if domain.KindOf(err) != domain.KindStorageFailure || errors.Is(err, domain.ErrStorageFailure) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrStorageFailure, op, err)
}

// accountTx stages writes for one locked account.
type accountTx struct {
	db        *gorm.DB
	accountID int64
	balance   decimal.Decimal
	dirty     bool
	staged    []*domain.LedgerEntry
	closed    bool
}

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
	if entry.AccountID != t.accountID {
		return fmt.Errorf("%w: entry for account %d in tx of %d", domain.ErrInvalidRequest, entry.AccountID, t.accountID)
	}
	t.staged = append(t.staged, entry)
	return nil
}

func (t *accountTx) FindByRef(ctx context.Context, refID uuid.UUID) (*domain.LedgerEntry, error) {
	if t.closed {
		return nil, errTxClosed
	}
	var row sqlEntry
	err := t.db.Where("account_id = ? AND ref_id = ?", t.accountID, refID.String()).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: ref %s", domain.ErrEntryNotFound, refID)
	}
	if err != nil {
		return nil, storageErr("find by ref", err)
	}
	e := row.toDomain()
	return &e, nil
}

var _ usecase.LedgerStore = (*Store)(nil)
