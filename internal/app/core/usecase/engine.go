package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/pkg/logger"
	"github.com/JoeShih716/go-bank-ledger/pkg/metrics"
)

const (
	defaultConflictRetries   = 5
	defaultConflictRetryBase = 2 * time.Millisecond
	outcomeCommitted         = "committed"
	outcomeReplayed          = "replayed"
)

// LedgerEngine is the ledger transaction engine.
//
// It validates a mutation, applies it inside the store's per-account critical
// section and returns the committed entry. Every failure leaves the store as if
// the call never happened.
type LedgerEngine struct {
	store      LedgerStore
	log        *logger.Logger
	metrics    *metrics.LedgerMetrics
	maxRetries uint64
	retryBase  time.Duration
}

// EngineOption configures a LedgerEngine.
type EngineOption func(*LedgerEngine)

func WithLogger(l *logger.Logger) EngineOption {
	return func(e *LedgerEngine) {
		if l != nil {
			e.log = l
		}
	}
}

func WithMetrics(m *metrics.LedgerMetrics) EngineOption {
	return func(e *LedgerEngine) {
		e.metrics = m
	}
}

// WithConflictRetry sets how often a ConcurrencyConflict is retried and the
// first backoff delay. maxRetries 0 surfaces conflicts immediately.
func WithConflictRetry(maxRetries uint64, base time.Duration) EngineOption {
	return func(e *LedgerEngine) {
		e.maxRetries = maxRetries
		if base > 0 {
			e.retryBase = base
		}
	}
}

func NewLedgerEngine(store LedgerStore, opts ...EngineOption) *LedgerEngine {
	e := &LedgerEngine{
		store:      store,
		log:        logger.Nop(),
		maxRetries: defaultConflictRetries,
		retryBase:  defaultConflictRetryBase,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply 對單一帳戶入帳或扣款，並記錄一筆分錄。
//
// 參數:
//
//	ctx: context.Context - 在 store commit 之前都會檢查取消
//	req: domain.ApplyRequest - 要套用的異動
//
// 回傳值:
//
//	*domain.LedgerEntry: 已提交的分錄 (重送的 RefID 回傳原本那筆)
//	error: 以 domain.KindOf 分類；nil 表示分錄已持久化
func (e *LedgerEngine) Apply(ctx context.Context, req domain.ApplyRequest) (*domain.LedgerEntry, error) {
	start := time.Now()
	ctx = e.log.WithFields(ctx, map[string]any{
		"account_id": req.AccountID,
		"kind":       string(req.Kind),
		"amount":     req.Amount.String(),
	})

	entry, replayed, err := e.apply(ctx, &req)
	err = normalize(err)

	outcome := outcomeCommitted
	switch {
	case err != nil:
		outcome = string(domain.KindOf(err))
	case replayed:
		outcome = outcomeReplayed
	}
	e.metrics.ObserveApply(string(req.Kind), outcome, time.Since(start))
	e.logOutcome(ctx, entry, outcome, err)
	return entry, err
}

func (e *LedgerEngine) apply(ctx context.Context, req *domain.ApplyRequest) (*domain.LedgerEntry, bool, error) {
	// Started -> Validated: nothing here needs the balance, so no lock yet.
	if err := req.Validate(); err != nil {
		return nil, false, err
	}
	ok, err := e.store.AccountExists(ctx, req.AccountID)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, fmt.Errorf("%w: %d", domain.ErrAccountNotFound, req.AccountID)
	}

	var (
		committed *domain.LedgerEntry
		replayed  bool
	)
	backoff := retry.WithMaxRetries(e.maxRetries, retry.WithJitterPercent(20, retry.NewExponential(e.retryBase)))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		entry, again, err := e.applyLocked(ctx, req)
		if errors.Is(err, domain.ErrConcurrencyConflict) {
			e.metrics.IncConflictRetry()
			e.log.Debug(ctx, "version conflict, retrying from a fresh balance")
			return retry.RetryableError(err)
		}
		if err != nil {
			return err
		}
		committed, replayed = entry, again
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return committed, replayed, nil
}

// applyLocked runs Locked -> BalanceComputed -> Committed for one attempt.
func (e *LedgerEngine) applyLocked(ctx context.Context, req *domain.ApplyRequest) (*domain.LedgerEntry, bool, error) {
	var (
		entry    *domain.LedgerEntry
		replayed bool
	)
	err := e.store.WithAccountLock(ctx, req.AccountID, func(ctx context.Context, tx AccountTx) error {
		if req.RefID != uuid.Nil {
			prior, err := tx.FindByRef(ctx, req.RefID)
			switch {
			case err == nil:
				if !prior.SameIntent(req) {
					return fmt.Errorf("%w: %s", domain.ErrDuplicateReference, req.RefID)
				}
				entry, replayed = prior, true
				return nil
			case !errors.Is(err, domain.ErrEntryNotFound):
				return err
			}
		}

		balance, err := tx.ReadBalance(ctx)
		if err != nil {
			return err
		}
		account := domain.Account{ID: req.AccountID, Balance: balance}
		next, err := account.Apply(req.Kind, req.Amount)
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := tx.WriteBalance(ctx, next); err != nil {
			return err
		}
		pending := req.NewEntry(next)
		if err := tx.AppendEntry(ctx, pending); err != nil {
			return err
		}
		entry = pending
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return entry, replayed, nil
}

func (e *LedgerEngine) logOutcome(ctx context.Context, entry *domain.LedgerEntry, outcome string, err error) {
	if err == nil {
		ctx = e.log.WithFields(ctx, map[string]any{
			"entry_id":      entry.ID,
			"balance_after": domain.FormatAmount(entry.BalanceAfter),
			"outcome":       outcome,
		})
		e.log.Info(ctx, "ledger entry committed")
		return
	}
	ctx = e.log.WithField(ctx, "outcome", outcome)
	switch domain.KindOf(err) {
	case domain.KindStorageFailure:
		e.log.Error(ctx, "ledger apply aborted", err)
	case domain.KindConcurrencyConflict, domain.KindCanceled:
		e.log.Warn(ctx, "ledger apply aborted", err)
	default:
		e.log.Info(ctx, "ledger apply rejected: "+err.Error())
	}
}

// GetBalance returns the committed balance of the account.
func (e *LedgerEngine) GetBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	balance, err := e.store.GetBalance(ctx, accountID)
	if err != nil {
		return decimal.Zero, normalize(err)
	}
	return balance, nil
}

// ListEntries returns the account's entries newest first.
func (e *LedgerEngine) ListEntries(ctx context.Context, accountID int64, opts ListOptions) ([]domain.LedgerEntry, error) {
	if opts.Limit < 0 {
		return nil, fmt.Errorf("%w: negative limit", domain.ErrInvalidRequest)
	}
	entries, err := e.store.ListEntries(ctx, accountID, opts)
	if err != nil {
		return nil, normalize(err)
	}
	return entries, nil
}

// GetEntry returns one entry of the account.
func (e *LedgerEngine) GetEntry(ctx context.Context, accountID int64, entryID uint64) (*domain.LedgerEntry, error) {
	entry, err := e.store.GetEntry(ctx, accountID, entryID)
	if err != nil {
		return nil, normalize(err)
	}
	return entry, nil
}

// OpenAccount registers an account with its opening balance.
func (e *LedgerEngine) OpenAccount(ctx context.Context, accountID int64, opening decimal.Decimal) (*domain.Account, error) {
	if opening.IsNegative() {
		return nil, fmt.Errorf("%w: opening balance %s", domain.ErrInvalidAmount, opening.String())
	}
	if err := domain.ValidateBalance(opening); err != nil {
		return nil, err
	}
	account := domain.NewAccount(accountID, opening)
	if err := e.store.OpenAccount(ctx, account); err != nil {
		return nil, normalize(err)
	}
	e.log.Info(e.log.WithAccountID(ctx, accountID), "account opened")
	return account, nil
}

// normalize makes every error satisfy errors.Is against exactly one domain sentinel.
func normalize(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		if errors.Is(err, domain.ErrCanceled) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrCanceled, err)
	}
	if domain.KindOf(err) == domain.KindStorageFailure && !errors.Is(err, domain.ErrStorageFailure) {
		return fmt.Errorf("%w: %w", domain.ErrStorageFailure, err)
	}
	return err
}
