// Package redislock runs a function while holding a Redis (redsync) mutex.
package redislock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"

	"github.com/JoeShih716/go-bank-ledger/pkg/logger"
)

var (
	ErrEmptyKey = errors.New("lock key cannot be empty")
	ErrNilFn    = errors.New("lock function is nil")
)

// Options tunes one lock acquisition.
type Options struct {
	Expiry     time.Duration
	Tries      int
	RetryDelay time.Duration
}

func DefaultOptions() Options {
	return Options{
		Expiry:     10 * time.Second,
		Tries:      3,
		RetryDelay: 500 * time.Millisecond,
	}
}

// Manager hands out redsync mutexes on one Redis deployment.
type Manager struct {
	rs  *redsync.Redsync
	log *logger.Logger
}

func New(client redis.UniversalClient, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{
		rs:  redsync.New(goredis.NewPool(client)),
		log: log,
	}
}

// WithLock blocks (within opts.Tries) until the lock is held, then runs fn.
func (m *Manager) WithLock(ctx context.Context, key string, opts Options, fn func(context.Context) error) error {
	acquired, err := m.run(ctx, key, opts, fn)
	if err != nil {
		return err
	}
	if !acquired {
		return fmt.Errorf("lock %s: %w", key, redsync.ErrFailed)
	}
	return nil
}

// TryWithLock makes a single attempt. acquired is false when another holder
// has the lock; that is not an error.
func (m *Manager) TryWithLock(ctx context.Context, key string, expiry time.Duration, fn func(context.Context) error) (acquired bool, err error) {
	return m.run(ctx, key, Options{Expiry: expiry, Tries: 1}, fn)
}

func (m *Manager) run(ctx context.Context, key string, opts Options, fn func(context.Context) error) (bool, error) {
	if strings.TrimSpace(key) == "" {
		return false, ErrEmptyKey
	}
	if fn == nil {
		return false, ErrNilFn
	}
	defaults := DefaultOptions()
	if opts.Expiry <= 0 {
		opts.Expiry = defaults.Expiry
	}
	if opts.Tries <= 0 {
		opts.Tries = defaults.Tries
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaults.RetryDelay
	}

	mutex := m.rs.NewMutex(key,
		redsync.WithExpiry(opts.Expiry),
		redsync.WithTries(opts.Tries),
		redsync.WithRetryDelay(opts.RetryDelay),
	)
	ctx = m.log.WithField(ctx, "lock_key", key)

	if err := mutex.LockContext(ctx); err != nil {
		if isContention(err) {
			m.log.Debug(ctx, "lock held elsewhere")
			return false, nil
		}
		return false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	defer func() {
		// release even if the caller's ctx is already done
		if ok, err := mutex.UnlockContext(context.WithoutCancel(ctx)); !ok || err != nil {
			m.log.Warn(ctx, "lock release failed or lock already expired", err)
		}
	}()

	if err := fn(ctx); err != nil {
		return true, err
	}
	return true, nil
}

func isContention(err error) bool {
	if errors.Is(err, redsync.ErrFailed) {
		return true
	}
	var taken *redsync.ErrTaken
	if errors.As(err, &taken) {
		return true
	}
	return strings.Contains(err.Error(), "lock already taken")
}
