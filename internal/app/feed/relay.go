// Package feed relays committed ledger entries to downstream consumers.
//
// Delivery is at-least-once: the cursor is saved after the publisher
// acknowledges a batch, so a crash in between republishes that batch.
// Consumers deduplicate on entry_id.
//
// Both stores hand out gapless entry ids in commit order. The relay only moves
// the cursor across contiguous ids. A missing id holds the relay back until it
// shows up or the gap has stayed open for the gap timeout, after which it is
// logged and skipped.
package feed

import (
	"context"
	"time"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/pkg/logger"
	"github.com/JoeShih716/go-bank-ledger/pkg/metrics"
)

const (
	defaultBatchSize = 200
	defaultInterval  = time.Second
	defaultLockKey   = "ledger:feed:relay"
	defaultGapWait   = 30 * time.Second
)

// Source lists committed entries in id order. usecase.LedgerStore satisfies it.
type Source interface {
	ListCommittedAfter(ctx context.Context, afterID uint64, limit int) ([]domain.LedgerEntry, error)
}

type Publisher interface {
	Publish(ctx context.Context, events []domain.EntryCommitted) error
}

// Locker keeps a single relay active across instances. *redislock.Manager satisfies it.
type Locker interface {
	TryWithLock(ctx context.Context, key string, expiry time.Duration, fn func(context.Context) error) (bool, error)
}

// Relay is driven by a single goroutine.
type Relay struct {
	source    Source
	publisher Publisher
	cursor    CursorStore
	locker    Locker
	log       *logger.Logger
	metrics   *metrics.LedgerMetrics
	batchSize int
	interval  time.Duration
	lockKey   string
	gapWait   time.Duration
	now       func() time.Time

	// gapAt is the missing id the relay is waiting for, gapSince when it was first seen.
	gapAt    uint64
	gapSince time.Time
}

type Option func(*Relay)

func WithLocker(l Locker, key string) Option {
	return func(r *Relay) {
		r.locker = l
		if key != "" {
			r.lockKey = key
		}
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(r *Relay) {
		if l != nil {
			r.log = l
		}
	}
}

func WithMetrics(m *metrics.LedgerMetrics) Option {
	return func(r *Relay) {
		r.metrics = m
	}
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithGapTimeout sets how long a missing entry id may hold the relay back.
func WithGapTimeout(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.gapWait = d
		}
	}
}

// WithClock overrides the time source used for gap timeouts.
func WithClock(now func() time.Time) Option {
	return func(r *Relay) {
		r.now = now
	}
}

func NewRelay(source Source, publisher Publisher, cursor CursorStore, opts ...Option) *Relay {
	r := &Relay{
		source:    source,
		publisher: publisher,
		cursor:    cursor,
		log:       logger.Nop(),
		batchSize: defaultBatchSize,
		interval:  defaultInterval,
		lockKey:   defaultLockKey,
		gapWait:   defaultGapWait,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls until ctx is done. Errors are logged and the next tick retries.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		if _, err := r.Drain(ctx); err != nil && ctx.Err() == nil {
			r.log.Warn(ctx, "feed relay tick failed", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Drain publishes batches until the source is caught up.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := r.RunOnce(ctx)
		total += n
		if err != nil || n < r.batchSize {
			return total, err
		}
	}
}

// RunOnce publishes at most one batch and advances the cursor.
// When another instance holds the relay lock it does nothing.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	if r.locker == nil {
		return r.publishBatch(ctx)
	}
	var published int
	// the lock outlives a slow batch by a wide margin
	_, err := r.locker.TryWithLock(ctx, r.lockKey, 10*r.interval+30*time.Second, func(ctx context.Context) error {
		n, err := r.publishBatch(ctx)
		published = n
		return err
	})
	return published, err
}

func (r *Relay) publishBatch(ctx context.Context) (int, error) {
	after, err := r.cursor.Load(ctx)
	if err != nil {
		return 0, err
	}
	entries, err := r.source.ListCommittedAfter(ctx, after, r.batchSize)
	if err != nil {
		return 0, err
	}
	entries = r.contiguous(ctx, after, entries)
	if len(entries) == 0 {
		return 0, nil
	}

	events := make([]domain.EntryCommitted, len(entries))
	for i, e := range entries {
		events[i] = domain.NewEntryCommitted(e)
	}
	if err := r.publisher.Publish(ctx, events); err != nil {
		r.metrics.AddPublished("error", len(events))
		return 0, err
	}
	r.metrics.AddPublished("ok", len(events))

	last := entries[len(entries)-1].ID
	if err := r.cursor.Save(ctx, last); err != nil {
		return len(events), err
	}
	r.log.Debug(r.log.WithFields(ctx, map[string]any{
		"published": len(events),
		"cursor":    last,
	}), "feed batch published")
	return len(events), nil
}

// contiguous returns the prefix of entries that continues after without a gap.
// A gap right after the cursor yields nothing until it fills or times out.
func (r *Relay) contiguous(ctx context.Context, after uint64, entries []domain.LedgerEntry) []domain.LedgerEntry {
	if len(entries) == 0 {
		return nil
	}
	if first := entries[0].ID; first != after+1 {
		r.noteGap(after + 1)
		if r.now().Sub(r.gapSince) < r.gapWait {
			return nil
		}
		r.log.Warn(r.log.WithFields(ctx, map[string]any{
			"missing_from": after + 1,
			"missing_to":   first - 1,
		}), "feed relay skipping entry ids that never committed", nil)
	}
	r.gapAt = 0

	next := entries[0].ID
	for i, e := range entries {
		if e.ID != next {
			r.noteGap(next)
			return entries[:i]
		}
		next++
	}
	return entries
}

// noteGap starts the gap clock the first time id is found missing.
func (r *Relay) noteGap(id uint64) {
	if r.gapAt != id {
		r.gapAt, r.gapSince = id, r.now()
	}
}
