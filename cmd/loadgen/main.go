package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/pkg/grpc"
	"github.com/JoeShih716/go-bank-ledger/pkg/logger"
	pb "github.com/JoeShih716/go-bank-ledger/proto"
)

type options struct {
	target      string
	accountID   int64
	total       int
	concurrency int
	debitRatio  float64
	timeout     time.Duration
}

type counters struct {
	committed atomic.Int64
	rejected  atomic.Int64
	failed    atomic.Int64
	// firstID is the lowest entry id committed by this run.
	firstID atomic.Uint64
}

func (c *counters) observe(id uint64) {
	for {
		cur := c.firstID.Load()
		if cur != 0 && cur <= id {
			return
		}
		if c.firstID.CompareAndSwap(cur, id) {
			return
		}
	}
}

func main() {
	var opts options
	flag.StringVar(&opts.target, "target", "localhost:50051", "ledger gRPC address")
	flag.Int64Var(&opts.accountID, "account", 1, "account to load")
	flag.IntVar(&opts.total, "n", 100000, "number of apply calls")
	flag.IntVar(&opts.concurrency, "c", 200, "concurrent callers")
	flag.Float64Var(&opts.debitRatio, "debit-ratio", 0.5, "share of debits")
	flag.DurationVar(&opts.timeout, "timeout", 2*time.Minute, "overall deadline")
	flag.Parse()

	log := logger.New(logger.Options{ServiceName: "ledger-loadgen", Level: zerolog.InfoLevel, Format: "console"})
	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	if err := run(ctx, log, opts); err != nil {
		log.Error(ctx, "load run failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *logger.Logger, opts options) error {
	pool := grpc.NewPool()
	defer pool.Close()
	conn, err := pool.GetConnection(opts.target)
	if err != nil {
		return err
	}
	client := pb.NewLedgerServiceClient(conn)

	before, err := client.GetBalance(ctx, &pb.GetBalanceRequest{AccountId: opts.accountID})
	if err != nil {
		return fmt.Errorf("read opening balance: %w", err)
	}

	var c counters
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.concurrency)
	for i := 0; i < opts.total; i++ {
		g.Go(func() error {
			return applyOne(gctx, client, opts, &c)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	log.Info(log.WithFields(ctx, map[string]any{
		"committed":   c.committed.Load(),
		"rejected":    c.rejected.Load(),
		"failed":      c.failed.Load(),
		"elapsed":     elapsed.String(),
		"tps":         fmt.Sprintf("%.2f", float64(opts.total)/elapsed.Seconds()),
		"opening_bal": before.Balance,
	}), "load run finished")

	return verify(ctx, log, client, opts.accountID, before.Balance, c.firstID.Load())
}

// applyOne sends one random credit or debit. Business rejections are counted,
// not fatal.
func applyOne(ctx context.Context, client pb.LedgerServiceClient, opts options, c *counters) error {
	kind := pb.EntryKindCredit
	if rand.Float64() < opts.debitRatio {
		kind = pb.EntryKindDebit
	}
	amount := domain.FromMinorUnits(100 + rand.Int64N(10000))
	resp, err := client.Apply(ctx, &pb.ApplyRequest{
		AccountId:   opts.accountID,
		Kind:        kind,
		Amount:      domain.FormatAmount(amount),
		Description: "loadgen " + kind,
		Category:    "Load",
		RefId:       uuid.NewString(),
	})
	switch status.Code(err) {
	case codes.OK:
		c.committed.Add(1)
		c.observe(resp.Entry.Id)
	case codes.FailedPrecondition:
		c.rejected.Add(1)
	case codes.Canceled, codes.DeadlineExceeded:
		return err
	default:
		c.failed.Add(1)
	}
	return nil
}

// verify walks the entries committed by this run, newest first, and checks
// that the balance chain leads back to the opening balance.
func verify(ctx context.Context, log *logger.Logger, client pb.LedgerServiceClient, accountID int64, opening string, firstID uint64) error {
	openingBal, err := domain.ParseAmount(opening)
	if err != nil {
		return err
	}
	bal, err := client.GetBalance(ctx, &pb.GetBalanceRequest{AccountId: accountID})
	if err != nil {
		return err
	}
	running, err := domain.ParseAmount(bal.Balance)
	if err != nil {
		return err
	}

	var before uint64
walk:
	for firstID != 0 {
		page, err := client.ListEntries(ctx, &pb.ListEntriesRequest{AccountId: accountID, Limit: 500, BeforeId: before})
		if err != nil {
			return err
		}
		for _, e := range page.Entries {
			if e.Id < firstID {
				break walk
			}
			after, err := decimal.NewFromString(e.BalanceAfter)
			if err != nil {
				return err
			}
			if !after.Equal(running) {
				return fmt.Errorf("entry %d: balance_after %s, expected %s", e.Id, e.BalanceAfter, domain.FormatAmount(running))
			}
			amount, err := decimal.NewFromString(e.Amount)
			if err != nil {
				return err
			}
			if e.Kind == pb.EntryKindDebit {
				running = running.Add(amount)
			} else {
				running = running.Sub(amount)
			}
		}
		if page.NextBeforeId == 0 {
			break
		}
		before = page.NextBeforeId
	}
	if !running.Equal(openingBal) {
		return fmt.Errorf("entry chain leads to %s, opening balance was %s", domain.FormatAmount(running), opening)
	}
	log.Info(log.WithField(ctx, "balance", bal.Balance), "balance matches the entry chain")
	return nil
}
