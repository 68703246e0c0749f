package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	grpcadapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/in/grpc"
	kafkaadapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/kafka"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/sqlstore"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/internal/app/feed"
	"github.com/JoeShih716/go-bank-ledger/internal/config"
	"github.com/JoeShih716/go-bank-ledger/pkg/database"
	"github.com/JoeShih716/go-bank-ledger/pkg/logger"
	"github.com/JoeShih716/go-bank-ledger/pkg/metrics"
	"github.com/JoeShih716/go-bank-ledger/pkg/redislock"
	"github.com/JoeShih716/go-bank-ledger/pkg/wal"
	pb "github.com/JoeShih716/go-bank-ledger/proto"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	flag.Parse()

	// 1. config: yaml, then .env / LEDGER_* overrides
	cfg, err := config.Load(*configPath, ".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		ServiceName: cfg.Service.Name,
		Level:       logger.ParseLevel(cfg.Log.Level),
		Format:      cfg.Log.Format,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "ledger core exited", err)
		os.Exit(1)
	}
	log.Info(ctx, "ledger core stopped")
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	ledgerMetrics := metrics.NewLedgerMetrics(reg)
	checks := map[string]readinessCheck{}

	// 2. store
	store, closeStore, err := openStore(ctx, cfg, log, checks)
	if err != nil {
		return err
	}
	defer closeStore()

	// 3. engine + seed accounts
	engine := usecase.NewLedgerEngine(store,
		usecase.WithLogger(log),
		usecase.WithMetrics(ledgerMetrics),
		usecase.WithConflictRetry(cfg.Engine.MaxConflictRetries, cfg.Engine.ConflictRetryBase),
	)
	if err := seedAccounts(ctx, engine, store, cfg.Accounts); err != nil {
		return err
	}

	// 4. gRPC
	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.GRPC.Addr, err)
	}
	grpcServer, health := grpcadapter.NewServer(engine, log)

	// 5. feed relay, built before the ops server reads checks
	var relay *feed.Relay
	if cfg.Feed.Enabled {
		var closeRelay func()
		relay, closeRelay = newRelay(cfg, log, ledgerMetrics, store, checks)
		defer closeRelay()
	}

	// 6. ops http
	opsServer := &http.Server{
		Addr:              cfg.Ops.Addr,
		Handler:           newOpsRouter(log, reg, checks),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(log.WithField(gctx, "addr", cfg.GRPC.Addr), "grpc server listening")
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		log.Info(log.WithField(gctx, "addr", cfg.Ops.Addr), "ops server listening")
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if relay != nil {
		g.Go(func() error {
			log.Info(gctx, "feed relay started")
			return relay.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info(context.Background(), "shutting down")
		health.SetServingStatus(pb.LedgerService_ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = opsServer.Shutdown(shutdownCtx)

		done := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-shutdownCtx.Done():
			grpcServer.Stop()
		}
		return nil
	})
	return g.Wait()
}

// openStore picks the ledger store named by cfg.Store.Backend.
func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger, checks map[string]readinessCheck) (usecase.LedgerStore, func(), error) {
	var (
		closers []func()
		sql     *sqlstore.Store
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Store.Backend == config.BackendSQL || cfg.Store.SeedFromDatabase {
		client, err := database.NewClient(ctx, cfg.Database, log)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() { _ = client.Close() })
		checks["database"] = client.Ping

		sql = sqlstore.NewStore(client)
		if cfg.Store.AutoMigrate {
			if err := sql.Migrate(ctx); err != nil {
				closeAll()
				return nil, nil, err
			}
		}
		log.Info(log.WithField(ctx, "driver", cfg.Database.Driver), "connected to database")
	}

	if cfg.Store.Backend == config.BackendSQL {
		return sql, closeAll, nil
	}

	var accounts map[int64]*domain.Account
	if sql != nil {
		loaded, err := sql.LoadAllAccounts(ctx)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		accounts = loaded
		log.Info(log.WithField(ctx, "accounts", len(accounts)), "seeded memory store from database")
	}

	var journal memory.Journal
	if cfg.Store.WALPath != "" {
		w, err := wal.Open(cfg.Store.WALPath, wal.FileModePrivate)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("open wal: %w", err)
		}
		closers = append(closers, func() { _ = w.Close() })
		journal = w
	}
	store, err := memory.NewMutexStore(accounts, journal)
	if err != nil {
		closeAll()
		return nil, nil, fmt.Errorf("recover memory store: %w", err)
	}
	return store, closeAll, nil
}

// seedAccounts opens configured accounts that do not exist yet.
func seedAccounts(ctx context.Context, engine *usecase.LedgerEngine, store usecase.LedgerStore, seeds []config.AccountSeed) error {
	for _, seed := range seeds {
		exists, err := store.AccountExists(ctx, seed.ID)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		opening := decimal.Zero
		if seed.OpeningBalance != "" {
			if opening, err = domain.ParseAmount(seed.OpeningBalance); err != nil {
				return fmt.Errorf("account %d: %w", seed.ID, err)
			}
		}
		if _, err := engine.OpenAccount(ctx, seed.ID, opening); err != nil && !errors.Is(err, domain.ErrAccountAlreadyExists) {
			return fmt.Errorf("open account %d: %w", seed.ID, err)
		}
	}
	return nil
}

// newRelay wires the feed relay: Kafka publisher, Redis cursor and lock when
// Redis is configured, an in-process cursor otherwise.
func newRelay(cfg *config.Config, log *logger.Logger, m *metrics.LedgerMetrics, source feed.Source, checks map[string]readinessCheck) (*feed.Relay, func()) {
	publisher := kafkaadapter.NewPublisher(cfg.Feed.Kafka)
	opts := []feed.Option{
		feed.WithLogger(log),
		feed.WithMetrics(m),
		feed.WithInterval(cfg.Feed.Interval),
		feed.WithBatchSize(cfg.Feed.BatchSize),
		feed.WithGapTimeout(cfg.Feed.GapTimeout),
	}

	var cursor feed.CursorStore = &feed.MemoryCursor{}
	closers := []func(){func() { _ = publisher.Close() }}
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, func() { _ = client.Close() })
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }

		cursor = feed.NewRedisCursor(client, cfg.Feed.CursorKey)
		opts = append(opts, feed.WithLocker(redislock.New(client, log), cfg.Feed.LockKey))
	}

	relay := feed.NewRelay(source, publisher, cursor, opts...)
	return relay, func() {
		for _, c := range closers {
			c()
		}
	}
}
