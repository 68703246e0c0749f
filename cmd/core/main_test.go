package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/internal/config"
	"github.com/JoeShih716/go-bank-ledger/pkg/database"
	"github.com/JoeShih716/go-bank-ledger/pkg/logger"
)

func sqliteConfig() database.Config {
	return database.Config{
		Driver:          database.DriverSQLite,
		Path:            "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		MaxOpenConns:    1,
		LogLevel:        "silent",
		ConnectAttempts: 1,
		ConnectInterval: time.Millisecond,
	}
}

var seeds = []config.AccountSeed{{ID: 1, OpeningBalance: "150.00"}, {ID: 2}}

func TestSQLBackendSeedsOnce(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Store.Backend = config.BackendSQL
	cfg.Store.AutoMigrate = true
	cfg.Database = sqliteConfig()

	checks := map[string]readinessCheck{}
	store, closeStore, err := openStore(ctx, cfg, logger.Nop(), checks)
	require.NoError(t, err)
	t.Cleanup(closeStore)
	require.Contains(t, checks, "database")
	require.NoError(t, checks["database"](ctx))

	engine := usecase.NewLedgerEngine(store)
	require.NoError(t, seedAccounts(ctx, engine, store, seeds))
	_, err = engine.Apply(ctx, domain.ApplyRequest{AccountID: 1, Kind: domain.EntryKindDebit, Amount: domain.MustAmount("50"), Description: "rent"})
	require.NoError(t, err)

	// a restart must not reset the balance
	require.NoError(t, seedAccounts(ctx, engine, store, seeds))
	bal, err := engine.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "100.00", domain.FormatAmount(bal))
}

func TestMemoryBackendRecoversFromWAL(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Store.WALPath = filepath.Join(t.TempDir(), "wal.log")

	store, closeStore, err := openStore(ctx, cfg, logger.Nop(), map[string]readinessCheck{})
	require.NoError(t, err)
	engine := usecase.NewLedgerEngine(store)
	require.NoError(t, seedAccounts(ctx, engine, store, seeds))
	_, err = engine.Apply(ctx, domain.ApplyRequest{AccountID: 2, Kind: domain.EntryKindCredit, Amount: domain.MustAmount("7.25"), Description: "gift"})
	require.NoError(t, err)
	closeStore()

	store, closeStore, err = openStore(ctx, cfg, logger.Nop(), map[string]readinessCheck{})
	require.NoError(t, err)
	t.Cleanup(closeStore)
	engine = usecase.NewLedgerEngine(store)
	require.NoError(t, seedAccounts(ctx, engine, store, seeds))

	bal, err := engine.GetBalance(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "7.25", domain.FormatAmount(bal))
	bal, err = engine.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "150.00", domain.FormatAmount(bal))
}

func TestSeedRejectsBadBalance(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Store.WALPath = ""
	store, closeStore, err := openStore(ctx, cfg, logger.Nop(), map[string]readinessCheck{})
	require.NoError(t, err)
	t.Cleanup(closeStore)

	err = seedAccounts(ctx, usecase.NewLedgerEngine(store), store, []config.AccountSeed{{ID: 3, OpeningBalance: "1.005"}})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}
