package database

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/JoeShih716/go-bank-ledger/pkg/logger"
)

const (
	defaultConnectAttempts = 10
	defaultConnectInterval = 2 * time.Second
)

// Client 封裝 GORM DB 實例
type Client struct {
	db *gorm.DB
}

// NewClient 建立資料庫連線，並重試直到 Ping 成功 (MySQL / Postgres / SQLite)
//
// 參數:
//
//	ctx: context.Context - 限制整個連線重試流程的時間
//	cfg: Config - 連線與連線池配置
//	log: *logger.Logger - 每次連線失敗記錄一筆警告，可為 nil
//
// 回傳值:
//
//	*Client: 封裝後的資料庫客戶端
//	error: 所有重試都失敗時回傳最後一次的錯誤
func NewClient(ctx context.Context, cfg Config, log *logger.Logger) (*Client, error) {
	if log == nil {
		log = logger.Nop()
	}
	dialector, err := cfg.Dialector()
	if err != nil {
		return nil, err
	}
	gormConfig := &gorm.Config{
		// 預設跳過事務模式，需要原子性的寫入自己開 Transaction
		SkipDefaultTransaction: true,
		// 讓各個 driver 的唯一鍵衝突都能以 gorm.ErrDuplicatedKey 判斷
		TranslateError: true,
		Logger:         newLogger(cfg.LogLevel),
	}

	attempts := cfg.ConnectAttempts
	if attempts <= 0 {
		attempts = defaultConnectAttempts
	}
	interval := cfg.ConnectInterval
	if interval <= 0 {
		interval = defaultConnectInterval
	}

	var db *gorm.DB
	attempt := 0
	backoff := retry.WithMaxRetries(uint64(attempts-1), retry.NewConstant(interval))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		conn, err := gorm.Open(dialector, gormConfig)
		if err == nil {
			err = ping(ctx, conn)
		}
		if err != nil {
			log.Warn(log.WithFields(ctx, map[string]any{
				"driver":  cfg.Driver,
				"attempt": attempt,
				"of":      attempts,
			}), "database not reachable yet", err)
			return retry.RetryableError(err)
		}
		db = conn
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s after %d attempts: %w", cfg.Driver, attempt, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.db: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return &Client{db: db}, nil
}

func ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// DB 回傳底層的 *gorm.DB 實例，供 adapter 使用
func (c *Client) DB() *gorm.DB {
	return c.db
}

// WithTx 在綁定 ctx 的 Transaction 中執行 fn。
// fn 回傳錯誤或 panic 時 Rollback，回傳 nil 時 Commit。
func (c *Client) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return c.db.WithContext(ctx).Transaction(fn)
}

// Ping 檢查連線狀態，供 readiness 檢查使用
func (c *Client) Ping(ctx context.Context) error {
	return ping(ctx, c.db)
}

// Close 關閉資料庫連線
func (c *Client) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// newLogger 根據配置建立 GORM Logger
func newLogger(level string) gormlogger.Interface {
	var logLevel gormlogger.LogLevel
	switch level {
	case "info":
		logLevel = gormlogger.Info
	case "warn":
		logLevel = gormlogger.Warn
	case "error":
		logLevel = gormlogger.Error
	case "silent":
		logLevel = gormlogger.Silent
	default:
		logLevel = gormlogger.Error
	}
	return gormlogger.Default.LogMode(logLevel)
}
