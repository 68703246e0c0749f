package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/kafka"
	"github.com/JoeShih716/go-bank-ledger/pkg/database"
)

// EnvPrefix prefixes every environment override. Names follow the struct path:
// LEDGER_DB_HOST, LEDGER_STORE_WAL_PATH, LEDGER_FEED_KAFKA_BROKERS.
// Leaf fields carry no envconfig tag so envconfig never falls back to an
// unprefixed variable such as $PATH or $USER.
const EnvPrefix = "LEDGER"

const (
	BackendMemory = "memory"
	BackendSQL    = "sql"
)

type Config struct {
	Service  ServiceConfig   `yaml:"service" envconfig:"SERVICE"`
	Log      LogConfig       `yaml:"log" envconfig:"LOG"`
	GRPC     GRPCConfig      `yaml:"grpc" envconfig:"GRPC"`
	Ops      OpsConfig       `yaml:"ops" envconfig:"OPS"`
	Store    StoreConfig     `yaml:"store" envconfig:"STORE"`
	Database database.Config `yaml:"database" envconfig:"DB"`
	Engine   EngineConfig    `yaml:"engine" envconfig:"ENGINE"`
	Redis    RedisConfig     `yaml:"redis" envconfig:"REDIS"`
	Feed     FeedConfig      `yaml:"feed" envconfig:"FEED"`
	// Accounts are opened at startup when missing.
	Accounts []AccountSeed `yaml:"accounts" ignored:"true" validate:"dive"`
}

type ServiceConfig struct {
	Name string `yaml:"name" validate:"required"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=json console"`
}

type GRPCConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

type OpsConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

type StoreConfig struct {
	Backend string `yaml:"backend" validate:"required,oneof=memory sql"`
	// WALPath is the memory backend's journal; empty keeps state in memory only.
	WALPath string `yaml:"wal_path" split_words:"true"`
	// SeedFromDatabase loads the memory backend's accounts from the database on start.
	SeedFromDatabase bool `yaml:"seed_from_database" split_words:"true"`
	// AutoMigrate creates the SQL schema on start.
	AutoMigrate bool `yaml:"auto_migrate" split_words:"true"`
}

type EngineConfig struct {
	MaxConflictRetries uint64        `yaml:"max_conflict_retries" split_words:"true"`
	ConflictRetryBase  time.Duration `yaml:"conflict_retry_base" split_words:"true"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
}

type FeedConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Interval   time.Duration `yaml:"interval"`
	BatchSize  int           `yaml:"batch_size" split_words:"true" validate:"gte=0"`
	// GapTimeout is how long a missing entry id holds the relay back before it is skipped.
	GapTimeout time.Duration `yaml:"gap_timeout" split_words:"true"`
	LockKey    string        `yaml:"lock_key" split_words:"true"`
	CursorKey  string        `yaml:"cursor_key" split_words:"true"`
	Kafka      kafka.Config  `yaml:"kafka" envconfig:"KAFKA"`
}

type AccountSeed struct {
	ID             int64  `yaml:"id" validate:"gt=0"`
	OpeningBalance string `yaml:"opening_balance" validate:"omitempty,numeric"`
}

// Default returns the configuration used for keys the file and env leave unset.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{Name: "ledger-core"},
		Log:     LogConfig{Level: "info", Format: "json"},
		GRPC:    GRPCConfig{Addr: ":50051"},
		Ops:     OpsConfig{Addr: ":8081"},
		Store:   StoreConfig{Backend: BackendMemory, WALPath: "wal.log"},
		Database: database.Config{
			Driver:          database.DriverMySQL,
			Port:            3306,
			MaxOpenConns:    100,
			MaxIdleConns:    10,
			ConnMaxLifetime: 30 * time.Minute,
			LogLevel:        "error",
		},
		Engine: EngineConfig{MaxConflictRetries: 5, ConflictRetryBase: 2 * time.Millisecond},
		Feed: FeedConfig{
			Interval:   time.Second,
			BatchSize:  200,
			GapTimeout: 30 * time.Second,
			LockKey:    "ledger:feed:relay",
			CursorKey:  "ledger:feed:cursor",
			Kafka:      kafka.Config{Topic: "ledger.entries"},
		},
	}
}

// Load reads the YAML file at path (skipped when it does not exist), applies
// LEDGER_* environment overrides (after loading envFiles via godotenv) and validates.
//
// 參數:
//
//	path: string - YAML 設定檔，例如 config/config.yaml
//	envFiles: ...string - 可選的 dotenv 檔案，不存在時略過
//
// 回傳值:
//
//	*Config: 合併後的設定
//	error: 讀檔、YAML、環境變數或驗證失敗時回傳錯誤
func Load(path string, envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Store.Backend == BackendSQL || c.Store.SeedFromDatabase {
		if err := validate.Var(c.Database.Driver, "required,oneof=mysql postgres sqlite"); err != nil {
			return fmt.Errorf("invalid config: database.driver: %w", err)
		}
	}
	if c.Feed.Enabled && len(c.Feed.Kafka.Brokers) == 0 {
		return errors.New("invalid config: feed.kafka.brokers is required when the feed is enabled")
	}
	return nil
}
