package db

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// サポートするドライバ
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// retryInterval は接続リトライの待機間隔です。
var retryInterval = 3 * time.Second

// Config はデータベース接続設定です。
type Config struct {
	Driver     string
	User       string
	Password   string
	Name       string
	Host       string
	Port       string
	SSLMode    string
	SQLitePath string
}

// LoadConfigFromEnv は環境変数からデータベース設定を読み込みます。
func LoadConfigFromEnv() Config {
	cfg := Config{
		Driver:     os.Getenv("DB_DRIVER"),
		User:       os.Getenv("DB_USER"),
		Password:   os.Getenv("DB_PASSWORD"),
		Name:       os.Getenv("DB_NAME"),
		Host:       os.Getenv("DB_HOST"),
		Port:       os.Getenv("DB_PORT"),
		SSLMode:    os.Getenv("DB_SSLMODE"),
		SQLitePath: os.Getenv("DB_SQLITE_PATH"),
	}
	if cfg.Driver == "" {
		cfg.Driver = DriverPostgres
	}
	return cfg
}

// BuildDSN は設定からドライバに応じたDSN文字列を組み立てます。
func BuildDSN(cfg Config) string {
	if cfg.Driver == DriverSQLite {
		if cfg.SQLitePath == "" {
			return "file::memory:?cache=shared"
		}
		return cfg.SQLitePath
	}
	sslmode := cfg.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, sslmode)
}

// Opener は DSN からDB接続を開く関数です。テストで差し替えます。
type Opener func(dsn string) (*gorm.DB, error)

// OpenerFor はドライバに対応する Opener を返します。
func OpenerFor(driver string) (Opener, error) {
	gcfg := &gorm.Config{TranslateError: true}
	switch driver {
	case DriverPostgres:
		return func(dsn string) (*gorm.DB, error) { return gorm.Open(postgres.Open(dsn), gcfg) }, nil
	case DriverSQLite:
		return func(dsn string) (*gorm.DB, error) { return gorm.Open(sqlite.Open(dsn), gcfg) }, nil
	}
	return nil, fmt.Errorf("unsupported db driver %q", driver)
}

// ConnectWithRetry は timeout を超えるまで retryInterval ごとに接続を試みます。
func ConnectWithRetry(dsn string, timeout time.Duration, opener Opener) (*gorm.DB, error) {
	return connectWithRetry(dsn, timeout, opener, zap.NewNop())
}

func connectWithRetry(dsn string, timeout time.Duration, opener Opener, logger *zap.Logger) (*gorm.DB, error) {
	deadline := time.Now().Add(timeout)
	for {
		db, err := opener(dsn)
		if err == nil {
			return db, nil
		}
		if time.Now().Add(retryInterval).After(deadline) {
			return nil, fmt.Errorf("DB connect failed after %s: %w", timeout, err)
		}
		logger.Warn("DB connect failed, retrying", zap.Error(err), zap.Duration("interval", retryInterval))
		time.Sleep(retryInterval)
	}
}

// OpenDB は設定に従って接続し、migrate が true なら models をマイグレーションします。
func OpenDB(cfg Config, timeout time.Duration, migrate bool, logger *zap.Logger, models ...any) (*gorm.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opener, err := OpenerFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	db, err := connectWithRetry(BuildDSN(cfg), timeout, opener, logger)
	if err != nil {
		return nil, err
	}

	if cfg.Driver == DriverSQLite {
		// 外部キーの ON DELETE CASCADE を有効にする
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, fmt.Errorf("enable sqlite foreign keys: %w", err)
		}
	}

	if migrate && len(models) > 0 {
		if err := db.AutoMigrate(models...); err != nil {
			return nil, fmt.Errorf("failed to migrate: %w", err)
		}
	}

	logger.Info("database connected", zap.String("driver", cfg.Driver))
	return db, nil
}

// Close は下層の接続プールを閉じます。
func Close(db *gorm.DB) error {
	if db == nil {
		return errors.New("db: nil connection")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
