// Package config はアプリケーション全体の設定を読み込みます。
// 優先順位は 環境変数 > .env ファイル > デフォルト値 です。
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Stream kinds.
const (
	StreamWebSocket = "websocket"
	StreamRedis     = "redis"
	StreamNone      = "none"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all configuration for the application
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Redis    RedisConfig    `mapstructure:"redis"`
	DB       DBConfig       `mapstructure:"db"`
	StockAPI StockAPIConfig `mapstructure:"stockapi"`
	Stream   StreamConfig   `mapstructure:"stream"`
	Ranking  RankingConfig  `mapstructure:"ranking"`
	Relay    RelayConfig    `mapstructure:"relay"`
	JWT      JWTConfig      `mapstructure:"jwt"`
}

type AppConfig struct {
	Port            string        `mapstructure:"port"`
	Env             string        `mapstructure:"env"` // "local" or "prod"
	LogLevel        string        `mapstructure:"log_level"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type DBConfig struct {
	Driver         string        `mapstructure:"driver"`
	Host           string        `mapstructure:"host"`
	Port           string        `mapstructure:"port"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	Name           string        `mapstructure:"name"`
	SSLMode        string        `mapstructure:"sslmode"`
	SQLitePath     string        `mapstructure:"sqlite_path"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	RunMigrations  bool          `mapstructure:"run_migrations"`
}

type StockAPIConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	Token        string        `mapstructure:"token"`
	Exchange     string        `mapstructure:"exchange"`
	Limit        int           `mapstructure:"limit"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RateLimit    int           `mapstructure:"rate_limit"`
	RateInterval time.Duration `mapstructure:"rate_interval"`
}

type StreamConfig struct {
	Kind          string        `mapstructure:"kind"`
	URL           string        `mapstructure:"url"`
	PingInterval  time.Duration `mapstructure:"ping_interval"`
	PongWait      time.Duration `mapstructure:"pong_wait"`
	ChannelPrefix string        `mapstructure:"channel_prefix"`
}

type RankingConfig struct {
	DefaultMarket  string        `mapstructure:"default_market"`
	DefaultSort    string        `mapstructure:"default_sort"`
	CacheNamespace string        `mapstructure:"cache_namespace"`
	LoadTimeout    time.Duration `mapstructure:"load_timeout"`
}

// RelayConfig は cmd/relay の設定です。
type RelayConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

// IsProduction reports whether the app runs with production settings.
func (c AppConfig) IsProduction() bool {
	return c.Env == "prod" || c.Env == "production"
}

// LoadConfig reads configuration from .env file, environment variables, and defaults.
// envFiles overrides the default ".env" lookup.
func LoadConfig(envFiles ...string) (*Config, error) {
	// .env が無くても環境変数だけで起動できる
	_ = godotenv.Load(envFiles...)

	v := viper.New()
	setDefaults(v)

	// "stockapi.base_url" -> "STOCKAPI_BASE_URL"
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnv(v, v.AllKeys()...); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", ":8080")
	v.SetDefault("app.env", "local")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.shutdown_timeout", "10s")

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("db.driver", DriverSQLite)
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "stock_board")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.sqlite_path", "stock_board.db")
	v.SetDefault("db.connect_timeout", "60s")
	v.SetDefault("db.run_migrations", true)

	v.SetDefault("stockapi.base_url", "http://localhost:8000")
	v.SetDefault("stockapi.token", "")
	v.SetDefault("stockapi.exchange", "NAS")
	v.SetDefault("stockapi.limit", 30)
	v.SetDefault("stockapi.timeout", "10s")
	v.SetDefault("stockapi.rate_limit", 20)
	v.SetDefault("stockapi.rate_interval", "1s")

	v.SetDefault("stream.kind", StreamWebSocket)
	v.SetDefault("stream.url", "ws://localhost:8000/stocks/ws/realtime")
	v.SetDefault("stream.ping_interval", "30s")
	v.SetDefault("stream.pong_wait", "90s")
	v.SetDefault("stream.channel_prefix", "ticks")

	v.SetDefault("ranking.default_market", "all")
	v.SetDefault("ranking.default_sort", "volume")
	v.SetDefault("ranking.cache_namespace", "ranking")
	v.SetDefault("ranking.load_timeout", "15s")

	v.SetDefault("relay.refresh_interval", "1m")

	v.SetDefault("jwt.secret", "")
}

// bindEnv binds every known key to its flat environment variable.
func bindEnv(v *viper.Viper, keys ...string) error {
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}

// Validate checks values that have no usable fallback.
func (c *Config) Validate() error {
	var errs []error
	switch c.DB.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("db.driver must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.DB.Driver))
	}
	switch c.Stream.Kind {
	case StreamWebSocket, StreamRedis, StreamNone:
	default:
		errs = append(errs, fmt.Errorf("stream.kind must be websocket, redis or none, got %q", c.Stream.Kind))
	}
	if c.Stream.Kind == StreamRedis && !c.Redis.Enabled {
		errs = append(errs, errors.New("stream.kind=redis requires redis.enabled"))
	}
	if c.StockAPI.BaseURL == "" {
		errs = append(errs, errors.New("stockapi.base_url cannot be empty"))
	}
	return errors.Join(errs...)
}
