package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Options は Redis 接続設定です。
type Options struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient は Redis クライアントを生成し、疎通確認を行います。
func NewRedisClient(ctx context.Context, opts Options, logger *zap.Logger) (*redis.Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	// 接続確認
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("Redis connection failed", zap.String("address", opts.Addr), zap.Error(err))
		_ = rdb.Close()
		return nil, err
	}

	logger.Info("Redis connection successful", zap.String("address", opts.Addr))
	return rdb, nil
}
