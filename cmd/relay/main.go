// relay は上流の WebSocket ティックを Redis pub/sub へ中継します。
// stream.kind=redis で動く複数の server がこのチャネルを購読します。
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"stock_board/internal/app/di"
	"stock_board/internal/feature/ranking/usecase"
	"stock_board/internal/platform/config"
	"stock_board/internal/platform/logger"
	"stock_board/internal/platform/pubsub"
	infraredis "stock_board/internal/platform/redis"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		zap.L().Fatal("failed to load config", zap.Error(err))
	}
	log, err := logger.New(cfg.App.IsProduction(), cfg.App.LogLevel)
	if err != nil {
		zap.L().Fatal("failed to build logger", zap.Error(err))
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Error("relay stopped", zap.Error(err))
		os.Exit(1)
	}
	log.Info("relay shut down")
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := infraredis.NewRedisClient(ctx, infraredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, log.Named("redis"))
	if err != nil {
		return err
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn("failed to close Redis client", zap.Error(err))
		}
	}()

	// 中継元は常に WebSocket
	upstream := *cfg
	upstream.Stream.Kind = config.StreamWebSocket
	stream, err := di.NewUpdateStream(&upstream, rdb, log)
	if err != nil {
		return err
	}

	source := di.NewSnapshotSource(cfg, rdb, di.NewStockAPI(cfg, log), log)
	pub := pubsub.NewPublisher(rdb, cfg.Stream.ChannelPrefix)
	relay := usecase.NewRelay(source, stream, pub, cfg.Relay.RefreshInterval, log.Named("relay"))

	log.Info("relay starting", zap.String("upstream", cfg.Stream.URL), zap.String("prefix", cfg.Stream.ChannelPrefix))
	return relay.Run(ctx, usecase.AllSelections())
}
