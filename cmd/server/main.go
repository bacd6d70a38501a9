package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"stock_board/internal/app/di"
	"stock_board/internal/app/router"
	favoriteshandler "stock_board/internal/feature/favorites/transport/handler"
	rankinghandler "stock_board/internal/feature/ranking/transport/handler"
	searchhandler "stock_board/internal/feature/search/transport/handler"
	"stock_board/internal/platform/config"
	"stock_board/internal/platform/db"
	"stock_board/internal/platform/http/handler"
	"stock_board/internal/platform/logger"
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
		log.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
	log.Info("server shut down")
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.JWT.Secret == "" {
		log.Warn("JWT_SECRET is not set; /favorites will reject every request")
	}

	// Redis
	rdb := connectRedis(ctx, cfg, log)
	if rdb != nil {
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Error("failed to close Redis client", zap.Error(err))
			}
		}()
	}

	// DB
	gdb, err := di.OpenDB(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(gdb); err != nil {
			log.Error("failed to close database", zap.Error(err))
		}
	}()

	// Usecase
	api := di.NewStockAPI(cfg, log)
	source := di.NewSnapshotSource(cfg, rdb, api, log)
	stream, err := di.NewUpdateStream(cfg, rdb, log)
	if err != nil {
		return err
	}
	board, err := di.NewBoard(cfg, source, stream, log)
	if err != nil {
		return err
	}
	defer board.Stop()
	favoritesUC := di.NewFavoritesUsecase(cfg, gdb, stream, log)
	defer favoritesUC.Close()
	searchUC := di.NewSearchUsecase(api, stream, log)
	defer searchUC.Close()

	// 初回ロードの失敗は Current().Err で公開し、起動は続ける
	loadCtx, cancel := context.WithTimeout(ctx, cfg.Ranking.LoadTimeout)
	if err := board.Start(loadCtx); err != nil {
		log.Warn("initial ranking load failed", zap.Error(err))
	}
	cancel()

	// Handler
	r := router.NewRouter(router.Handlers{
		Ranking:   rankinghandler.NewRankingHandler(board),
		Favorites: favoriteshandler.NewFavoritesHandler(favoritesUC),
		Search:    searchhandler.NewSearchHandler(searchUC),
		Readiness: readiness(rdb, gdb),
	}, cfg.JWT.Secret, log.Named("http"))

	srv := &http.Server{Addr: cfg.App.Port, Handler: r}
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.App.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down", zap.Duration("timeout", cfg.App.ShutdownTimeout))
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancelShutdown()
	return srv.Shutdown(shutdownCtx)
}

// connectRedis は Redis に接続します。無効化されているか接続できない場合は nil を返し、
// キャッシュなしで動作します。
func connectRedis(ctx context.Context, cfg *config.Config, log *zap.Logger) *redis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}
	rdb, err := infraredis.NewRedisClient(ctx, infraredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, log.Named("redis"))
	if err != nil {
		log.Warn("Redis unavailable. Running without cache.", zap.Error(err))
		return nil
	}
	return rdb
}

func readiness(rdb *redis.Client, gdb *gorm.DB) map[string]handler.Check {
	checks := map[string]handler.Check{
		"db": func(ctx context.Context) error {
			sqlDB, err := gdb.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}
	}
	return checks
}
