// Package di provides dependency injection factories for creating application components.
package di

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"stock_board/internal/feature/ranking/domain/entity"
	"stock_board/internal/feature/ranking/usecase"
	"stock_board/internal/platform/cache"
	"stock_board/internal/platform/config"
	"stock_board/internal/platform/externalapi/stockapi"
	infrahttp "stock_board/internal/platform/http"
	"stock_board/internal/platform/pubsub"
	"stock_board/internal/platform/realtime"
	"stock_board/internal/shared/ratelimiter"
)

// StockAPI は同じレートリミッターとHTTPクライアントを共有する株価APIクライアント群です。
type StockAPI struct {
	Ranking *stockapi.RankingClient
	Search  *stockapi.SearchClient
	// Exchange は取引所が省略された海外銘柄に使う既定値です。
	Exchange string
}

// NewStockAPI creates the ranking and search clients. Both count against one rate limit.
func NewStockAPI(cfg *config.Config, logger *zap.Logger) StockAPI {
	apiCfg := stockapi.Config{
		BaseURL:  cfg.StockAPI.BaseURL,
		Token:    cfg.StockAPI.Token,
		Exchange: cfg.StockAPI.Exchange,
		Limit:    cfg.StockAPI.Limit,
		Timeout:  cfg.StockAPI.Timeout,
	}
	limiter := ratelimiter.NewRateLimiter(cfg.StockAPI.RateLimit, cfg.StockAPI.RateInterval, logger.Named("ratelimiter"))
	client := infrahttp.NewHTTPClient(apiCfg.Timeout)
	return StockAPI{
		Ranking:  stockapi.NewRankingClient(apiCfg, client, limiter, logger.Named("stockapi")),
		Search:   stockapi.NewSearchClient(apiCfg, client, limiter, logger.Named("stockapi")),
		Exchange: apiCfg.Exchange,
	}
}

// NewSnapshotSource wraps the ranking client with the Redis cache.
// If rdb is nil, the cache is bypassed.
func NewSnapshotSource(cfg *config.Config, rdb *redis.Client, api StockAPI, logger *zap.Logger) usecase.SnapshotSource {
	// rdb が nil の場合は CachingSnapshotSource がキャッシュを素通りする
	return cache.NewCachingSnapshotSource(rdb, cache.SessionTTL, api.Ranking, cfg.Ranking.CacheNamespace, api.Exchange, logger.Named("cache"))
}

// NewUpdateStream selects the tick stream by cfg.Stream.Kind.
// It returns nil for "none", which makes every view a static snapshot.
func NewUpdateStream(cfg *config.Config, rdb *redis.Client, logger *zap.Logger) (usecase.UpdateStream, error) {
	switch cfg.Stream.Kind {
	case config.StreamWebSocket:
		return realtime.NewStream(realtime.Config{
			URL:          cfg.Stream.URL,
			PingInterval: cfg.Stream.PingInterval,
			PongWait:     cfg.Stream.PongWait,
		}, logger.Named("realtime")), nil
	case config.StreamRedis:
		if rdb == nil {
			return nil, fmt.Errorf("stream kind %q requires a Redis connection", cfg.Stream.Kind)
		}
		return pubsub.NewStream(rdb, cfg.Stream.ChannelPrefix, logger.Named("pubsub")), nil
	case config.StreamNone:
		return nil, nil
	}
	return nil, fmt.Errorf("unknown stream kind %q", cfg.Stream.Kind)
}

// NewBoard creates the public ranking board with the configured default selection.
func NewBoard(cfg *config.Config, source usecase.SnapshotSource, stream usecase.UpdateStream, logger *zap.Logger) (*usecase.Board, error) {
	filter, err := entity.ParseMarketFilter(cfg.Ranking.DefaultMarket)
	if err != nil {
		return nil, err
	}
	mode, err := entity.ParseSortMode(cfg.Ranking.DefaultSort)
	if err != nil {
		return nil, err
	}
	view := usecase.NewLiveView(source, stream, logger.Named("liveview"))
	return usecase.NewBoard(view, entity.Selection{Filter: filter, Mode: mode}, logger.Named("board")), nil
}
