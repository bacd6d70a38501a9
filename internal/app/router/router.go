package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	favoriteshandler "stock_board/internal/feature/favorites/transport/handler"
	rankinghandler "stock_board/internal/feature/ranking/transport/handler"
	searchhandler "stock_board/internal/feature/search/transport/handler"
	"stock_board/internal/platform/http/handler"
	jwtmw "stock_board/internal/platform/jwt"
)

// Handlers はルーターに登録するハンドラー群です。
type Handlers struct {
	Ranking   *rankinghandler.RankingHandler
	Favorites *favoriteshandler.FavoritesHandler
	Search    *searchhandler.SearchHandler
	// Readiness は /readyz で確認する依存先です。
	Readiness map[string]handler.Check
}

func NewRouter(h Handlers, jwtSecret string, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	// 認証不要
	// 導通確認用
	r.GET("/healthz", handler.Health)
	r.HEAD("/healthz", handler.Health)
	r.GET("/readyz", handler.Ready(2*time.Second, h.Readiness))

	// 公開ランキング
	r.GET("/rankings", h.Ranking.Get)
	r.PUT("/rankings/selection", h.Ranking.Select)

	// 認証必須のルート
	// → リクエストヘッダーに JWT が必要になる
	fav := r.Group("/favorites")
	fav.Use(jwtmw.AuthRequired(jwtSecret))
	{
		fav.GET("/groups", h.Favorites.ListGroups)
		fav.POST("/groups", h.Favorites.CreateGroup)
		fav.DELETE("/groups/:id", h.Favorites.DeleteGroup)
		fav.GET("/groups/:id/stocks", h.Favorites.ListStocks)
		fav.POST("/groups/:id/stocks", h.Favorites.AddStock)
		fav.DELETE("/groups/:id/stocks/:market/:code", h.Favorites.RemoveStock)

		fav.PUT("/watch", h.Favorites.Watch)
		fav.GET("/watch", h.Favorites.Watched)
		fav.DELETE("/watch", h.Favorites.Unwatch)
	}

	// ヘッダー検索
	search := r.Group("/search")
	search.Use(jwtmw.AuthRequired(jwtSecret))
	{
		search.GET("", h.Search.Search)
		search.GET("/current", h.Search.Current)
		search.DELETE("", h.Search.Clear)
	}

	return r
}

// requestLogger はリクエストごとにステータスと所要時間を記録します。
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate); len(errs) > 0 {
			fields = append(fields, zap.String("errors", errs.String()))
		}

		switch status := c.Writer.Status(); {
		case status >= 500:
			logger.Error("request", fields...)
		case status >= 400:
			logger.Warn("request", fields...)
		default:
			logger.Info("request", fields...)
		}
	}
}
