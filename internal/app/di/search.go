package di

import (
	"go.uber.org/zap"

	rankingusecase "stock_board/internal/feature/ranking/usecase"
	"stock_board/internal/feature/search/usecase"
)

// NewSearchUsecase creates the header search backed by the stock API search endpoint.
func NewSearchUsecase(api StockAPI, stream rankingusecase.UpdateStream, logger *zap.Logger) *usecase.SearchUsecase {
	return usecase.NewSearchUsecase(api.Search, stream, logger.Named("search"))
}
