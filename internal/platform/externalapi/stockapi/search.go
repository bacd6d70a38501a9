package stockapi

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"stock_board/internal/feature/ranking/domain/entity"
	"stock_board/internal/platform/externalapi/stockapi/dto"
	"stock_board/internal/shared/ratelimiter"
)

// SearchLimit は検索候補の最大件数です。
const SearchLimit = 10

// domesticMarkets は国内市場を表す market_code です。
var domesticMarkets = map[string]struct{}{
	"KOSPI":  {},
	"KOSDAQ": {},
	"KONEX":  {},
}

// SearchClient は銘柄名またはコードで銘柄を検索します。
type SearchClient struct {
	api
}

// NewSearchClient はSearchClientの新しいインスタンスを生成します。
func NewSearchClient(cfg Config, client *http.Client, limiter ratelimiter.Limiter, logger *zap.Logger) *SearchClient {
	return &SearchClient{api: newAPI(cfg, client, limiter, logger)}
}

// Search は keyword に一致する銘柄を上流の関連度順で最大 SearchLimit 件返します。
// 価格が不明な候補は 0 のまま返します。
func (c *SearchClient) Search(ctx context.Context, keyword string) ([]entity.Quote, error) {
	q := url.Values{}
	q.Set("keyword", keyword)
	var items []dto.SearchItem
	if err := c.get(ctx, "/stocks/search", q, &items); err != nil {
		return nil, err
	}
	if len(items) > SearchLimit {
		items = items[:SearchLimit]
	}

	quotes := make([]entity.Quote, 0, len(items))
	for _, it := range items {
		code := strings.TrimSpace(it.Code)
		if code == "" {
			c.logger.Debug("skipping search candidate without code", zap.String("name", it.Name))
			continue
		}
		quotes = append(quotes, c.toQuote(code, it))
	}
	return quotes, nil
}

func (c *SearchClient) toQuote(code string, it dto.SearchItem) entity.Quote {
	name := it.Name
	if name == "" {
		name = it.DisplayName
	}
	q := entity.Quote{
		Market:     entity.MarketDomestic,
		Code:       code,
		Symbol:     code,
		Name:       name,
		Price:      it.Price.Or(0),
		ChangeRate: it.Rate.Or(0),
	}
	market := strings.ToUpper(strings.TrimSpace(it.MarketCode))
	if _, ok := domesticMarkets[market]; !ok {
		q.Market = entity.MarketOverseas
		q.Exchange = market
		if q.Exchange == "" {
			q.Exchange = c.cfg.exchange()
		}
	}
	return q
}
