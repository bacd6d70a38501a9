package stockapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"stock_board/internal/feature/ranking/domain/entity"
	"stock_board/internal/feature/ranking/usecase"
	"stock_board/internal/platform/externalapi/stockapi/dto"
	"stock_board/internal/shared/numeric"
	"stock_board/internal/shared/ratelimiter"
)

// ErrMissingOutput は応答に output フィールドが含まれていないことを示します。
var ErrMissingOutput = errors.New("stockapi: response has no output")

// api は上流APIへの GET リクエストを共通化します。RankingClient と SearchClient で
// 同じ HTTP クライアントとレートリミッターを共有します。
type api struct {
	cfg     Config
	client  *http.Client
	limiter ratelimiter.Limiter
	logger  *zap.Logger
}

func newAPI(cfg Config, client *http.Client, limiter ratelimiter.Limiter, logger *zap.Logger) api {
	if logger == nil {
		logger = zap.NewNop()
	}
	return api{cfg: cfg, client: client, limiter: limiter, logger: logger}
}

// get は path を呼び出し、JSON応答を out にデコードします。
func (a api) get(ctx context.Context, path string, q url.Values, out any) error {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	u := fmt.Sprintf("%s%s?%s", strings.TrimRight(a.cfg.BaseURL, "/"), path, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if a.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+a.cfg.Token)
	}

	res, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			a.logger.Warn("failed to close response body", zap.Error(err))
		}
	}()

	if res.StatusCode >= 400 {
		return fmt.Errorf("stockapi http %d", res.StatusCode)
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("stockapi decode: %w", err)
	}
	return nil
}

// RankingClient はランキングAPIからスナップショットを取得するSnapshotSource実装です。
type RankingClient struct {
	api
}

// RankingClientがSnapshotSourceを実装していることをコンパイル時に検証します。
var _ usecase.SnapshotSource = (*RankingClient)(nil)

// NewRankingClient は指定された設定とHTTPクライアントでRankingClientの新しいインスタンスを生成します。
// limiter が nil の場合は呼び出し頻度を制限しません。
func NewRankingClient(cfg Config, client *http.Client, limiter ratelimiter.Limiter, logger *zap.Logger) *RankingClient {
	return &RankingClient{api: newAPI(cfg, client, limiter, logger)}
}

// FetchSnapshot はランキングAPIを呼び出し、サーバーが返した順序のまま Quote に変換します。
func (c *RankingClient) FetchSnapshot(ctx context.Context, filter entity.MarketFilter, mode entity.SortMode) ([]entity.Quote, error) {
	path, err := rankingPath(filter, mode)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("excd", c.cfg.exchange())
	var body dto.RankingResponse
	if err := c.get(ctx, path, q, &body); err != nil {
		return nil, err
	}
	if body.Output == nil {
		return nil, ErrMissingOutput
	}

	items := *body.Output
	if c.cfg.Limit > 0 && len(items) > c.cfg.Limit {
		items = items[:c.cfg.Limit]
	}

	quotes := make([]entity.Quote, 0, len(items))
	for _, it := range items {
		q, ok := c.toQuote(it, filter, mode)
		if !ok {
			continue
		}
		quotes = append(quotes, q)
	}
	return quotes, nil
}

// toQuote はDTOをドメインエンティティに変換します。識別子が欠けた項目は捨てます。
func (c *RankingClient) toQuote(it dto.RankingItem, filter entity.MarketFilter, mode entity.SortMode) (entity.Quote, bool) {
	code := strings.TrimSpace(it.Code)
	if code == "" {
		c.logger.Debug("skipping ranking entry without code", zap.String("name", it.Name))
		return entity.Quote{}, false
	}

	market := entity.Market(it.Market)
	if it.Market == "" && filter != entity.FilterAll {
		// 単一市場の応答では market を省略することがある
		market = entity.Market(filter)
	}
	if !market.Valid() {
		c.logger.Warn("skipping ranking entry with unknown market", zap.String("code", code), zap.String("market", it.Market))
		return entity.Quote{}, false
	}

	q := entity.Quote{
		Market: market,
		Code:   code,
		Symbol: it.Symbol,
		Name:   it.Name,
	}
	if q.Symbol == "" {
		q.Symbol = code
	}
	if market == entity.MarketOverseas {
		q.Exchange = it.Exchange
		if q.Exchange == "" {
			q.Exchange = c.cfg.exchange()
		}
	}

	q.Price = c.number(code, "price", it.Price)
	q.Change = c.number(code, "diff", it.Diff)
	q.ChangeRate = c.number(code, "rate", it.Rate)
	q.Volume = c.number(code, "volume", it.Volume)
	q.Amount = c.number(code, "amount", it.Amount)
	q.MarketCap = c.number(code, "market_cap", it.MarketCap)
	if !it.MarketCap.Present && mode == entity.SortMarketCap {
		// 時価総額順の応答では value に時価総額が入る
		q.MarketCap = c.number(code, "value", it.Value)
	}
	return q, true
}

// number は解釈できない値を 0 として扱い、警告を記録します。
func (c *RankingClient) number(code, field string, v numeric.Value) float64 {
	if v.Present && !v.Valid {
		c.logger.Warn("unparsable numeric field in snapshot", zap.String("code", code), zap.String("field", field))
	}
	return v.Or(0)
}

// rankingPath は並び順に対応するエンドポイントのパスを返します。
func rankingPath(filter entity.MarketFilter, mode entity.SortMode) (string, error) {
	if !filter.Valid() {
		return "", fmt.Errorf("stockapi: unknown market filter %q", filter)
	}
	base := "/stocks/ranking/" + string(filter)
	switch mode {
	case entity.SortVolume, entity.SortAmount, entity.SortMarketCap:
		return base + "/" + string(mode), nil
	case entity.SortRising, entity.SortFalling:
		return base + "/fluctuation/" + string(mode), nil
	}
	return "", fmt.Errorf("stockapi: unknown sort mode %q", mode)
}
