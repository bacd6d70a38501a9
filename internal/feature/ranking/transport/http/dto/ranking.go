// Package dto はrankingフィーチャーのHTTP入出力を定義します。
package dto

import "stock_board/internal/feature/ranking/domain/entity"

// SelectionReq は PUT /rankings/selection のリクエストボディです。
// market を省略すると "all" になります。
type SelectionReq struct {
	Market string `json:"market"`
	Sort   string `json:"sort" binding:"required"`
}

// QuoteItem は1銘柄の表示行です。
type QuoteItem struct {
	Rank       int     `json:"rank"`
	Market     string  `json:"market"`
	Code       string  `json:"code"`
	Exchange   string  `json:"exchange,omitempty"`
	Symbol     string  `json:"symbol"`
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Change     float64 `json:"change"`
	ChangeRate float64 `json:"change_rate"`
	Volume     float64 `json:"volume"`
	Amount     float64 `json:"amount"`
	MarketCap  float64 `json:"market_cap"`
	RankValue  float64 `json:"rank_value"`
}

// RankingRes は現在のランキングです。
type RankingRes struct {
	Market string      `json:"market"`
	Sort   string      `json:"sort"`
	Loaded bool        `json:"loaded"`
	Error  string      `json:"error,omitempty"`
	Quotes []QuoteItem `json:"quotes"`
}

// NewQuoteItems は並び順を保ったまま表示行に変換します。rank は1始まりです。
func NewQuoteItems(quotes []entity.Quote) []QuoteItem {
	out := make([]QuoteItem, 0, len(quotes))
	for i, q := range quotes {
		out = append(out, QuoteItem{
			Rank:       i + 1,
			Market:     string(q.Market),
			Code:       q.Code,
			Exchange:   q.Exchange,
			Symbol:     q.Symbol,
			Name:       q.Name,
			Price:      q.Price,
			Change:     q.Change,
			ChangeRate: q.ChangeRate,
			Volume:     q.Volume,
			Amount:     q.Amount,
			MarketCap:  q.MarketCap,
			RankValue:  q.RankValue,
		})
	}
	return out
}
