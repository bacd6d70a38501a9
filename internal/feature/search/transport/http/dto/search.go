// Package dto はsearchフィーチャーのHTTP入出力を定義します。
package dto

import rankingdto "stock_board/internal/feature/ranking/transport/http/dto"

// SearchReq は GET /search のクエリです。
// market を省略すると "all"、sort を省略すると "volume" になります。
type SearchReq struct {
	Keyword string `form:"keyword" binding:"required"`
	Market  string `form:"market"`
	Sort    string `form:"sort"`
}

// SearchRes は検索ドロップダウンの表示状態です。
type SearchRes struct {
	Keyword    string                 `json:"keyword"`
	Market     string                 `json:"market"`
	Sort       string                 `json:"sort"`
	Subscribed bool                   `json:"subscribed"`
	Quotes     []rankingdto.QuoteItem `json:"quotes"`
}
