// Package dto はfavoritesフィーチャーのHTTP入出力を定義します。
package dto

import (
	"time"

	rankingdto "stock_board/internal/feature/ranking/transport/http/dto"
)

// GroupCreateReq は POST /favorites/groups のリクエストボディです。
type GroupCreateReq struct {
	Name string `json:"name" binding:"required"`
}

// GroupRes はグループ1件です。
type GroupRes struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// StockCreateReq は POST /favorites/groups/:id/stocks のリクエストボディです。
type StockCreateReq struct {
	Market   string `json:"market" binding:"required,oneof=domestic overseas"`
	Code     string `json:"code" binding:"required,max=20"`
	Exchange string `json:"exchange" binding:"max=8"`
	Name     string `json:"name" binding:"max=100"`
}

// StockRes は登録銘柄1件です。
type StockRes struct {
	ID        uint      `json:"id"`
	GroupID   uint      `json:"group_id"`
	Market    string    `json:"market"`
	Code      string    `json:"code"`
	Exchange  string    `json:"exchange,omitempty"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// WatchReq は PUT /favorites/watch のリクエストボディです。
type WatchReq struct {
	GroupID uint   `json:"group_id" binding:"required"`
	Market  string `json:"market"`
	Sort    string `json:"sort" binding:"required"`
}

// WatchRes は監視中グループのライブビューです。
type WatchRes struct {
	GroupID    uint                   `json:"group_id"`
	Market     string                 `json:"market"`
	Sort       string                 `json:"sort"`
	Subscribed bool                   `json:"subscribed"`
	Quotes     []rankingdto.QuoteItem `json:"quotes"`
}
