// Package handler はrankingフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"stock_board/internal/feature/ranking/domain/entity"
	"stock_board/internal/feature/ranking/transport/http/dto"
	"stock_board/internal/feature/ranking/usecase"
)

// RankingBoard はランキングボードのユースケースインターフェースです。
// Goの慣例に従い、インターフェースは利用者（handler）側で定義します。
type RankingBoard interface {
	Select(ctx context.Context, filter entity.MarketFilter, mode entity.SortMode) ([]entity.Quote, error)
	Current() usecase.BoardState
}

// RankingHandler はランキングのHTTPリクエストを処理します。
type RankingHandler struct {
	board RankingBoard
}

// NewRankingHandler は新しい RankingHandler を作成します。
func NewRankingHandler(board RankingBoard) *RankingHandler {
	return &RankingHandler{board: board}
}

// Get は現在の表示条件と並び順のランキングを返します。
// 直近の読み込みが失敗していた場合も 200 で、error フィールドに理由を入れます。
//
// GET /rankings
func (h *RankingHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, toResponse(h.board.Current()))
}

// Select は表示条件を切り替えます。旧条件の購読は必ず解除されます。
//
// PUT /rankings/selection {"market": "domestic", "sort": "rising"}
func (h *RankingHandler) Select(c *gin.Context) {
	var req dto.SelectionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	filter, err := entity.ParseMarketFilter(req.Market)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	mode, err := entity.ParseSortMode(req.Sort)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.board.Select(c.Request.Context(), filter, mode); err != nil {
		switch {
		case errors.Is(err, usecase.ErrInvalidSelection):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, usecase.ErrFetch):
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, toResponse(h.board.Current()))
}

func toResponse(s usecase.BoardState) dto.RankingRes {
	res := dto.RankingRes{
		Market: string(s.Selection.Filter),
		Sort:   string(s.Selection.Mode),
		Loaded: s.Loaded,
		Quotes: dto.NewQuoteItems(s.Quotes),
	}
	if s.Err != nil {
		res.Error = s.Err.Error()
	}
	return res
}
