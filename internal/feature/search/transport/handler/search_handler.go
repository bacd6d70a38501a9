// Package handler はsearchフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	rankingentity "stock_board/internal/feature/ranking/domain/entity"
	rankingdto "stock_board/internal/feature/ranking/transport/http/dto"
	rankingusecase "stock_board/internal/feature/ranking/usecase"
	"stock_board/internal/feature/search/transport/http/dto"
	"stock_board/internal/feature/search/usecase"
	jwtmw "stock_board/internal/platform/jwt"
)

// SearchUsecase は銘柄検索のユースケースインターフェースです。
type SearchUsecase interface {
	Search(ctx context.Context, userID uint, keyword string, filter rankingentity.MarketFilter, mode rankingentity.SortMode) (usecase.Result, error)
	Current(userID uint) (usecase.Result, bool)
	Clear(userID uint)
}

// SearchHandler はヘッダー検索のHTTPリクエストを処理します。
type SearchHandler struct {
	uc SearchUsecase
}

// NewSearchHandler は新しい SearchHandler を作成します。
func NewSearchHandler(uc SearchUsecase) *SearchHandler {
	return &SearchHandler{uc: uc}
}

// Search は検索候補を読み込み、ドロップダウンを置き換えます。
//
// GET /search?keyword=삼성&market=all&sort=volume
func (h *SearchHandler) Search(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.SearchReq
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	filter, err := rankingentity.ParseMarketFilter(req.Market)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Sort == "" {
		req.Sort = string(rankingentity.SortVolume)
	}
	mode, err := rankingentity.ParseSortMode(req.Sort)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.uc.Search(c.Request.Context(), userID, req.Keyword, filter, mode)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSearchRes(res))
}

// Current GET /search/current
func (h *SearchHandler) Current(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	res, ok := h.uc.Current(userID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no search is open"})
		return
	}
	c.JSON(http.StatusOK, toSearchRes(res))
}

// Clear DELETE /search
func (h *SearchHandler) Clear(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	h.uc.Clear(userID)
	c.Status(http.StatusNoContent)
}

func currentUser(c *gin.Context) (uint, bool) {
	userID, ok := jwtmw.UserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return 0, false
	}
	return userID, true
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, usecase.ErrInvalidKeyword), errors.Is(err, rankingusecase.ErrInvalidSelection):
		status = http.StatusBadRequest
	case errors.Is(err, usecase.ErrSearchSuperseded):
		status = http.StatusConflict
	case errors.Is(err, rankingusecase.ErrFetch):
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func toSearchRes(r usecase.Result) dto.SearchRes {
	return dto.SearchRes{
		Keyword:    r.Keyword,
		Market:     string(r.Selection.Filter),
		Sort:       string(r.Selection.Mode),
		Subscribed: r.Subscribed,
		Quotes:     rankingdto.NewQuoteItems(r.Quotes),
	}
}
