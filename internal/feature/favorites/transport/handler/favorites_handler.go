// Package handler はfavoritesフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"stock_board/internal/feature/favorites/domain/entity"
	"stock_board/internal/feature/favorites/transport/http/dto"
	"stock_board/internal/feature/favorites/usecase"
	rankingentity "stock_board/internal/feature/ranking/domain/entity"
	rankingdto "stock_board/internal/feature/ranking/transport/http/dto"
	rankingusecase "stock_board/internal/feature/ranking/usecase"
	jwtmw "stock_board/internal/platform/jwt"
)

// FavoritesUsecase は関心銘柄のユースケースインターフェースです。
// Goの慣例に従い、インターフェースは利用者（handler）側で定義します。
type FavoritesUsecase interface {
	ListGroups(ctx context.Context, userID uint) ([]entity.Group, error)
	CreateGroup(ctx context.Context, userID uint, name string) (*entity.Group, error)
	DeleteGroup(ctx context.Context, userID, groupID uint) error
	ListStocks(ctx context.Context, userID, groupID uint) ([]entity.Stock, error)
	AddStock(ctx context.Context, s entity.Stock) (*entity.Stock, error)
	RemoveStock(ctx context.Context, userID, groupID uint, market rankingentity.Market, code string) error
	Watch(ctx context.Context, userID, groupID uint, filter rankingentity.MarketFilter, mode rankingentity.SortMode) (usecase.WatchState, error)
	Watched(userID uint) (usecase.WatchState, bool)
	Unwatch(userID uint)
}

// FavoritesHandler は関心銘柄のHTTPリクエストを処理します。
// すべてのルートは jwtmw.AuthRequired の後ろに置きます。
type FavoritesHandler struct {
	uc FavoritesUsecase
}

// NewFavoritesHandler は新しい FavoritesHandler を作成します。
func NewFavoritesHandler(uc FavoritesUsecase) *FavoritesHandler {
	return &FavoritesHandler{uc: uc}
}

// ListGroups GET /favorites/groups
func (h *FavoritesHandler) ListGroups(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	groups, err := h.uc.ListGroups(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]dto.GroupRes, 0, len(groups))
	for _, g := range groups {
		out = append(out, toGroupRes(g))
	}
	c.JSON(http.StatusOK, out)
}

// CreateGroup POST /favorites/groups
func (h *FavoritesHandler) CreateGroup(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.GroupCreateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	g, err := h.uc.CreateGroup(c.Request.Context(), userID, req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toGroupRes(*g))
}

// DeleteGroup DELETE /favorites/groups/:id
func (h *FavoritesHandler) DeleteGroup(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	groupID, ok := groupParam(c)
	if !ok {
		return
	}
	if err := h.uc.DeleteGroup(c.Request.Context(), userID, groupID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListStocks GET /favorites/groups/:id/stocks
func (h *FavoritesHandler) ListStocks(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	groupID, ok := groupParam(c)
	if !ok {
		return
	}
	stocks, err := h.uc.ListStocks(c.Request.Context(), userID, groupID)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]dto.StockRes, 0, len(stocks))
	for _, s := range stocks {
		out = append(out, toStockRes(s))
	}
	c.JSON(http.StatusOK, out)
}

// AddStock POST /favorites/groups/:id/stocks
func (h *FavoritesHandler) AddStock(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	groupID, ok := groupParam(c)
	if !ok {
		return
	}
	var req dto.StockCreateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s, err := h.uc.AddStock(c.Request.Context(), entity.Stock{
		UserID:   userID,
		GroupID:  groupID,
		Market:   rankingentity.Market(req.Market),
		Code:     req.Code,
		Exchange: req.Exchange,
		Name:     req.Name,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toStockRes(*s))
}

// RemoveStock DELETE /favorites/groups/:id/stocks/:market/:code
func (h *FavoritesHandler) RemoveStock(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	groupID, ok := groupParam(c)
	if !ok {
		return
	}
	market, err := rankingentity.ParseMarket(c.Param("market"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.uc.RemoveStock(c.Request.Context(), userID, groupID, market, c.Param("code")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Watch はグループのライブビューに切り替えます。
//
// PUT /favorites/watch {"group_id": 1, "market": "all", "sort": "volume"}
func (h *FavoritesHandler) Watch(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.WatchReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	filter, err := rankingentity.ParseMarketFilter(req.Market)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	mode, err := rankingentity.ParseSortMode(req.Sort)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	state, err := h.uc.Watch(c.Request.Context(), userID, req.GroupID, filter, mode)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toWatchRes(state))
}

// Watched GET /favorites/watch
func (h *FavoritesHandler) Watched(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	state, ok := h.uc.Watched(userID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no group is being watched"})
		return
	}
	c.JSON(http.StatusOK, toWatchRes(state))
}

// Unwatch DELETE /favorites/watch
func (h *FavoritesHandler) Unwatch(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	h.uc.Unwatch(userID)
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

func groupParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return 0, false
	}
	return uint(id), true
}

// writeError はユースケースのエラーをHTTPステータスに対応付けます。
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, usecase.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, usecase.ErrAlreadyExists), errors.Is(err, usecase.ErrWatchSuperseded):
		status = http.StatusConflict
	case errors.Is(err, usecase.ErrInvalidInput), errors.Is(err, rankingusecase.ErrInvalidSelection):
		status = http.StatusBadRequest
	case errors.Is(err, rankingusecase.ErrFetch):
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func toGroupRes(g entity.Group) dto.GroupRes {
	return dto.GroupRes{ID: g.ID, Name: g.Name, CreatedAt: g.CreatedAt}
}

func toStockRes(s entity.Stock) dto.StockRes {
	return dto.StockRes{
		ID:        s.ID,
		GroupID:   s.GroupID,
		Market:    string(s.Market),
		Code:      s.Code,
		Exchange:  s.Exchange,
		Name:      s.Name,
		CreatedAt: s.CreatedAt,
	}
}

func toWatchRes(s usecase.WatchState) dto.WatchRes {
	return dto.WatchRes{
		GroupID:    s.GroupID,
		Market:     string(s.Selection.Filter),
		Sort:       string(s.Selection.Mode),
		Subscribed: s.Subscribed,
		Quotes:     rankingdto.NewQuoteItems(s.Quotes),
	}
}
