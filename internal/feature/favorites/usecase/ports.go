package usecase

import (
	"context"

	"stock_board/internal/feature/favorites/domain/entity"
	rankingentity "stock_board/internal/feature/ranking/domain/entity"
)

// FavoriteRepository は関心銘柄グループの永続化を抽象化します。
// すべての操作はユーザー単位で分離され、他ユーザーのグループは ErrNotFound になります。
type FavoriteRepository interface {
	ListGroups(ctx context.Context, userID uint) ([]entity.Group, error)
	FindGroup(ctx context.Context, userID, groupID uint) (*entity.Group, error)
	CreateGroup(ctx context.Context, g *entity.Group) error
	// DeleteGroup はグループと所属する銘柄をまとめて削除します。
	DeleteGroup(ctx context.Context, userID, groupID uint) error

	ListStocks(ctx context.Context, userID, groupID uint) ([]entity.Stock, error)
	// AddStock は重複時に ErrAlreadyExists を返します。
	AddStock(ctx context.Context, s *entity.Stock) error
	RemoveStock(ctx context.Context, userID, groupID uint, market rankingentity.Market, code string) error
}
