// Package adapters はfavoritesフィーチャーのリポジトリ実装を提供します。
package adapters

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"stock_board/internal/feature/favorites/domain/entity"
	"stock_board/internal/feature/favorites/usecase"
	rankingentity "stock_board/internal/feature/ranking/domain/entity"
)

// GroupModel は favorite_groups テーブルの行です。
type GroupModel struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"not null;index"`
	Name      string    `gorm:"size:50;not null"`
	CreatedAt time.Time `gorm:"not null"`

	Stocks []StockModel `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE"`
}

func (GroupModel) TableName() string { return "favorite_groups" }

// StockModel は favorite_stocks テーブルの行です。
type StockModel struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"not null;uniqueIndex:uq_favorite_in_group,priority:1"`
	GroupID   uint      `gorm:"not null;uniqueIndex:uq_favorite_in_group,priority:2"`
	Market    string    `gorm:"size:20;not null;uniqueIndex:uq_favorite_in_group,priority:3"`
	Code      string    `gorm:"size:20;not null;uniqueIndex:uq_favorite_in_group,priority:4"`
	Exchange  string    `gorm:"size:8"`
	Name      string    `gorm:"size:100"`
	CreatedAt time.Time `gorm:"not null"`
}

func (StockModel) TableName() string { return "favorite_stocks" }

// Models はマイグレーション対象のモデルを返します。
func Models() []any {
	return []any{&GroupModel{}, &StockModel{}}
}

// favoriteGorm はFavoriteRepositoryインターフェースのGORM実装です。
// PostgreSQL と SQLite の両方で動作します。
type favoriteGorm struct {
	db *gorm.DB
}

var _ usecase.FavoriteRepository = (*favoriteGorm)(nil)

// NewFavoriteRepository は指定されたDB接続でfavoriteGormの新しいインスタンスを生成します。
func NewFavoriteRepository(db *gorm.DB) *favoriteGorm {
	return &favoriteGorm{db: db}
}

// ListGroups は作成順にユーザーのグループを返します。
func (r *favoriteGorm) ListGroups(ctx context.Context, userID uint) ([]entity.Group, error) {
	var rows []GroupModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]entity.Group, 0, len(rows))
	for _, m := range rows {
		out = append(out, toGroup(m))
	}
	return out, nil
}

// FindGroup はユーザーのグループを1件取得します。
func (r *favoriteGorm) FindGroup(ctx context.Context, userID, groupID uint) (*entity.Group, error) {
	var m GroupModel
	if err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", groupID, userID).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, usecase.ErrNotFound
		}
		return nil, err
	}
	g := toGroup(m)
	return &g, nil
}

// CreateGroup はグループを作成し、採番されたIDと作成日時を g に反映します。
func (r *favoriteGorm) CreateGroup(ctx context.Context, g *entity.Group) error {
	m := GroupModel{UserID: g.UserID, Name: g.Name}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return err
	}
	g.ID = m.ID
	g.CreatedAt = m.CreatedAt
	return nil
}

// DeleteGroup は1トランザクションで銘柄とグループを削除します。
// 外部キー制約が無効なSQLiteでも銘柄が残らないよう、銘柄を明示的に削除します。
func (r *favoriteGorm) DeleteGroup(ctx context.Context, userID, groupID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", groupID, userID).Delete(&GroupModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return usecase.ErrNotFound
		}
		return tx.Where("group_id = ? AND user_id = ?", groupID, userID).Delete(&StockModel{}).Error
	})
}

// ListStocks は登録順にグループの銘柄を返します。
func (r *favoriteGorm) ListStocks(ctx context.Context, userID, groupID uint) ([]entity.Stock, error) {
	var rows []StockModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND group_id = ?", userID, groupID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]entity.Stock, 0, len(rows))
	for _, m := range rows {
		out = append(out, toStock(m))
	}
	return out, nil
}

// AddStock は銘柄を追加します。同じグループに同じ銘柄があれば usecase.ErrAlreadyExists を返します。
func (r *favoriteGorm) AddStock(ctx context.Context, s *entity.Stock) error {
	m := StockModel{
		UserID:   s.UserID,
		GroupID:  s.GroupID,
		Market:   string(s.Market),
		Code:     s.Code,
		Exchange: s.Exchange,
		Name:     s.Name,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if isDuplicateKey(err) {
			return usecase.ErrAlreadyExists
		}
		return err
	}
	s.ID = m.ID
	s.CreatedAt = m.CreatedAt
	return nil
}

// RemoveStock は銘柄を削除します。存在しなければ usecase.ErrNotFound を返します。
func (r *favoriteGorm) RemoveStock(ctx context.Context, userID, groupID uint, market rankingentity.Market, code string) error {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND group_id = ? AND market = ? AND code = ?", userID, groupID, string(market), code).
		Delete(&StockModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return usecase.ErrNotFound
	}
	return nil
}

// isDuplicateKey は一意制約違反かどうかを判定します。
// TranslateError が有効なら gorm.ErrDuplicatedKey、無効な PostgreSQL 接続では SQLSTATE 23505 になります。
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func toGroup(m GroupModel) entity.Group {
	return entity.Group{ID: m.ID, UserID: m.UserID, Name: m.Name, CreatedAt: m.CreatedAt}
}

func toStock(m StockModel) entity.Stock {
	return entity.Stock{
		ID:        m.ID,
		UserID:    m.UserID,
		GroupID:   m.GroupID,
		Market:    rankingentity.Market(m.Market),
		Code:      m.Code,
		Exchange:  m.Exchange,
		Name:      m.Name,
		CreatedAt: m.CreatedAt,
	}
}
