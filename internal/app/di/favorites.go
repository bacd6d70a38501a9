package di

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"stock_board/internal/feature/favorites/adapters"
	favoritesusecase "stock_board/internal/feature/favorites/usecase"
	rankingusecase "stock_board/internal/feature/ranking/usecase"
	"stock_board/internal/platform/config"
	"stock_board/internal/platform/db"
)

// OpenDB opens the configured database and migrates the favorites tables when enabled.
func OpenDB(cfg *config.Config, logger *zap.Logger) (*gorm.DB, error) {
	dbCfg := db.Config{
		Driver:     cfg.DB.Driver,
		User:       cfg.DB.User,
		Password:   cfg.DB.Password,
		Name:       cfg.DB.Name,
		Host:       cfg.DB.Host,
		Port:       cfg.DB.Port,
		SSLMode:    cfg.DB.SSLMode,
		SQLitePath: cfg.DB.SQLitePath,
	}
	return db.OpenDB(dbCfg, cfg.DB.ConnectTimeout, cfg.DB.RunMigrations, logger.Named("db"), adapters.Models()...)
}

// NewFavoritesUsecase creates the favorites usecase backed by GORM.
func NewFavoritesUsecase(cfg *config.Config, gdb *gorm.DB, stream rankingusecase.UpdateStream, logger *zap.Logger) *favoritesusecase.FavoritesUsecase {
	repo := adapters.NewFavoriteRepository(gdb)
	return favoritesusecase.NewFavoritesUsecase(repo, stream, cfg.StockAPI.Exchange, logger.Named("favorites"))
}
