package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"stock_board/internal/feature/favorites/domain/entity"
	rankingentity "stock_board/internal/feature/ranking/domain/entity"
	rankingusecase "stock_board/internal/feature/ranking/usecase"
)

// WatchState はユーザーが監視中のグループの表示状態です。
type WatchState struct {
	GroupID    uint
	Selection  rankingentity.Selection
	Quotes     []rankingentity.Quote
	Subscribed bool
}

type watch struct {
	groupID uint
	view    *rankingusecase.LiveView
}

// FavoritesUsecase は関心銘柄グループの管理と、グループ単位のライブビューを提供します。
// ライブビューはユーザーごとに最大1つで、切り替え時は必ず前のビューを破棄します。
type FavoritesUsecase struct {
	repo            FavoriteRepository
	stream          rankingusecase.UpdateStream
	defaultExchange string
	logger          *zap.Logger

	mu      sync.Mutex
	watches map[uint]*watch
}

// NewFavoritesUsecase はFavoritesUsecaseの新しいインスタンスを生成します。
// stream が nil の場合、ビューは静的なスナップショットのままです。
func NewFavoritesUsecase(repo FavoriteRepository, stream rankingusecase.UpdateStream, defaultExchange string, logger *zap.Logger) *FavoritesUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FavoritesUsecase{
		repo:            repo,
		stream:          stream,
		defaultExchange: defaultExchange,
		logger:          logger,
		watches:         make(map[uint]*watch),
	}
}

// ListGroups はユーザーのグループ一覧を返します。
// グループが1つもない場合は既定グループを作成して返します。
func (u *FavoritesUsecase) ListGroups(ctx context.Context, userID uint) ([]entity.Group, error) {
	groups, err := u.repo.ListGroups(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(groups) > 0 {
		return groups, nil
	}

	g := &entity.Group{UserID: userID, Name: entity.DefaultGroupName}
	if err := u.repo.CreateGroup(ctx, g); err != nil {
		return nil, fmt.Errorf("create default group: %w", err)
	}
	u.logger.Info("default favorite group created", zap.Uint("user_id", userID), zap.Uint("group_id", g.ID))
	return []entity.Group{*g}, nil
}

// CreateGroup は新しいグループを作成します。
func (u *FavoritesUsecase) CreateGroup(ctx context.Context, userID uint, name string) (*entity.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > entity.MaxGroupNameLength {
		return nil, fmt.Errorf("%w: group name must be 1-%d characters", ErrInvalidInput, entity.MaxGroupNameLength)
	}
	g := &entity.Group{UserID: userID, Name: name}
	if err := u.repo.CreateGroup(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// DeleteGroup はグループと所属銘柄を削除します。監視中のグループなら監視も終了します。
func (u *FavoritesUsecase) DeleteGroup(ctx context.Context, userID, groupID uint) error {
	if err := u.repo.DeleteGroup(ctx, userID, groupID); err != nil {
		return err
	}

	u.mu.Lock()
	w, ok := u.watches[userID]
	if ok && w.groupID == groupID {
		delete(u.watches, userID)
	} else {
		w = nil
	}
	u.mu.Unlock()

	if w != nil {
		w.view.Teardown()
	}
	return nil
}

// ListStocks はグループの登録銘柄を登録順に返します。
func (u *FavoritesUsecase) ListStocks(ctx context.Context, userID, groupID uint) ([]entity.Stock, error) {
	if _, err := u.repo.FindGroup(ctx, userID, groupID); err != nil {
		return nil, err
	}
	return u.repo.ListStocks(ctx, userID, groupID)
}

// AddStock はグループに銘柄を追加します。監視中のグループなら同じ条件で読み込み直します。
func (u *FavoritesUsecase) AddStock(ctx context.Context, s entity.Stock) (*entity.Stock, error) {
	s.Code = strings.TrimSpace(s.Code)
	if s.Code == "" {
		return nil, fmt.Errorf("%w: code is required", ErrInvalidInput)
	}
	if !s.Market.Valid() {
		return nil, fmt.Errorf("%w: unknown market %q", ErrInvalidInput, s.Market)
	}
	if s.Market == rankingentity.MarketOverseas {
		if s.Exchange == "" {
			s.Exchange = u.defaultExchange
		}
	} else {
		s.Exchange = ""
	}

	if _, err := u.repo.FindGroup(ctx, s.UserID, s.GroupID); err != nil {
		return nil, err
	}
	if err := u.repo.AddStock(ctx, &s); err != nil {
		return nil, err
	}
	u.refreshIfWatched(ctx, s.UserID, s.GroupID)
	return &s, nil
}

// RemoveStock はグループから銘柄を削除します。
func (u *FavoritesUsecase) RemoveStock(ctx context.Context, userID, groupID uint, market rankingentity.Market, code string) error {
	if err := u.repo.RemoveStock(ctx, userID, groupID, market, code); err != nil {
		return err
	}
	u.refreshIfWatched(ctx, userID, groupID)
	return nil
}

// Watch はユーザーの既存ビューを破棄し、グループの銘柄で新しいライブビューを読み込みます。
func (u *FavoritesUsecase) Watch(ctx context.Context, userID, groupID uint, filter rankingentity.MarketFilter, mode rankingentity.SortMode) (WatchState, error) {
	if !filter.Valid() || !mode.Valid() {
		return WatchState{}, fmt.Errorf("%w: market=%q sort=%q", rankingusecase.ErrInvalidSelection, filter, mode)
	}
	stocks, err := u.ListStocks(ctx, userID, groupID)
	if err != nil {
		return WatchState{}, err
	}

	view := rankingusecase.NewLiveView(groupSource{stocks: stocks}, u.stream,
		u.logger.With(zap.Uint("user_id", userID), zap.Uint("group_id", groupID)))

	w := &watch{groupID: groupID, view: view}
	u.mu.Lock()
	old := u.watches[userID]
	u.watches[userID] = w
	u.mu.Unlock()

	if old != nil {
		old.view.Teardown()
	}

	_, err = view.Load(ctx, filter, mode)

	// Load 中に Watch / Unwatch / DeleteGroup / Close でビューが外されていたら、
	// Load が張った購読はここで解除する
	if !u.isCurrent(userID, w) {
		view.Teardown()
		return WatchState{}, ErrWatchSuperseded
	}
	if err != nil {
		return WatchState{}, err
	}
	return stateOf(groupID, view), nil
}

func (u *FavoritesUsecase) isCurrent(userID uint, w *watch) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.watches[userID] == w
}

// Watched は監視中のビューの状態を返します。監視していなければ false です。
func (u *FavoritesUsecase) Watched(userID uint) (WatchState, bool) {
	u.mu.Lock()
	w, ok := u.watches[userID]
	u.mu.Unlock()
	if !ok {
		return WatchState{}, false
	}
	return stateOf(w.groupID, w.view), true
}

// Unwatch はユーザーのビューを破棄します。何度呼び出しても安全です。
func (u *FavoritesUsecase) Unwatch(userID uint) {
	u.mu.Lock()
	w, ok := u.watches[userID]
	delete(u.watches, userID)
	u.mu.Unlock()

	if ok {
		w.view.Teardown()
	}
}

// Close はすべてのビューを破棄します。シャットダウン時に呼び出します。
func (u *FavoritesUsecase) Close() {
	u.mu.Lock()
	watches := u.watches
	u.watches = make(map[uint]*watch)
	u.mu.Unlock()

	for _, w := range watches {
		w.view.Teardown()
	}
}

func (u *FavoritesUsecase) refreshIfWatched(ctx context.Context, userID, groupID uint) {
	u.mu.Lock()
	w, ok := u.watches[userID]
	u.mu.Unlock()
	if !ok || w.groupID != groupID {
		return
	}
	sel, loaded := w.view.Selection()
	if !loaded {
		return
	}
	if _, err := u.Watch(ctx, userID, groupID, sel.Filter, sel.Mode); err != nil && !errors.Is(err, ErrWatchSuperseded) {
		u.logger.Warn("failed to refresh watched group", zap.Uint("user_id", userID), zap.Uint("group_id", groupID), zap.Error(err))
	}
}

func stateOf(groupID uint, view *rankingusecase.LiveView) WatchState {
	sel, _ := view.Selection()
	return WatchState{
		GroupID:    groupID,
		Selection:  sel,
		Quotes:     view.Quotes(),
		Subscribed: view.Subscribed(),
	}
}
