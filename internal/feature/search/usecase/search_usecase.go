package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"stock_board/internal/feature/ranking/domain/entity"
	rankingusecase "stock_board/internal/feature/ranking/usecase"
)

// MaxKeywordLength は検索キーワードの最大文字数です。
const MaxKeywordLength = 50

// Searcher は銘柄検索APIを抽象化します。結果は関連度順です。
type Searcher interface {
	Search(ctx context.Context, keyword string) ([]entity.Quote, error)
}

// keywordSource は1つのキーワードの検索結果をスナップショットとして返します。
type keywordSource struct {
	searcher Searcher
	keyword  string
}

var _ rankingusecase.SnapshotSource = keywordSource{}

func (s keywordSource) FetchSnapshot(ctx context.Context, filter entity.MarketFilter, mode entity.SortMode) ([]entity.Quote, error) {
	return s.searcher.Search(ctx, s.keyword)
}

// Result はドロップダウンの表示状態です。
type Result struct {
	Keyword    string
	Selection  entity.Selection
	Quotes     []entity.Quote
	Subscribed bool
}

type dropdown struct {
	keyword string
	view    *rankingusecase.LiveView
}

// SearchUsecase はユーザーごとに1つの検索ドロップダウンを保持します。
// 新しい検索は前のドロップダウンの購読を必ず解除してから読み込みます。
type SearchUsecase struct {
	searcher Searcher
	stream   rankingusecase.UpdateStream
	logger   *zap.Logger

	mu        sync.Mutex
	dropdowns map[uint]*dropdown
}

// NewSearchUsecase はSearchUsecaseの新しいインスタンスを生成します。
func NewSearchUsecase(searcher Searcher, stream rankingusecase.UpdateStream, logger *zap.Logger) *SearchUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearchUsecase{
		searcher:  searcher,
		stream:    stream,
		logger:    logger,
		dropdowns: make(map[uint]*dropdown),
	}
}

// Search は keyword の候補を読み込み、ユーザーのドロップダウンを置き換えます。
// 候補は関連度順で始まり、ティックで順位値が埋まると mode の順に並び替わります。
func (u *SearchUsecase) Search(ctx context.Context, userID uint, keyword string, filter entity.MarketFilter, mode entity.SortMode) (Result, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" || utf8.RuneCountInString(keyword) > MaxKeywordLength {
		return Result{}, fmt.Errorf("%w: keyword must be 1-%d characters", ErrInvalidKeyword, MaxKeywordLength)
	}
	if !filter.Valid() || !mode.Valid() {
		return Result{}, fmt.Errorf("%w: market=%q sort=%q", rankingusecase.ErrInvalidSelection, filter, mode)
	}

	view := rankingusecase.NewLiveView(keywordSource{searcher: u.searcher, keyword: keyword}, u.stream,
		u.logger.With(zap.Uint("user_id", userID), zap.String("keyword", keyword)))
	d := &dropdown{keyword: keyword, view: view}

	u.mu.Lock()
	old := u.dropdowns[userID]
	u.dropdowns[userID] = d
	u.mu.Unlock()

	if old != nil {
		old.view.Teardown()
	}

	_, err := view.Load(ctx, filter, mode)

	u.mu.Lock()
	current := u.dropdowns[userID] == d
	u.mu.Unlock()
	if !current {
		view.Teardown()
		return Result{}, ErrSearchSuperseded
	}
	if err != nil {
		return Result{}, err
	}
	return resultOf(keyword, view), nil
}

// Current は表示中のドロップダウンを返します。なければ false です。
func (u *SearchUsecase) Current(userID uint) (Result, bool) {
	u.mu.Lock()
	d, ok := u.dropdowns[userID]
	u.mu.Unlock()
	if !ok {
		return Result{}, false
	}
	return resultOf(d.keyword, d.view), true
}

// Clear はドロップダウンを閉じます。何度呼び出しても安全です。
func (u *SearchUsecase) Clear(userID uint) {
	u.mu.Lock()
	d, ok := u.dropdowns[userID]
	delete(u.dropdowns, userID)
	u.mu.Unlock()

	if ok {
		d.view.Teardown()
	}
}

// Close はすべてのドロップダウンを閉じます。
func (u *SearchUsecase) Close() {
	u.mu.Lock()
	dropdowns := u.dropdowns
	u.dropdowns = make(map[uint]*dropdown)
	u.mu.Unlock()

	for _, d := range dropdowns {
		d.view.Teardown()
	}
}

func resultOf(keyword string, view *rankingusecase.LiveView) Result {
	sel, _ := view.Selection()
	return Result{
		Keyword:    keyword,
		Selection:  sel,
		Quotes:     view.Quotes(),
		Subscribed: view.Subscribed(),
	}
}
