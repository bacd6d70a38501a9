package usecase

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"stock_board/internal/feature/ranking/domain/entity"
)

// BoardState はランキングボードの表示状態です。
type BoardState struct {
	Selection entity.Selection
	Loaded    bool
	Quotes    []entity.Quote
	// Err は直近の Load が失敗した場合のエラーです。表示用に保持します。
	Err error
}

// Board は公開ランキングボードのユースケースです。
// 条件の切り替えは常に Teardown → Load の順で行われます。
type Board struct {
	view     *LiveView
	defaults entity.Selection
	logger   *zap.Logger

	mu      sync.Mutex
	seq     uint64 // 最新の Select を判定する
	lastErr error
}

// NewBoard はBoardの新しいインスタンスを生成します。
func NewBoard(view *LiveView, defaults entity.Selection, logger *zap.Logger) *Board {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Board{view: view, defaults: defaults, logger: logger}
}

// Start は既定の条件で最初のランキングを読み込みます。
func (b *Board) Start(ctx context.Context) error {
	_, err := b.Select(ctx, b.defaults.Filter, b.defaults.Mode)
	return err
}

// Select は表示条件を切り替えてランキングを読み込み直します。
func (b *Board) Select(ctx context.Context, filter entity.MarketFilter, mode entity.SortMode) ([]entity.Quote, error) {
	if !filter.Valid() || !mode.Valid() {
		return nil, fmt.Errorf("%w: market=%q sort=%q", ErrInvalidSelection, filter, mode)
	}

	b.mu.Lock()
	b.seq++
	seq := b.seq
	b.mu.Unlock()

	b.view.Teardown()
	quotes, err := b.view.Load(ctx, filter, mode)

	b.mu.Lock()
	latest := seq == b.seq
	if latest {
		b.lastErr = err
	}
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if !latest {
		// 後続の Select に置き換えられた
		return quotes, nil
	}
	b.logger.Info("ranking selection changed",
		zap.String("market", string(filter)),
		zap.String("sort", string(mode)),
		zap.Int("quotes", len(quotes)),
	)
	return quotes, nil
}

// Current は現在の表示状態を返します。
func (b *Board) Current() BoardState {
	sel, loaded := b.view.Selection()

	b.mu.Lock()
	lastErr := b.lastErr
	b.mu.Unlock()

	return BoardState{
		Selection: sel,
		Loaded:    loaded,
		Quotes:    b.view.Quotes(),
		Err:       lastErr,
	}
}

// Stop は購読を解除します。
func (b *Board) Stop() {
	b.view.Teardown()
}
