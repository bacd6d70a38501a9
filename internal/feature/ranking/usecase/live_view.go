package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"stock_board/internal/feature/ranking/domain/entity"
	"stock_board/internal/shared/rankedlist"
)

type quoteList = rankedlist.List[entity.Key, entity.Quote]

// LiveView は並び順付きの銘柄一覧を保持し、部分更新を取り込みながら常にソート済みに保ちます。
//
// 購読は LiveView ごとに最大1つで、Load と Teardown の境界でのみ付け替えられます。
// すべてのメソッドは複数のゴルーチンから同時に呼び出せます。
type LiveView struct {
	source SnapshotSource
	stream UpdateStream
	logger *zap.Logger

	mu     sync.Mutex
	gen    uint64 // Load / Teardown のたびに進む世代番号
	sel    entity.Selection
	spec   entity.SortSpec
	list   *quoteList
	sub    Subscription
	loaded bool
}

// NewLiveView はLiveViewの新しいインスタンスを生成します。
// stream が nil の場合はスナップショットのみを表示します。
func NewLiveView(source SnapshotSource, stream UpdateStream, logger *zap.Logger) *LiveView {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LiveView{
		source: source,
		stream: stream,
		logger: logger,
	}
}

// Load は直前の購読を解除してからスナップショットを取得し、作業集合を丸ごと置き換えます。
// 取得結果に含まれる銘柄だけを対象に新しい購読を張ります。
//
// 取得に失敗した場合は *FetchError を返し、作業集合は空のままになります。
// 実行中に別の Load や Teardown が始まった場合、この呼び出しの結果は破棄され nil, nil を返します。
func (v *LiveView) Load(ctx context.Context, filter entity.MarketFilter, mode entity.SortMode) ([]entity.Quote, error) {
	spec, ok := mode.Spec()
	if !ok || !filter.Valid() {
		return nil, fmt.Errorf("%w: market=%q sort=%q", ErrInvalidSelection, filter, mode)
	}
	sel := entity.Selection{Filter: filter, Mode: mode}

	v.mu.Lock()
	old := v.detachLocked()
	v.gen++
	gen := v.gen
	v.sel = sel
	v.spec = spec
	v.list = rankedlist.New(entity.Quote.Key, rankOf, spec.Direction)
	v.loaded = true
	v.mu.Unlock()
	v.closeSubscription(old)

	snapshot, fetchErr := v.source.FetchSnapshot(ctx, filter, mode)

	quotes, keys, err := v.commit(gen, sel, spec, snapshot, fetchErr)
	if errors.Is(err, errStaleResult) {
		v.logger.Debug("discarding superseded load", zap.String("market", string(filter)), zap.String("sort", string(mode)))
		return nil, nil
	}
	if err != nil {
		v.logger.Warn("snapshot fetch failed", zap.String("market", string(filter)), zap.String("sort", string(mode)), zap.Error(err))
		return nil, err
	}

	if v.stream == nil || len(keys) == 0 {
		return quotes, nil
	}

	sub, err := v.stream.Subscribe(ctx, keys, v.handlerFor(gen))
	if err != nil {
		// 次の Load まではスナップショットのまま表示する
		v.logger.Warn("subscribe failed, serving static snapshot", zap.Int("keys", len(keys)), zap.Error(err))
		return quotes, nil
	}

	v.mu.Lock()
	if gen != v.gen {
		v.mu.Unlock()
		v.closeSubscription(sub)
		v.logger.Debug("discarding subscription of superseded load")
		return nil, nil
	}
	v.sub = sub
	v.mu.Unlock()

	return quotes, nil
}

// commit は取得結果を作業集合に反映します。世代が変わっていれば errStaleResult を返します。
func (v *LiveView) commit(gen uint64, sel entity.Selection, spec entity.SortSpec, snapshot []entity.Quote, fetchErr error) ([]entity.Quote, []entity.SubscriptionKey, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if gen != v.gen {
		return nil, nil, errStaleResult
	}
	if fetchErr != nil {
		return nil, nil, &FetchError{Selection: sel, Err: fetchErr}
	}

	prepared := make([]entity.Quote, 0, len(snapshot))
	for _, q := range snapshot {
		if q.Code == "" || !sel.Filter.Includes(q.Market) {
			v.logger.Debug("skipping snapshot entry", zap.String("market", string(q.Market)), zap.String("code", q.Code))
			continue
		}
		q.RankValue = spec.Field.Of(q)
		prepared = append(prepared, q)
	}
	v.list.Reset(prepared)

	quotes := v.list.Items()
	keys := make([]entity.SubscriptionKey, 0, len(quotes))
	for _, q := range quotes {
		keys = append(keys, q.SubscriptionKey())
	}
	return quotes, keys, nil
}

// ApplyUpdate は1件の部分更新を取り込みます。
// 作業集合にない銘柄の更新は捨てられ、順位値が変わった場合のみ安定ソートし直します。
func (v *LiveView) ApplyUpdate(ev entity.UpdateEvent) {
	v.ApplyUpdates([]entity.UpdateEvent{ev})
}

// ApplyUpdates は複数の部分更新をまとめて取り込み、必要なら最後に一度だけソートし直します。
func (v *LiveView) ApplyUpdates(events []entity.UpdateEvent) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.applyLocked(events)
}

func (v *LiveView) handlerFor(gen uint64) func(entity.UpdateEvent) {
	return func(ev entity.UpdateEvent) {
		v.mu.Lock()
		defer v.mu.Unlock()
		if gen != v.gen {
			return
		}
		v.applyLocked([]entity.UpdateEvent{ev})
	}
}

func (v *LiveView) applyLocked(events []entity.UpdateEvent) {
	if v.list == nil {
		return
	}
	resort := false
	for _, ev := range events {
		if err := validateEvent(ev); err != nil {
			v.logger.Warn("dropping update", zap.String("market", string(ev.Market)), zap.String("code", ev.Code), zap.Error(err))
			continue
		}
		found, changed := v.list.Patch(ev.Key(), func(q *entity.Quote) {
			merge(q, ev, v.spec.Field)
		})
		if !found {
			continue
		}
		resort = resort || changed
	}
	if resort {
		v.list.Resort()
	}
}

// merge は event に含まれるフィールドだけを上書きします。
func merge(q *entity.Quote, ev entity.UpdateEvent, field entity.RankField) {
	set(&q.Price, ev.Price)
	set(&q.Change, ev.Change)
	set(&q.ChangeRate, ev.ChangeRate)
	set(&q.Volume, ev.Volume)
	set(&q.Amount, ev.Amount)
	if p, ok := field.In(ev); ok && finite(p) {
		q.RankValue = *p
	}
}

func set(dst *float64, src *float64) {
	if finite(src) {
		*dst = *src
	}
}

func finite(p *float64) bool {
	return p != nil && !math.IsNaN(*p) && !math.IsInf(*p, 0)
}

func validateEvent(ev entity.UpdateEvent) error {
	if ev.Code == "" {
		return fmt.Errorf("%w: missing code", ErrMalformedUpdate)
	}
	if !ev.Market.Valid() {
		return fmt.Errorf("%w: unknown market %q", ErrMalformedUpdate, ev.Market)
	}
	return nil
}

// Teardown は購読を解除し、実行中の Load を無効化します。何度呼び出しても安全です。
// 作業集合は次の Load まで静的に残ります。
func (v *LiveView) Teardown() {
	v.mu.Lock()
	sub := v.detachLocked()
	v.gen++
	v.mu.Unlock()
	v.closeSubscription(sub)
}

// Quotes は現在の並び順で作業集合のコピーを返します。
func (v *LiveView) Quotes() []entity.Quote {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.list == nil {
		return []entity.Quote{}
	}
	return v.list.Items()
}

// Selection は直近の Load で指定された条件を返します。一度も Load されていなければ false です。
func (v *LiveView) Selection() (entity.Selection, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.sel, v.loaded
}

// Subscribed reports whether a subscription is currently held.
func (v *LiveView) Subscribed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.sub != nil
}

func (v *LiveView) detachLocked() Subscription {
	sub := v.sub
	v.sub = nil
	return sub
}

// closeSubscription must be called without holding mu: Close waits for the
// reader goroutine, which may be blocked acquiring mu.
func (v *LiveView) closeSubscription(sub Subscription) {
	if sub == nil {
		return
	}
	if err := sub.Close(); err != nil {
		v.logger.Warn("closing subscription", zap.Error(err))
	}
}

func rankOf(q entity.Quote) float64 { return q.RankValue }
