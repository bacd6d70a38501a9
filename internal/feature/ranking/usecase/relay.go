package usecase

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"go.uber.org/zap"

	"stock_board/internal/feature/ranking/domain/entity"
)

// Relay はランキングに載っている銘柄のティックを購読し、UpdatePublisher へ転送します。
// 対象銘柄は一定間隔でスナップショットを取り直して更新します。
type Relay struct {
	source  SnapshotSource
	stream  UpdateStream
	pub     UpdatePublisher
	refresh time.Duration
	logger  *zap.Logger
}

// NewRelay はRelayの新しいインスタンスを生成します。refresh が0以下なら対象を更新しません。
func NewRelay(source SnapshotSource, stream UpdateStream, pub UpdatePublisher, refresh time.Duration, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{source: source, stream: stream, pub: pub, refresh: refresh, logger: logger}
}

// AllSelections はすべての市場と並び順の組み合わせを返します。
func AllSelections() []entity.Selection {
	modes := []entity.SortMode{entity.SortVolume, entity.SortAmount, entity.SortMarketCap, entity.SortRising, entity.SortFalling}
	out := make([]entity.Selection, 0, len(modes))
	for _, m := range modes {
		out = append(out, entity.Selection{Filter: entity.FilterAll, Mode: m})
	}
	return out
}

// Run は ctx が終了するまで転送を続けます。終了時は購読を必ず解除します。
func (r *Relay) Run(ctx context.Context, selections []entity.Selection) error {
	keys, err := r.collect(ctx, selections)
	if err != nil {
		return err
	}
	sub, err := r.subscribe(ctx, keys)
	if err != nil {
		return err
	}
	defer func() { r.close(sub) }()

	var tick <-chan time.Time
	if r.refresh > 0 {
		t := time.NewTicker(r.refresh)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
			next, err := r.collect(ctx, selections)
			if err != nil {
				r.logger.Warn("relay refresh failed, keeping current subscription", zap.Error(err))
				continue
			}
			if maps.Equal(keys, next) {
				continue
			}
			nextSub, err := r.subscribe(ctx, next)
			if err != nil {
				r.logger.Warn("relay resubscribe failed, keeping current subscription", zap.Error(err))
				continue
			}
			// 新しい購読を張ってから古い購読を閉じる
			r.close(sub)
			sub, keys = nextSub, next
		}
	}
}

// collect は各条件のスナップショットを取得し、重複を除いた購読キーを返します。
// 一部の条件が失敗しても、1つでも成功すればその結果を使います。
func (r *Relay) collect(ctx context.Context, selections []entity.Selection) (map[entity.Key]entity.SubscriptionKey, error) {
	keys := make(map[entity.Key]entity.SubscriptionKey)
	var errs []error
	for _, sel := range selections {
		quotes, err := r.source.FetchSnapshot(ctx, sel.Filter, sel.Mode)
		if err != nil {
			errs = append(errs, &FetchError{Selection: sel, Err: err})
			continue
		}
		for _, q := range quotes {
			if q.Code == "" || !sel.Filter.Includes(q.Market) {
				continue
			}
			keys[q.Key()] = q.SubscriptionKey()
		}
	}
	if len(errs) == len(selections) && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	for _, err := range errs {
		r.logger.Warn("relay snapshot failed", zap.Error(err))
	}
	if len(keys) == 0 {
		return nil, errors.New("relay: no instruments to subscribe")
	}
	return keys, nil
}

func (r *Relay) subscribe(ctx context.Context, keys map[entity.Key]entity.SubscriptionKey) (Subscription, error) {
	list := slices.SortedFunc(maps.Values(keys), func(a, b entity.SubscriptionKey) int {
		return cmp.Or(cmp.Compare(a.Market, b.Market), cmp.Compare(a.Code, b.Code))
	})
	sub, err := r.stream.Subscribe(ctx, list, func(ev entity.UpdateEvent) {
		if err := r.pub.Publish(ctx, ev); err != nil && ctx.Err() == nil {
			r.logger.Warn("relay publish failed", zap.String("key", ev.Key().String()), zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("relay subscribe: %w", err)
	}
	r.logger.Info("relay subscribed", zap.Int("instruments", len(list)))
	return sub, nil
}

func (r *Relay) close(sub Subscription) {
	if err := sub.Close(); err != nil {
		r.logger.Warn("failed to close relay subscription", zap.Error(err))
	}
}

