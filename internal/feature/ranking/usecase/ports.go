package usecase

import (
	"context"

	"stock_board/internal/feature/ranking/domain/entity"
)

// SnapshotSource は現在のランキングを一括取得するレイヤーを抽象化します。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
type SnapshotSource interface {
	// FetchSnapshot は指定されたフィルタと並び順のランキングを取得します。
	// タイムアウトは ctx で伝播されます。
	FetchSnapshot(ctx context.Context, filter entity.MarketFilter, mode entity.SortMode) ([]entity.Quote, error)
}

// UpdateStream はプッシュ型の部分更新ストリームを抽象化します。
type UpdateStream interface {
	// Subscribe は keys に列挙した銘柄だけを購読し、受信したティックを handle に渡します。
	// ctx は接続確立までを制限します。購読の寿命は Subscription.Close で終わります。
	// handle は単一のゴルーチンから順番に呼び出されます。
	Subscribe(ctx context.Context, keys []entity.SubscriptionKey, handle func(entity.UpdateEvent)) (Subscription, error)
}

// Subscription は確立済みの購読です。Close は複数回呼び出しても安全でなければなりません。
type Subscription interface {
	Close() error
}

// UpdatePublisher は受信した更新を別の配信経路へ転送します。
type UpdatePublisher interface {
	Publish(ctx context.Context, ev entity.UpdateEvent) error
}
