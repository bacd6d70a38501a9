package pubsub

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock_board/internal/feature/ranking/domain/entity"
)

func TestPublisher_RoundTrip(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	var (
		mu  sync.Mutex
		got []entity.UpdateEvent
	)
	stream := NewStream(rdb, "relay", nil)
	sub, err := stream.Subscribe(context.Background(), []entity.SubscriptionKey{
		{Market: entity.MarketOverseas, Code: "AAPL", Exchange: "NAS"},
	}, func(ev entity.UpdateEvent) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ev)
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })

	price := 201.5
	pub := NewPublisher(rdb, "relay")
	require.NoError(t, pub.Publish(context.Background(), entity.UpdateEvent{Market: entity.MarketOverseas, Code: "AAPL", Price: &price}))
	// 購読していない銘柄は届かない
	require.NoError(t, pub.Publish(context.Background(), entity.UpdateEvent{Market: entity.MarketOverseas, Code: "MSFT", Price: &price}))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "AAPL", got[0].Code)
	require.NotNil(t, got[0].Price)
	assert.Equal(t, 201.5, *got[0].Price)
	assert.Nil(t, got[0].Volume)
}

func TestPublisher_RedisDown(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	err := NewPublisher(rdb, "").Publish(context.Background(), entity.UpdateEvent{Market: entity.MarketDomestic, Code: "005930"})
	assert.Error(t, err)
}
