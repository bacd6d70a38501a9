package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock_board/internal/feature/ranking/domain/entity"
)

// mockSnapshotSource はテスト用のSnapshotSourceモック実装です。
type mockSnapshotSource struct {
	fetchFn func(ctx context.Context, filter entity.MarketFilter, mode entity.SortMode) ([]entity.Quote, error)
	calls   int
}

// FetchSnapshot はモックのfetch関数を呼び出します。
func (m *mockSnapshotSource) FetchSnapshot(ctx context.Context, filter entity.MarketFilter, mode entity.SortMode) ([]entity.Quote, error) {
	m.calls++
	if m.fetchFn != nil {
		return m.fetchFn(ctx, filter, mode)
	}
	return nil, nil
}

func fixedTTL(d time.Duration) TTLFunc {
	return func(time.Time) time.Duration { return d }
}

var sampleQuotes = []entity.Quote{
	{Market: entity.MarketDomestic, Code: "005930", Name: "Samsung", Volume: 100, RankValue: 100},
	{Market: entity.MarketOverseas, Code: "DNASAAPL", Exchange: "NAS", Symbol: "AAPL", Volume: 90, RankValue: 90},
}

// TestNewCachingSnapshotSource_Defaults はデフォルト値（TTLとnamespace）が正しく設定されることを検証します。
func TestNewCachingSnapshotSource_Defaults(t *testing.T) {
	t.Parallel()

	src := NewCachingSnapshotSource(nil, nil, &mockSnapshotSource{}, "", "NAS", nil)
	assert.Equal(t, "ranking", src.namespace)
	assert.NotNil(t, src.ttl)
	assert.Equal(t, "ranking:all:volume:NAS", src.cacheKey(entity.FilterAll, entity.SortVolume))

	src = NewCachingSnapshotSource(nil, fixedTTL(time.Second), &mockSnapshotSource{}, "board", "NY S", nil)
	assert.Equal(t, "board:overseas:market-cap:NY_S", src.cacheKey(entity.FilterOverseas, entity.SortMarketCap))
}

// TestCachingSnapshotSource_NilRedis はRedisがnilの場合にキャッシュをバイパスすることを検証します。
func TestCachingSnapshotSource_NilRedis(t *testing.T) {
	t.Parallel()

	inner := &mockSnapshotSource{
		fetchFn: func(ctx context.Context, filter entity.MarketFilter, mode entity.SortMode) ([]entity.Quote, error) {
			return sampleQuotes, nil
		},
	}
	src := NewCachingSnapshotSource(nil, nil, inner, "ranking", "NAS", nil)

	quotes, err := src.FetchSnapshot(context.Background(), entity.FilterAll, entity.SortVolume)
	require.NoError(t, err)
	assert.Equal(t, sampleQuotes, quotes)
	assert.Equal(t, 1, inner.calls)
}

// TestCachingSnapshotSource_CacheHit はキャッシュヒット時に上流を呼ばないことを検証します。
func TestCachingSnapshotSource_CacheHit(t *testing.T) {
	t.Parallel()

	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	cachedJSON, _ := json.Marshal(sampleQuotes)
	mock.ExpectGet("ranking:all:volume:NAS").SetVal(string(cachedJSON))

	inner := &mockSnapshotSource{}
	src := NewCachingSnapshotSource(rdb, fixedTTL(5*time.Second), inner, "ranking", "NAS", nil)

	quotes, err := src.FetchSnapshot(context.Background(), entity.FilterAll, entity.SortVolume)
	require.NoError(t, err)
	assert.Equal(t, sampleQuotes, quotes)
	assert.Equal(t, 0, inner.calls, "inner source should not be called on cache hit")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestCachingSnapshotSource_CacheMiss はキャッシュミス時に上流から取得し、キャッシュに保存することを検証します。
func TestCachingSnapshotSource_CacheMiss(t *testing.T) {
	t.Parallel()

	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	expectedJSON, _ := json.Marshal(sampleQuotes)
	mock.ExpectGet("ranking:domestic:rising:NAS").RedisNil()
	mock.ExpectSet("ranking:domestic:rising:NAS", expectedJSON, 5*time.Second).SetVal("OK")

	inner := &mockSnapshotSource{
		fetchFn: func(ctx context.Context, filter entity.MarketFilter, mode entity.SortMode) ([]entity.Quote, error) {
			assert.Equal(t, entity.FilterDomestic, filter)
			assert.Equal(t, entity.SortRising, mode)
			return sampleQuotes, nil
		},
	}
	src := NewCachingSnapshotSource(rdb, fixedTTL(5*time.Second), inner, "ranking", "NAS", nil)

	quotes, err := src.FetchSnapshot(context.Background(), entity.FilterDomestic, entity.SortRising)
	require.NoError(t, err)
	assert.Equal(t, sampleQuotes, quotes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestCachingSnapshotSource_InnerError は上流のエラーがそのまま伝播し、キャッシュに書かないことを検証します。
func TestCachingSnapshotSource_InnerError(t *testing.T) {
	t.Parallel()

	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	expectedErr := errors.New("upstream error")
	mock.ExpectGet("ranking:all:amount:NAS").RedisNil()

	inner := &mockSnapshotSource{
		fetchFn: func(ctx context.Context, filter entity.MarketFilter, mode entity.SortMode) ([]entity.Quote, error) {
			return nil, expectedErr
		},
	}
	src := NewCachingSnapshotSource(rdb, fixedTTL(5*time.Second), inner, "ranking", "NAS", nil)

	_, err := src.FetchSnapshot(context.Background(), entity.FilterAll, entity.SortAmount)
	if !errors.Is(err, expectedErr) {
		t.Errorf("expected error %v, got %v", expectedErr, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled mock expectations: %v", err)
	}
}

// TestCachingSnapshotSource_CorruptedCache は破損したキャッシュを削除して上流にフォールバックすることを検証します。
func TestCachingSnapshotSource_CorruptedCache(t *testing.T) {
	t.Parallel()

	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	expectedJSON, _ := json.Marshal(sampleQuotes)
	mock.ExpectGet("ranking:all:volume:NAS").SetVal("invalid json")
	mock.ExpectDel("ranking:all:volume:NAS").SetVal(1)
	mock.ExpectSet("ranking:all:volume:NAS", expectedJSON, time.Minute).SetVal("OK")

	inner := &mockSnapshotSource{
		fetchFn: func(ctx context.Context, filter entity.MarketFilter, mode entity.SortMode) ([]entity.Quote, error) {
			return sampleQuotes, nil
		},
	}
	src := NewCachingSnapshotSource(rdb, fixedTTL(time.Minute), inner, "ranking", "NAS", nil)

	quotes, err := src.FetchSnapshot(context.Background(), entity.FilterAll, entity.SortVolume)
	require.NoError(t, err)
	assert.Len(t, quotes, 2)
	assert.Equal(t, 1, inner.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestCachingSnapshotSource_RedisUnavailable はRedis障害時も上流の結果を返すことを検証します。
func TestCachingSnapshotSource_RedisUnavailable(t *testing.T) {
	t.Parallel()

	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	expectedJSON, _ := json.Marshal(sampleQuotes)
	mock.ExpectGet("ranking:all:volume:NAS").SetErr(errors.New("connection refused"))
	mock.ExpectSet("ranking:all:volume:NAS", expectedJSON, 5*time.Second).SetErr(errors.New("connection refused"))

	inner := &mockSnapshotSource{
		fetchFn: func(ctx context.Context, filter entity.MarketFilter, mode entity.SortMode) ([]entity.Quote, error) {
			return sampleQuotes, nil
		},
	}
	src := NewCachingSnapshotSource(rdb, fixedTTL(5*time.Second), inner, "ranking", "NAS", nil)

	quotes, err := src.FetchSnapshot(context.Background(), entity.FilterAll, entity.SortVolume)
	require.NoError(t, err)
	assert.Equal(t, sampleQuotes, quotes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestCachingSnapshotSource_TTLFromClock はTTLが現在時刻から計算されることを検証します。
func TestCachingSnapshotSource_TTLFromClock(t *testing.T) {
	t.Parallel()

	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	// 土曜日の正午（UTC）はどちらの市場も閉まっている
	saturday := time.Date(2025, 6, 7, 12, 0, 0, 0, time.UTC)

	expectedJSON, _ := json.Marshal([]entity.Quote{})
	mock.ExpectGet("ranking:all:volume:NAS").RedisNil()
	mock.ExpectSet("ranking:all:volume:NAS", expectedJSON, ClosedSessionTTL).SetVal("OK")

	inner := &mockSnapshotSource{
		fetchFn: func(ctx context.Context, filter entity.MarketFilter, mode entity.SortMode) ([]entity.Quote, error) {
			return []entity.Quote{}, nil
		},
	}
	src := NewCachingSnapshotSource(rdb, nil, inner, "ranking", "NAS", nil)
	src.now = func() time.Time { return saturday }

	_, err := src.FetchSnapshot(context.Background(), entity.FilterAll, entity.SortVolume)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
