package usecase_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"stock_board/internal/feature/ranking/domain/entity"
	rankingusecase "stock_board/internal/feature/ranking/usecase"
	"stock_board/internal/feature/search/usecase"
)

// mockSearcher はSearcherインターフェースのモック実装です。
type mockSearcher struct {
	SearchFunc func(ctx context.Context, keyword string) ([]entity.Quote, error)
}

func (m *mockSearcher) Search(ctx context.Context, keyword string) ([]entity.Quote, error) {
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, keyword)
	}
	return nil, errors.New("SearchFunc is not implemented")
}

func catalog() *mockSearcher {
	all := []entity.Quote{
		{Market: entity.MarketDomestic, Code: "005930", Name: "삼성전자", Price: 71000, ChangeRate: -0.5},
		{Market: entity.MarketDomestic, Code: "028260", Name: "삼성물산", Price: 150000, ChangeRate: 1.2},
		{Market: entity.MarketOverseas, Code: "SSNLF", Exchange: "NAS", Name: "Samsung ADR", Price: 40, ChangeRate: 2.5},
		{Market: entity.MarketOverseas, Code: "AAPL", Exchange: "NAS", Name: "Apple", Price: 200, ChangeRate: 0.3},
	}
	return &mockSearcher{
		SearchFunc: func(ctx context.Context, keyword string) ([]entity.Quote, error) {
			if keyword == "down" {
				return nil, errors.New("search api down")
			}
			var out []entity.Quote
			for _, q := range all {
				if keyword == "삼성" && q.Code == "AAPL" {
					continue
				}
				out = append(out, q)
			}
			return out, nil
		},
	}
}

type fakeSubscription struct {
	// gate が設定されていれば、Close は entered を閉じてから gate が閉じるまで待つ
	gate    chan struct{}
	entered chan struct{}

	mu     sync.Mutex
	closes int
}

func (s *fakeSubscription) Close() error {
	if s.gate != nil {
		close(s.entered)
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *fakeSubscription) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

type fakeStream struct {
	mu       sync.Mutex
	keys     [][]entity.SubscriptionKey
	handlers []func(entity.UpdateEvent)
	subs     []*fakeSubscription
}

func (f *fakeStream) Subscribe(ctx context.Context, keys []entity.SubscriptionKey, handle func(entity.UpdateEvent)) (rankingusecase.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub := &fakeSubscription{}
	f.keys = append(f.keys, slices.Clone(keys))
	f.handlers = append(f.handlers, handle)
	f.subs = append(f.subs, sub)
	return sub, nil
}

func (f *fakeStream) last() ([]entity.SubscriptionKey, func(entity.UpdateEvent), *fakeSubscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.subs) - 1
	return f.keys[i], f.handlers[i], f.subs[i]
}

func (f *fakeStream) open() int {
	f.mu.Lock()
	subs := slices.Clone(f.subs)
	f.mu.Unlock()
	n := 0
	for _, s := range subs {
		if s.Closes() == 0 {
			n++
		}
	}
	return n
}

func ptr(v float64) *float64 { return &v }

func codes(quotes []entity.Quote) []string {
	out := make([]string, 0, len(quotes))
	for _, q := range quotes {
		out = append(out, q.Code)
	}
	return out
}

func TestSearchUsecase_Search(t *testing.T) {
	t.Parallel()

	stream := &fakeStream{}
	uc := usecase.NewSearchUsecase(catalog(), stream, zap.NewNop())

	res, err := uc.Search(context.Background(), 1, "  삼성 ", entity.FilterAll, entity.SortVolume)
	require.NoError(t, err)
	assert.Equal(t, "삼성", res.Keyword)
	assert.True(t, res.Subscribed)
	// 出来高が揃うまでは関連度順
	assert.Equal(t, []string{"005930", "028260", "SSNLF"}, codes(res.Quotes))

	keys, handle, _ := stream.last()
	assert.Equal(t, []entity.SubscriptionKey{
		{Market: entity.MarketDomestic, Code: "005930"},
		{Market: entity.MarketDomestic, Code: "028260"},
		{Market: entity.MarketOverseas, Code: "SSNLF", Exchange: "NAS"},
	}, keys)

	handle(entity.UpdateEvent{Market: entity.MarketOverseas, Code: "SSNLF", Volume: ptr(500)})
	handle(entity.UpdateEvent{Market: entity.MarketOverseas, Code: "AAPL", Volume: ptr(9999)})

	current, ok := uc.Current(1)
	require.True(t, ok)
	assert.Equal(t, []string{"SSNLF", "005930", "028260"}, codes(current.Quotes))
	assert.Equal(t, float64(500), current.Quotes[0].Volume)
}

func TestSearchUsecase_Search_SortAndFilter(t *testing.T) {
	t.Parallel()

	uc := usecase.NewSearchUsecase(catalog(), nil, nil)

	res, err := uc.Search(context.Background(), 1, "삼성", entity.FilterAll, entity.SortRising)
	require.NoError(t, err)
	assert.Equal(t, []string{"SSNLF", "028260", "005930"}, codes(res.Quotes))
	assert.False(t, res.Subscribed)

	res, err = uc.Search(context.Background(), 1, "삼성", entity.FilterDomestic, entity.SortRising)
	require.NoError(t, err)
	assert.Equal(t, []string{"028260", "005930"}, codes(res.Quotes))
	assert.Equal(t, entity.Selection{Filter: entity.FilterDomestic, Mode: entity.SortRising}, res.Selection)
}

func TestSearchUsecase_Search_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		keyword string
		filter  entity.MarketFilter
		mode    entity.SortMode
		wantErr error
	}{
		{"empty keyword", "   ", entity.FilterAll, entity.SortVolume, usecase.ErrInvalidKeyword},
		{"keyword too long", strings.Repeat("가", usecase.MaxKeywordLength+1), entity.FilterAll, entity.SortVolume, usecase.ErrInvalidKeyword},
		{"unknown sort", "삼성", entity.FilterAll, entity.SortMode("hot"), rankingusecase.ErrInvalidSelection},
		{"upstream failure", "down", entity.FilterAll, entity.SortVolume, rankingusecase.ErrFetch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			uc := usecase.NewSearchUsecase(catalog(), &fakeStream{}, nil)
			_, err := uc.Search(context.Background(), 1, tt.keyword, tt.filter, tt.mode)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSearchUsecase_NewSearchReplacesDropdown(t *testing.T) {
	t.Parallel()

	stream := &fakeStream{}
	uc := usecase.NewSearchUsecase(catalog(), stream, nil)

	_, err := uc.Search(context.Background(), 1, "삼성", entity.FilterAll, entity.SortVolume)
	require.NoError(t, err)
	_, _, first := stream.last()

	res, err := uc.Search(context.Background(), 1, "a", entity.FilterAll, entity.SortVolume)
	require.NoError(t, err)
	assert.Len(t, res.Quotes, 4)
	assert.Equal(t, 1, first.Closes())
	assert.Equal(t, 1, stream.open())

	// 別ユーザーのドロップダウンには影響しない
	_, err = uc.Search(context.Background(), 2, "삼성", entity.FilterAll, entity.SortVolume)
	require.NoError(t, err)
	assert.Equal(t, 2, stream.open())

	uc.Clear(1)
	uc.Clear(1)
	_, ok := uc.Current(1)
	assert.False(t, ok)
	assert.Equal(t, 1, stream.open())

	uc.Close()
	assert.Zero(t, stream.open())
}

func TestSearchUsecase_ReplacedWhileLoading(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		interrupt func(uc *usecase.SearchUsecase) error
		showing   bool
	}{
		{
			name: "newer search",
			interrupt: func(uc *usecase.SearchUsecase) error {
				_, err := uc.Search(context.Background(), 1, "a", entity.FilterAll, entity.SortVolume)
				return err
			},
			showing: true,
		},
		{
			name: "clear",
			interrupt: func(uc *usecase.SearchUsecase) error {
				uc.Clear(1)
				return nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			stream := &fakeStream{}
			uc := usecase.NewSearchUsecase(catalog(), stream, nil)

			_, err := uc.Search(context.Background(), 1, "삼성", entity.FilterAll, entity.SortVolume)
			require.NoError(t, err)
			_, _, first := stream.last()
			first.gate = make(chan struct{})
			first.entered = make(chan struct{})

			done := make(chan error, 1)
			go func() {
				_, err := uc.Search(context.Background(), 1, "삼성물산", entity.FilterAll, entity.SortVolume)
				done <- err
			}()
			select {
			case <-first.entered:
			case <-time.After(2 * time.Second):
				t.Fatal("search did not reach teardown of the previous dropdown")
			}

			require.NoError(t, tt.interrupt(uc))

			close(first.gate)
			select {
			case err := <-done:
				assert.ErrorIs(t, err, usecase.ErrSearchSuperseded)
			case <-time.After(2 * time.Second):
				t.Fatal("search did not return")
			}

			res, ok := uc.Current(1)
			assert.Equal(t, tt.showing, ok)
			if tt.showing {
				assert.Equal(t, "a", res.Keyword)
				assert.Equal(t, 1, stream.open())
			} else {
				assert.Zero(t, stream.open())
			}

			uc.Close()
			assert.Zero(t, stream.open())
		})
	}
}
