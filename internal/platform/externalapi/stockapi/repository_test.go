package stockapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock_board/internal/feature/ranking/domain/entity"
	"stock_board/internal/shared/ratelimiter"
)

func newTestServer(t *testing.T, status int, body string, check func(r *http.Request)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRankingClient_FetchSnapshot_Success(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, http.StatusOK, `{
		"output": [
			{"market": "domestic", "code": "005930", "name": "Samsung", "price": "71,500", "diff": -500, "rate": "-0.69", "volume": "12,345,678", "amount": 882000000000, "value": 12345678},
			{"market": "overseas", "code": "DNASAAPL", "symb": "AAPL", "name": "Apple", "price": 312345.5, "rate": 1.25, "volume": 9000000, "amount": "1,234,567", "value": 9000000},
			{"market": "domestic", "code": "", "name": "broken"}
		]
	}`, func(r *http.Request) {
		assert.Equal(t, "/stocks/ranking/all/volume", r.URL.Path)
		assert.Equal(t, "NAS", r.URL.Query().Get("excd"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
	})

	client := NewRankingClient(Config{BaseURL: server.URL, Token: "secret"}, server.Client(), nil, nil)

	quotes, err := client.FetchSnapshot(context.Background(), entity.FilterAll, entity.SortVolume)
	require.NoError(t, err)
	require.Len(t, quotes, 2)

	assert.Equal(t, entity.Quote{
		Market: entity.MarketDomestic, Code: "005930", Symbol: "005930", Name: "Samsung",
		Price: 71500, Change: -500, ChangeRate: -0.69, Volume: 12345678, Amount: 882000000000,
	}, quotes[0])
	assert.Equal(t, entity.Quote{
		Market: entity.MarketOverseas, Code: "DNASAAPL", Exchange: "NAS", Symbol: "AAPL", Name: "Apple",
		Price: 312345.5, ChangeRate: 1.25, Volume: 9000000, Amount: 1234567,
	}, quotes[1])
}

func TestRankingClient_FetchSnapshot_Paths(t *testing.T) {
	t.Parallel()

	tests := []struct {
		filter entity.MarketFilter
		mode   entity.SortMode
		path   string
	}{
		{entity.FilterDomestic, entity.SortAmount, "/stocks/ranking/domestic/amount"},
		{entity.FilterOverseas, entity.SortMarketCap, "/stocks/ranking/overseas/market-cap"},
		{entity.FilterAll, entity.SortRising, "/stocks/ranking/all/fluctuation/rising"},
		{entity.FilterDomestic, entity.SortFalling, "/stocks/ranking/domestic/fluctuation/falling"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()

			var got string
			server := newTestServer(t, http.StatusOK, `{"output": []}`, func(r *http.Request) {
				got = r.URL.Path
			})
			client := NewRankingClient(Config{BaseURL: server.URL + "/"}, server.Client(), nil, nil)

			quotes, err := client.FetchSnapshot(context.Background(), tt.filter, tt.mode)
			require.NoError(t, err)
			assert.Empty(t, quotes)
			assert.Equal(t, tt.path, got)
		})
	}
}

func TestRankingClient_FetchSnapshot_MarketCapFromValue(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, http.StatusOK, `{"output": [
		{"code": "AAPL", "price": 1, "value": "3,500,000,000"}
	]}`, nil)
	client := NewRankingClient(Config{BaseURL: server.URL, Exchange: "NYS"}, server.Client(), nil, nil)

	quotes, err := client.FetchSnapshot(context.Background(), entity.FilterOverseas, entity.SortMarketCap)
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, entity.MarketOverseas, quotes[0].Market)
	assert.Equal(t, "NYS", quotes[0].Exchange)
	assert.Equal(t, 3500000000.0, quotes[0].MarketCap)
}

func TestRankingClient_FetchSnapshot_UnparsableFieldsBecomeZero(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, http.StatusOK, `{"output": [
		{"market": "domestic", "code": "A", "price": "N/A", "volume": "NaN", "amount": {"x": 1}, "rate": 2}
	]}`, nil)
	client := NewRankingClient(Config{BaseURL: server.URL}, server.Client(), nil, nil)

	quotes, err := client.FetchSnapshot(context.Background(), entity.FilterAll, entity.SortVolume)
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, 0.0, quotes[0].Price)
	assert.Equal(t, 0.0, quotes[0].Volume)
	assert.Equal(t, 0.0, quotes[0].Amount)
	assert.Equal(t, 2.0, quotes[0].ChangeRate)
}

func TestRankingClient_FetchSnapshot_SkipsUnknownMarket(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, http.StatusOK, `{"output": [
		{"market": "crypto", "code": "BTC"},
		{"code": "NOMARKET"},
		{"market": "domestic", "code": "A"}
	]}`, nil)
	client := NewRankingClient(Config{BaseURL: server.URL}, server.Client(), nil, nil)

	quotes, err := client.FetchSnapshot(context.Background(), entity.FilterAll, entity.SortVolume)
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, "A", quotes[0].Code)
}

func TestRankingClient_FetchSnapshot_Limit(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, http.StatusOK, `{"output": [
		{"market": "domestic", "code": "A"},
		{"market": "domestic", "code": "B"},
		{"market": "domestic", "code": "C"}
	]}`, nil)
	client := NewRankingClient(Config{BaseURL: server.URL, Limit: 2}, server.Client(), nil, nil)

	quotes, err := client.FetchSnapshot(context.Background(), entity.FilterAll, entity.SortVolume)
	require.NoError(t, err)
	assert.Len(t, quotes, 2)
}

func TestRankingClient_FetchSnapshot_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"bad request", http.StatusBadRequest, `{}`},
		{"unauthorized", http.StatusUnauthorized, `{}`},
		{"internal server error", http.StatusInternalServerError, `{"output": []}`},
		{"service unavailable", http.StatusServiceUnavailable, ``},
		{"invalid json", http.StatusOK, `{"output": [`},
		{"missing output", http.StatusOK, `{"result": []}`},
		{"output is not a list", http.StatusOK, `{"output": "oops"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := newTestServer(t, tt.status, tt.body, nil)
			client := NewRankingClient(Config{BaseURL: server.URL}, server.Client(), nil, nil)

			quotes, err := client.FetchSnapshot(context.Background(), entity.FilterAll, entity.SortVolume)
			assert.Error(t, err)
			assert.Nil(t, quotes)
		})
	}
}

func TestRankingClient_FetchSnapshot_MissingOutputSentinel(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, http.StatusOK, `{}`, nil)
	client := NewRankingClient(Config{BaseURL: server.URL}, server.Client(), nil, nil)

	_, err := client.FetchSnapshot(context.Background(), entity.FilterAll, entity.SortVolume)
	assert.ErrorIs(t, err, ErrMissingOutput)
}

func TestRankingClient_FetchSnapshot_InvalidSelection(t *testing.T) {
	t.Parallel()

	client := NewRankingClient(Config{BaseURL: "http://127.0.0.1:0"}, http.DefaultClient, nil, nil)

	_, err := client.FetchSnapshot(context.Background(), entity.FilterAll, entity.SortMode("hot"))
	assert.Error(t, err)
	_, err = client.FetchSnapshot(context.Background(), entity.MarketFilter("x"), entity.SortVolume)
	assert.Error(t, err)
}

func TestRankingClient_FetchSnapshot_ContextTimeout(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := NewRankingClient(Config{BaseURL: server.URL}, server.Client(), nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.FetchSnapshot(ctx, entity.FilterAll, entity.SortVolume)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRankingClient_FetchSnapshot_RateLimited(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := newTestServer(t, http.StatusOK, `{"output": []}`, func(r *http.Request) { calls.Add(1) })
	limiter := ratelimiter.NewRateLimiter(1, time.Hour, nil)
	client := NewRankingClient(Config{BaseURL: server.URL}, server.Client(), limiter, nil)

	_, err := client.FetchSnapshot(context.Background(), entity.FilterAll, entity.SortVolume)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = client.FetchSnapshot(ctx, entity.FilterAll, entity.SortVolume)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.EqualValues(t, 1, calls.Load())
}
