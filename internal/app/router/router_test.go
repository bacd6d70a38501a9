package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	favoritesentity "stock_board/internal/feature/favorites/domain/entity"
	favoriteshandler "stock_board/internal/feature/favorites/transport/handler"
	favoritesusecase "stock_board/internal/feature/favorites/usecase"
	rankingentity "stock_board/internal/feature/ranking/domain/entity"
	rankinghandler "stock_board/internal/feature/ranking/transport/handler"
	rankingusecase "stock_board/internal/feature/ranking/usecase"
	searchhandler "stock_board/internal/feature/search/transport/handler"
	searchusecase "stock_board/internal/feature/search/usecase"
	"stock_board/internal/platform/http/handler"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

const secret = "router-test-secret"

type staticSource struct{}

func (staticSource) FetchSnapshot(ctx context.Context, filter rankingentity.MarketFilter, mode rankingentity.SortMode) ([]rankingentity.Quote, error) {
	return []rankingentity.Quote{
		{Market: rankingentity.MarketDomestic, Code: "005930", Volume: 10},
		{Market: rankingentity.MarketDomestic, Code: "000660", Volume: 20},
	}, nil
}

// emptyRepository はグループを持たないユーザーだけを扱います。
type emptyRepository struct{ favoritesusecase.FavoriteRepository }

func (emptyRepository) ListGroups(ctx context.Context, userID uint) ([]favoritesentity.Group, error) {
	return nil, nil
}

func (emptyRepository) CreateGroup(ctx context.Context, g *favoritesentity.Group) error {
	g.ID = 1
	return nil
}

type staticSearcher struct{}

func (staticSearcher) Search(ctx context.Context, keyword string) ([]rankingentity.Quote, error) {
	return []rankingentity.Quote{{Market: rankingentity.MarketDomestic, Code: "005930", Name: "삼성전자"}}, nil
}

func newTestRouter(t *testing.T, logger *zap.Logger) *gin.Engine {
	t.Helper()

	view := rankingusecase.NewLiveView(staticSource{}, nil, nil)
	board := rankingusecase.NewBoard(view, rankingentity.Selection{Filter: rankingentity.FilterAll, Mode: rankingentity.SortVolume}, nil)
	require.NoError(t, board.Start(context.Background()))

	fav := favoritesusecase.NewFavoritesUsecase(emptyRepository{}, nil, "NAS", nil)

	return NewRouter(Handlers{
		Ranking:   rankinghandler.NewRankingHandler(board),
		Favorites: favoriteshandler.NewFavoritesHandler(fav),
		Search:    searchhandler.NewSearchHandler(searchusecase.NewSearchUsecase(staticSearcher{}, nil, nil)),
		Readiness: map[string]handler.Check{"redis": func(context.Context) error { return nil }},
	}, secret, logger)
}

func token(t *testing.T, sub uint) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": float64(sub),
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestRouter_PublicRoutes(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, zap.NewNop())

	for _, path := range []string{"/healthz", "/readyz"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/rankings", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"000660"`)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/rankings/selection", strings.NewReader(`{"market":"domestic","sort":"falling"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sort":"falling"`)
}

func TestRouter_FavoritesRequireAuth(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, zap.NewNop())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/favorites/groups", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/favorites/groups", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, 5))
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), favoritesentity.DefaultGroupName)
}

func TestRouter_Search(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, zap.NewNop())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/search?keyword=sam", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	bearer := "Bearer " + token(t, 5)
	for _, tc := range []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/search?keyword=sam", http.StatusOK},
		{http.MethodGet, "/search/current", http.StatusOK},
		{http.MethodDelete, "/search", http.StatusNoContent},
		{http.MethodGet, "/search/current", http.StatusNotFound},
	} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(tc.method, tc.path, nil)
		req.Header.Set("Authorization", bearer)
		r.ServeHTTP(w, req)
		assert.Equal(t, tc.want, w.Code, tc.method+" "+tc.path)
	}
}

func TestRouter_RequestLogger(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	r := newTestRouter(t, zap.New(core))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/favorites/groups", nil))

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, "/healthz", entries[0].ContextMap()["path"])
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	assert.EqualValues(t, http.StatusUnauthorized, entries[1].ContextMap()["status"])
}
