package usecase

import (
	"context"

	"stock_board/internal/feature/favorites/domain/entity"
	rankingentity "stock_board/internal/feature/ranking/domain/entity"
	rankingusecase "stock_board/internal/feature/ranking/usecase"
)

// groupSource はグループの登録銘柄をそのままスナップショットとして返す SnapshotSource です。
// 価格はすべて0で始まり、並び順は登録順です。
type groupSource struct {
	stocks []entity.Stock
}

var _ rankingusecase.SnapshotSource = groupSource{}

func (s groupSource) FetchSnapshot(ctx context.Context, filter rankingentity.MarketFilter, _ rankingentity.SortMode) ([]rankingentity.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]rankingentity.Quote, 0, len(s.stocks))
	for _, st := range s.stocks {
		if !filter.Includes(st.Market) {
			continue
		}
		out = append(out, st.Quote())
	}
	return out, nil
}
