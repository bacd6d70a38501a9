package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"stock_board/internal/feature/ranking/domain/entity"
	"stock_board/internal/feature/ranking/usecase"
	"stock_board/internal/platform/realtime"
)

var _ usecase.UpdatePublisher = (*Publisher)(nil)

// Publisher fans ticks out on the channels Stream subscribes to.
type Publisher struct {
	rdb    *redis.Client
	stream *Stream
}

func NewPublisher(rdb *redis.Client, prefix string) *Publisher {
	return &Publisher{rdb: rdb, stream: NewStream(rdb, prefix, nil)}
}

// Publish encodes ev in the tick wire format and publishes it on the instrument's channel.
func (p *Publisher) Publish(ctx context.Context, ev entity.UpdateEvent) error {
	b, err := json.Marshal(realtime.TickFromEvent(ev))
	if err != nil {
		return err
	}
	if err := p.rdb.Publish(ctx, p.stream.Channel(ev.Key()), b).Err(); err != nil {
		return fmt.Errorf("pubsub publish %s: %w", ev.Key(), err)
	}
	return nil
}
