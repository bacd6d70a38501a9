// Package pubsub implements the quote update stream over Redis pub/sub.
// Ticks are fanned out on one channel per instrument: "<prefix>.<market>.<code>".
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"stock_board/internal/feature/ranking/domain/entity"
	"stock_board/internal/feature/ranking/usecase"
	"stock_board/internal/platform/realtime"
)

// DefaultPrefix is the channel prefix used when none is configured.
const DefaultPrefix = "ticks"

// Compile-time check to ensure Stream implements UpdateStream
var _ usecase.UpdateStream = (*Stream)(nil)

// Stream subscribes to per-instrument tick channels.
type Stream struct {
	rdb    *redis.Client
	prefix string
	logger *zap.Logger
}

func NewStream(rdb *redis.Client, prefix string, logger *zap.Logger) *Stream {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stream{rdb: rdb, prefix: prefix, logger: logger}
}

// Channel returns the channel name ticks for key are published on.
func (s *Stream) Channel(key entity.Key) string {
	return s.prefix + "." + string(key.Market) + "." + key.Code
}

// Subscribe waits for Redis to confirm the subscription before returning.
func (s *Stream) Subscribe(ctx context.Context, keys []entity.SubscriptionKey, handle func(entity.UpdateEvent)) (usecase.Subscription, error) {
	if len(keys) == 0 {
		return nil, errors.New("pubsub: no subscription keys")
	}

	channels := make([]string, 0, len(keys))
	for _, k := range keys {
		channels = append(channels, s.Channel(k.Key()))
	}

	ps := s.rdb.Subscribe(ctx, channels...)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("pubsub subscribe: %w", err)
	}

	sub := &subscription{ps: ps, stream: s, handle: handle}
	sub.wg.Add(1)
	go sub.run()
	return sub, nil
}

// parseChannel extracts the identity encoded in a channel name.
func (s *Stream) parseChannel(channel string) (entity.Key, bool) {
	rest, ok := strings.CutPrefix(channel, s.prefix+".")
	if !ok {
		return entity.Key{}, false
	}
	market, code, ok := strings.Cut(rest, ".")
	if !ok || code == "" {
		return entity.Key{}, false
	}
	return entity.Key{Market: entity.Market(market), Code: code}, true
}

type subscription struct {
	ps     *redis.PubSub
	stream *Stream
	handle func(entity.UpdateEvent)

	once sync.Once
	wg   sync.WaitGroup
}

func (s *subscription) run() {
	defer s.wg.Done()

	for msg := range s.ps.Channel() {
		ev, err := s.stream.decode(msg.Channel, msg.Payload)
		if err != nil {
			if !errors.Is(err, realtime.ErrNotTick) {
				s.stream.logger.Warn("dropping malformed tick", zap.String("channel", msg.Channel), zap.Error(err))
			}
			continue
		}
		s.handle(ev)
	}
}

// decode converts a payload into an UpdateEvent. Identity missing from the
// payload is taken from the channel name.
func (s *Stream) decode(channel, payload string) (entity.UpdateEvent, error) {
	tick, err := realtime.DecodeTick([]byte(payload))
	if err != nil {
		return entity.UpdateEvent{}, err
	}
	key, ok := s.parseChannel(channel)
	if !ok {
		return entity.UpdateEvent{}, fmt.Errorf("%w: unexpected channel %q", usecase.ErrMalformedUpdate, channel)
	}
	if tick.Code == "" {
		tick.Code = key.Code
	}
	if tick.Market == "" {
		tick.Market = string(key.Market)
	}
	return tick.Event(nil)
}

// Close unsubscribes and waits for the delivery goroutine. Safe to call more than once.
func (s *subscription) Close() error {
	var err error
	s.once.Do(func() {
		err = s.ps.Close()
	})
	s.wg.Wait()
	return err
}
