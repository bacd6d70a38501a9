package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"stock_board/internal/feature/ranking/domain/entity"
	"stock_board/internal/feature/ranking/usecase"
)

// Config は WebSocket ストリームの設定です。
type Config struct {
	URL              string        // 例: "ws://localhost:8000/stocks/ws/realtime"
	HandshakeTimeout time.Duration // 接続確立のタイムアウト
	PingInterval     time.Duration // クライアントからの ping 間隔
	PongWait         time.Duration // この期間に何も受信しなければ切断とみなす
	WriteTimeout     time.Duration // 制御フレーム書き込みのタイムアウト
}

func (c Config) withDefaults() Config {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 90 * time.Second
	}
	if c.PingInterval <= 0 || c.PingInterval >= c.PongWait {
		c.PingInterval = c.PongWait / 2
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	return c
}

// Stream はクォートサーバーの WebSocket に接続する UpdateStream 実装です。
// Subscribe ごとに1本の接続を張ります。
type Stream struct {
	cfg    Config
	dialer *websocket.Dialer
	logger *zap.Logger
}

var _ usecase.UpdateStream = (*Stream)(nil)

// NewStream はStreamの新しいインスタンスを生成します。
func NewStream(cfg Config, logger *zap.Logger) *Stream {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	return &Stream{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		logger: logger,
	}
}

// Subscribe は接続して購読メッセージを送り、受信ループを開始します。
func (s *Stream) Subscribe(ctx context.Context, keys []entity.SubscriptionKey, handle func(entity.UpdateEvent)) (usecase.Subscription, error) {
	if len(keys) == 0 {
		return nil, errors.New("realtime: no subscription keys")
	}

	conn, res, err := s.dialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		if res != nil {
			return nil, fmt.Errorf("realtime dial %s: http %d: %w", s.cfg.URL, res.StatusCode, err)
		}
		return nil, fmt.Errorf("realtime dial %s: %w", s.cfg.URL, err)
	}

	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if err := conn.WriteJSON(NewSubscribeMessage(keys)); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("realtime subscribe: %w", err)
	}
	_ = conn.SetWriteDeadline(time.Time{})

	sub := &subscription{
		conn:    conn,
		cfg:     s.cfg,
		resolve: ResolverFor(keys),
		handle:  handle,
		done:    make(chan struct{}),
		readEnd: make(chan struct{}),
		logger:  s.logger.With(zap.Int("keys", len(keys))),
	}
	sub.wg.Add(2)
	go sub.readLoop()
	go sub.pingLoop()

	s.logger.Debug("realtime subscribed", zap.Int("keys", len(keys)))
	return sub, nil
}

type subscription struct {
	conn    *websocket.Conn
	cfg     Config
	resolve MarketResolver
	handle  func(entity.UpdateEvent)
	logger  *zap.Logger

	done      chan struct{}
	readEnd   chan struct{} // 受信ループの終了で閉じる
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Close は購読を終了し、受信ゴルーチンの終了を待ちます。何度呼び出しても安全です。
func (s *subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.cfg.WriteTimeout))
		err = s.conn.Close()
	})
	s.wg.Wait()
	return err
}

func (s *subscription) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *subscription) readLoop() {
	defer s.wg.Done()
	defer close(s.readEnd)

	_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			if !s.closed() {
				s.logger.Warn("realtime stream disconnected", zap.Error(err))
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
		if mt != websocket.TextMessage {
			continue
		}
		if s.closed() {
			return
		}
		s.dispatch(data)
	}
}

// dispatch は1フレームを処理します。不正なフレームは記録して捨てます。
func (s *subscription) dispatch(frame []byte) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		s.logger.Warn("dropping malformed frame", zap.Error(err))
		return
	}

	switch env.Type {
	case KindRealtime:
	case KindClosed:
		s.logger.Info("market closed notice received")
		return
	default:
		s.logger.Debug("ignoring frame", zap.String("type", env.Type))
		return
	}

	tick, err := DecodeTick(env.Data)
	if errors.Is(err, ErrNotTick) {
		return
	}
	if err != nil {
		s.logger.Warn("dropping malformed tick", zap.Error(err))
		return
	}
	ev, err := tick.Event(s.resolve)
	if err != nil {
		s.logger.Warn("dropping malformed tick", zap.Error(err))
		return
	}
	s.handle(ev)
}

func (s *subscription) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-s.readEnd:
			return
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.cfg.WriteTimeout)); err != nil {
				if !s.closed() {
					s.logger.Debug("realtime ping failed", zap.Error(err))
				}
				return
			}
		}
	}
}
