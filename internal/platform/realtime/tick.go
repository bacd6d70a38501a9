// Package realtime implements the push-based quote update stream over WebSocket.
package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"stock_board/internal/feature/ranking/domain/entity"
	"stock_board/internal/feature/ranking/usecase"
	"stock_board/internal/shared/numeric"
)

// Message kinds sent by the quote server.
const (
	KindRealtime = "realtime"
	KindClosed   = "closed"

	DataTick = "tick"
	DataAsk  = "ask"
)

// ErrNotTick is returned by DecodeTick for payloads other than quote ticks.
var ErrNotTick = errors.New("realtime: not a tick")

// Envelope is the outer frame pushed by the quote server.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Tick is the "data" of a realtime frame whose type is "tick".
// Unparsable numbers are kept as invalid values and treated as absent.
type Tick struct {
	Type   string        `json:"type"`
	Market string        `json:"market"`
	Code   string        `json:"code"`
	Price  numeric.Value `json:"price"`
	Diff   numeric.Value `json:"diff"`
	Rate   numeric.Value `json:"rate"`
	Volume numeric.Value `json:"volume"`
	Amount numeric.Value `json:"amount"`
}

// SubscribeItem is one entry of the subscription-description message.
type SubscribeItem struct {
	Code     string `json:"code"`
	Market   string `json:"market"`
	Exchange string `json:"excd,omitempty"`
	Type     string `json:"type"`
}

// SubscribeMessage is sent once right after connecting.
type SubscribeMessage struct {
	Items []SubscribeItem `json:"items"`
}

// NewSubscribeMessage builds the subscription message for keys.
func NewSubscribeMessage(keys []entity.SubscriptionKey) SubscribeMessage {
	items := make([]SubscribeItem, 0, len(keys))
	for _, k := range keys {
		items = append(items, SubscribeItem{
			Code:     k.Code,
			Market:   string(k.Market),
			Exchange: k.Exchange,
			Type:     DataTick,
		})
	}
	return SubscribeMessage{Items: items}
}

// DecodeTick decodes the data of a realtime frame. It returns ErrNotTick for
// order-book and other kinds so that callers can ignore them.
func DecodeTick(data []byte) (Tick, error) {
	var t Tick
	if err := json.Unmarshal(data, &t); err != nil {
		return Tick{}, fmt.Errorf("decode tick: %w", err)
	}
	if t.Type != DataTick {
		return Tick{}, ErrNotTick
	}
	return t, nil
}

// MarketResolver maps a code to its market when the tick omits it.
type MarketResolver func(code string) (entity.Market, bool)

// Event converts the tick into an UpdateEvent. Fields that were absent or
// unparsable stay nil. A missing code or an unresolvable market is reported
// as usecase.ErrMalformedUpdate.
func (t Tick) Event(resolve MarketResolver) (entity.UpdateEvent, error) {
	code := strings.TrimSpace(t.Code)
	if code == "" {
		return entity.UpdateEvent{}, fmt.Errorf("%w: tick without code", usecase.ErrMalformedUpdate)
	}
	market := entity.Market(t.Market)
	if t.Market == "" && resolve != nil {
		if m, ok := resolve(code); ok {
			market = m
		}
	}
	if !market.Valid() {
		return entity.UpdateEvent{}, fmt.Errorf("%w: tick %s has unknown market %q", usecase.ErrMalformedUpdate, code, t.Market)
	}
	return entity.UpdateEvent{
		Market:     market,
		Code:       code,
		Price:      t.Price.Ptr(),
		Change:     t.Diff.Ptr(),
		ChangeRate: t.Rate.Ptr(),
		Volume:     t.Volume.Ptr(),
		Amount:     t.Amount.Ptr(),
	}, nil
}

// ResolverFor returns a resolver over the subscribed keys. Codes present in
// more than one market are ambiguous and do not resolve.
func ResolverFor(keys []entity.SubscriptionKey) MarketResolver {
	byCode := make(map[string]entity.Market, len(keys))
	ambiguous := make(map[string]struct{})
	for _, k := range keys {
		if m, ok := byCode[k.Code]; ok && m != k.Market {
			ambiguous[k.Code] = struct{}{}
			continue
		}
		byCode[k.Code] = k.Market
	}
	return func(code string) (entity.Market, bool) {
		if _, ok := ambiguous[code]; ok {
			return "", false
		}
		m, ok := byCode[code]
		return m, ok
	}
}

// TickFromEvent is the inverse of Tick.Event. Absent fields are encoded as null.
func TickFromEvent(ev entity.UpdateEvent) Tick {
	return Tick{
		Type:   DataTick,
		Market: string(ev.Market),
		Code:   ev.Code,
		Price:  numeric.FromPtr(ev.Price),
		Diff:   numeric.FromPtr(ev.Change),
		Rate:   numeric.FromPtr(ev.ChangeRate),
		Volume: numeric.FromPtr(ev.Volume),
		Amount: numeric.FromPtr(ev.Amount),
	}
}
