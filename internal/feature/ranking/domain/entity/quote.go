// Package entity defines the domain models for the ranking feature.
package entity

import "fmt"

// Market identifies the market a quote trades on.
type Market string

const (
	MarketDomestic Market = "domestic"
	MarketOverseas Market = "overseas"
)

// Valid reports whether m is a known market.
func (m Market) Valid() bool {
	return m == MarketDomestic || m == MarketOverseas
}

// ParseMarket converts a raw string into a Market.
func ParseMarket(s string) (Market, error) {
	m := Market(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown market %q", s)
	}
	return m, nil
}

// Key is the identity of a Quote. It never changes after creation.
type Key struct {
	Market Market
	Code   string
}

// String returns "market:code".
func (k Key) String() string {
	return string(k.Market) + ":" + k.Code
}

// Quote is the display record for one tradable instrument.
type Quote struct {
	Market   Market // domestic or overseas
	Code     string // exchange ticker or symbol (e.g. "005930", "DNASAAPL")
	Exchange string // routing hint for overseas quotes (e.g. "NAS")
	Symbol   string // display symbol (e.g. "AAPL")
	Name     string

	Price      float64 // last price
	Change     float64 // change amount from previous close
	ChangeRate float64 // signed percentage
	Volume     float64 // cumulative volume
	Amount     float64 // cumulative turnover amount
	MarketCap  float64

	// RankValue is the field selected by the active sort mode.
	RankValue float64
}

// Key returns the identity of q.
func (q Quote) Key() Key {
	return Key{Market: q.Market, Code: q.Code}
}

// SubscriptionKey returns the routing information needed to watch q.
func (q Quote) SubscriptionKey() SubscriptionKey {
	return SubscriptionKey{Market: q.Market, Code: q.Code, Exchange: q.Exchange}
}

// SubscriptionKey is one entry of a subscription-description message.
type SubscriptionKey struct {
	Market   Market
	Code     string
	Exchange string
}

// Key returns the identity the subscription key refers to.
func (s SubscriptionKey) Key() Key {
	return Key{Market: s.Market, Code: s.Code}
}

// UpdateEvent is a partial, identity-keyed patch to a Quote.
// A nil field was absent from the message and must leave the Quote untouched.
type UpdateEvent struct {
	Market Market
	Code   string

	Price      *float64
	Change     *float64
	ChangeRate *float64
	Volume     *float64
	Amount     *float64
}

// Key returns the identity the event refers to.
func (e UpdateEvent) Key() Key {
	return Key{Market: e.Market, Code: e.Code}
}
