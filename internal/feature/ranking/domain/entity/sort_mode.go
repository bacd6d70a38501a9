package entity

import (
	"fmt"

	"stock_board/internal/shared/rankedlist"
)

// SortMode is the active ranking criterion. Exactly one is active per view.
type SortMode string

const (
	SortVolume    SortMode = "volume"
	SortAmount    SortMode = "amount"
	SortMarketCap SortMode = "market-cap"
	SortRising    SortMode = "rising"
	SortFalling   SortMode = "falling"
)

// RankField is the quote field a sort mode ranks by.
type RankField int

const (
	FieldVolume RankField = iota
	FieldAmount
	FieldMarketCap
	FieldChangeRate
)

// Of returns the field's value on q.
func (f RankField) Of(q Quote) float64 {
	switch f {
	case FieldVolume:
		return q.Volume
	case FieldAmount:
		return q.Amount
	case FieldMarketCap:
		return q.MarketCap
	case FieldChangeRate:
		return q.ChangeRate
	}
	return 0
}

// In returns the field's value on e, if the event carries it.
// Update events never carry market capitalization.
func (f RankField) In(e UpdateEvent) (*float64, bool) {
	var p *float64
	switch f {
	case FieldVolume:
		p = e.Volume
	case FieldAmount:
		p = e.Amount
	case FieldChangeRate:
		p = e.ChangeRate
	}
	return p, p != nil
}

// SortSpec is the explicit configuration of a sort mode.
// Direction is configured per mode rather than derived from its name.
type SortSpec struct {
	Mode      SortMode
	Field     RankField
	Direction rankedlist.Direction
}

var sortSpecs = map[SortMode]SortSpec{
	SortVolume:    {Mode: SortVolume, Field: FieldVolume, Direction: rankedlist.Descending},
	SortAmount:    {Mode: SortAmount, Field: FieldAmount, Direction: rankedlist.Descending},
	SortMarketCap: {Mode: SortMarketCap, Field: FieldMarketCap, Direction: rankedlist.Descending},
	SortRising:    {Mode: SortRising, Field: FieldChangeRate, Direction: rankedlist.Descending},
	SortFalling:   {Mode: SortFalling, Field: FieldChangeRate, Direction: rankedlist.Ascending},
}

// Spec returns the configuration of m.
func (m SortMode) Spec() (SortSpec, bool) {
	s, ok := sortSpecs[m]
	return s, ok
}

// Valid reports whether m is a known sort mode.
func (m SortMode) Valid() bool {
	_, ok := sortSpecs[m]
	return ok
}

// ParseSortMode converts a raw string into a SortMode.
func ParseSortMode(s string) (SortMode, error) {
	m := SortMode(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown sort mode %q", s)
	}
	return m, nil
}

// MarketFilter selects which markets a snapshot covers.
type MarketFilter string

const (
	FilterAll      MarketFilter = "all"
	FilterDomestic MarketFilter = "domestic"
	FilterOverseas MarketFilter = "overseas"
)

// Valid reports whether f is a known filter.
func (f MarketFilter) Valid() bool {
	return f == FilterAll || f == FilterDomestic || f == FilterOverseas
}

// Includes reports whether quotes of market m pass the filter.
func (f MarketFilter) Includes(m Market) bool {
	switch f {
	case FilterAll:
		return m.Valid()
	case FilterDomestic:
		return m == MarketDomestic
	case FilterOverseas:
		return m == MarketOverseas
	}
	return false
}

// ParseMarketFilter converts a raw string into a MarketFilter. Empty means all.
func ParseMarketFilter(s string) (MarketFilter, error) {
	if s == "" {
		return FilterAll, nil
	}
	f := MarketFilter(s)
	if !f.Valid() {
		return "", fmt.Errorf("unknown market filter %q", s)
	}
	return f, nil
}

// Selection is the filter and sort mode a view was loaded with.
type Selection struct {
	Filter MarketFilter
	Mode   SortMode
}
