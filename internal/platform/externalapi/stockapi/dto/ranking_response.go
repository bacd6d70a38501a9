// Package dto defines data transfer objects for the ranking API responses.
package dto

import "stock_board/internal/shared/numeric"

// RankingResponse represents the JSON response of the /stocks/ranking endpoints.
// Output is nil when the field was missing from the body.
type RankingResponse struct {
	Output *[]RankingItem `json:"output"`
}

// RankingItem is one ranked entry. Numbers arrive either as JSON numbers or
// as strings with thousands separators.
type RankingItem struct {
	Market    string        `json:"market"`
	Code      string        `json:"code"`
	Symbol    string        `json:"symb"`
	Name      string        `json:"name"`
	Exchange  string        `json:"excd"`
	Price     numeric.Value `json:"price"`
	Diff      numeric.Value `json:"diff"`
	Rate      numeric.Value `json:"rate"`
	Volume    numeric.Value `json:"volume"`
	Amount    numeric.Value `json:"amount"`
	MarketCap numeric.Value `json:"market_cap"`
	Value     numeric.Value `json:"value"` // sort criterion chosen by the server
}
