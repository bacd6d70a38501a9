package dto

import "stock_board/internal/shared/numeric"

// SearchItem is one candidate of the /stocks/search response, which is a bare JSON array.
// Prices arrive formatted for display ("71,000원", "1.23%") or as "-" when unknown.
type SearchItem struct {
	DisplayMarket string        `json:"display_market"`
	DisplayName   string        `json:"display_name"`
	Price         numeric.Value `json:"current_price"`
	Rate          numeric.Value `json:"change_rate"`
	MarketCode    string        `json:"market_code"` // "KOSPI", "KOSDAQ" or an overseas exchange such as "NAS"
	Code          string        `json:"stock_code"`
	Name          string        `json:"stock_name"`
}
