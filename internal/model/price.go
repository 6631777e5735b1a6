package model

type PriceBar struct {
	Symbol string  `json:"symbol"`
	Day    string  `json:"day"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

type Fundamentals struct {
	Symbol           string  `json:"symbol"`
	EarningsPerShare float64 `json:"earnings_per_share"`
	DividendPerShare float64 `json:"dividend_per_share"`
	BookValue        float64 `json:"book_value"`
	Mtime            int64   `json:"mtime"`
}
