package models

// Ticker is the rolling 24h summary of one instrument
type Ticker struct {
	Symbol         string  `json:"symbol"`
	LastPrice      float64 `json:"last_price"`
	Volume         float64 `json:"volume"`
	QuoteVolume    float64 `json:"quote_volume"`
	PriceChangePct float64 `json:"price_change_pct"`
}

// VolumeUSD values the base volume at the last price and falls back to the
// reported quote volume.
func (t Ticker) VolumeUSD() float64 {
	if t.Volume > 0 && t.LastPrice > 0 {
		return t.Volume * t.LastPrice
	}
	return max(t.QuoteVolume, 0)
}
