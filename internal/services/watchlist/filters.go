package watchlist

import "strings"

var stablecoins = set("USDT", "USDC", "BUSD", "DAI", "TUSD", "USDP", "USDD", "FDUSD", "PYUSD",
	"EUR", "GBP", "JPY", "AUD", "CAD", "CHF", "CNY", "NZD")

var preciousMetals = set("XAU", "PAXG", "XAG", "XAUT", "GOLD", "SILVER", "XPD", "XPT", "XDR")

// tokenized equities and ETFs listed as perpetuals
var stockTickers = set(
	"TSLA", "AAPL", "MSFT", "GOOGL", "GOOG", "AMZN", "META", "NVDA", "NFLX", "DIS",
	"V", "JPM", "JNJ", "WMT", "PG", "MA", "UNH", "HD", "PYPL", "BAC", "XOM", "CVX",
	"ABBV", "PFE", "KO", "AVGO", "COST", "PEP", "TMO", "ABT", "MRK", "CSCO", "ACN",
	"ADBE", "NKE", "TXN", "CMCSA", "DHR", "VZ", "LIN", "PM", "NEE", "RTX", "HON",
	"UPS", "QCOM", "AMGN", "T", "LOW", "INTU", "SPGI", "AMAT", "DE", "BKNG", "C",
	"SBUX", "AXP", "ADI", "ISRG", "GILD", "ADP", "SYK", "CL", "MDT", "TJX", "ZTS",
	"GE", "MMC", "CI", "APH", "MO", "SHW", "ITW", "WM", "ETN", "ICE", "KLAC", "CDNS",
	"SNPS", "FTNT", "MCHP", "NXPI", "CTAS", "FAST", "IDXX", "PAYX", "ODFL", "CTSH",
	"AON", "ANSS", "KEYS", "WDAY", "ON", "CDW", "EXPD", "FDS", "BR", "NDAQ", "POOL",
	"CPRT", "MCO", "TTD", "ZM", "DOCN", "DOCU", "ROKU", "PTON", "SPOT", "SNAP", "TWTR",
	"SQ", "SHOP", "CRWD", "OKTA", "NET", "DDOG", "ZS", "MDB", "ESTC", "NOW", "TEAM",
	"PLTR", "SNOW", "RBLX", "HOOD", "COIN", "LCID", "RIVN", "F", "GM", "FORD",
	"AMD", "INTC", "MU", "LRCX", "SMCI", "SOFI", "UPST", "IWM", "QQQ", "SPY", "DIA",
)

// crypto assets that collide with a stock ticker
var cryptoNames = set("FIL", "LINK", "ONE", "F", "C", "MON")

// substrings that mark a symbol as crypto even when the base is a stock ticker
var cryptoMarkers = []string{"COIN", "TOKEN", "CRYPTO", "DEFI", "NFT"}

func set(items ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(items))
	for _, it := range items {
		m[it] = struct{}{}
	}
	return m
}

func has(m map[string]struct{}, key string) bool {
	_, ok := m[key]
	return ok
}

// SplitSymbol cuts the quote suffix off a symbol. ok is false when the
// symbol does not trade against quote or is a dated delivery contract.
func SplitSymbol(symbol, quote string) (base string, ok bool) {
	symbol = strings.ToUpper(symbol)
	if strings.Contains(symbol, "_") || !strings.HasSuffix(symbol, quote) {
		return "", false
	}
	base = strings.TrimSuffix(symbol, quote)
	return base, base != ""
}

// IsStablecoinPair reports a pair of two fiat-pegged assets
func IsStablecoinPair(base, quote string) bool {
	return has(stablecoins, base) && has(stablecoins, quote)
}

func IsPreciousMetal(base string) bool {
	return has(preciousMetals, base)
}

// IsStockTicker reports a tokenized equity. Crypto markers and known
// crypto names win over a stock ticker match.
func IsStockTicker(symbol, base string) bool {
	symbol = strings.ToUpper(symbol)
	if strings.Contains(symbol, "STOCK") {
		return true
	}
	if !has(stockTickers, base) {
		return false
	}
	for _, marker := range cryptoMarkers {
		if strings.Contains(symbol, marker) {
			return false
		}
	}
	return !has(cryptoNames, base)
}
