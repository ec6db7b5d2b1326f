package market

import "strings"

// RegionalSuffixes are the exchange suffixes recognised as regional listings.
var RegionalSuffixes = []string{".NS", ".BO", ".NSE", ".BSE"}

// DefaultRegionalSuffix is tried first for identifiers without a recognised suffix.
const DefaultRegionalSuffix = ".NS"

// NormalizeSymbol upper-cases an identifier and strips common labels like "TICKER:".
func NormalizeSymbol(input string) string {
	s := strings.ToUpper(strings.TrimSpace(input))
	for _, p := range []string{"STOCK:", "TICKER:", "SYMBOL:"} {
		s = strings.ReplaceAll(s, p, "")
	}
	return strings.TrimSpace(s)
}

// HasRegionalSuffix reports whether symbol already carries a recognised exchange suffix.
func HasRegionalSuffix(symbol string) bool {
	up := strings.ToUpper(symbol)
	for _, suf := range RegionalSuffixes {
		if strings.Contains(up, suf) {
			return true
		}
	}
	return false
}

// IsRegional reports whether the resolved symbol belongs to the regional market.
func IsRegional(symbol string) bool {
	up := strings.ToUpper(symbol)
	return strings.HasSuffix(up, ".NS") || strings.HasSuffix(up, ".NSE") ||
		strings.HasSuffix(up, ".BO") || strings.HasSuffix(up, ".BSE")
}

var currencySymbols = map[string]string{
	"USD": "$",
	"INR": "₹",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
}

// CurrencySymbol returns the display symbol for an ISO code, or "CODE " when unknown.
func CurrencySymbol(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if sym, ok := currencySymbols[code]; ok {
		return sym
	}
	if code == "" {
		return "$"
	}
	return code + " "
}
