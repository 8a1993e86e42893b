package classifier

import (
	"math"
	"strings"
)

// Pricing per 1M tokens, USD. The lite/8B tier is cheaper.
const (
	priceInputPerM  = 0.30
	priceOutputPerM = 2.50

	litePriceInputPerM  = 0.10
	litePriceOutputPerM = 0.40
)

// CostCents estimates the cost of a call in cents from its token usage,
// rounded to 4 decimals.
func CostCents(inputTokens, outputTokens int, modelName string) float64 {
	in, out := priceInputPerM, priceOutputPerM
	lower := strings.ToLower(modelName)
	if strings.Contains(lower, "lite") || strings.Contains(lower, "8b") {
		in, out = litePriceInputPerM, litePriceOutputPerM
	}
	usd := float64(inputTokens)/1_000_000*in + float64(outputTokens)/1_000_000*out
	return math.Round(usd*100*10000) / 10000
}
