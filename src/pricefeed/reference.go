package pricefeed

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/nntaoli-project/goex"
	"github.com/nntaoli-project/goex/binance"
)

// ReferenceSource reads a spot reference price from a centralized
// exchange. The monitor uses it to flag divergence between the perp
// feed and spot, not for any trading decision.
type ReferenceSource struct {
	exchange goex.API
}

func NewReferenceSource() *ReferenceSource {
	apiConfig := &goex.APIConfig{
		HttpClient: http.DefaultClient,
		Endpoint:   binance.GLOBAL_API_BASE_URL,
	}
	return &ReferenceSource{exchange: binance.NewWithConfig(apiConfig)}
}

// Price returns the spot last price for a perp pair like "BTC/USD".
// USD pairs are referenced against USDT spot markets.
func (r *ReferenceSource) Price(pair string) (float64, error) {
	parts := strings.SplitN(pair, "/", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("malformed pair: %s", pair)
	}
	base := parts[0]
	quote := parts[1]
	if quote == "USD" {
		quote = "USDT"
	}

	target := goex.NewCurrencyPair(goex.Currency{Symbol: base}, goex.Currency{Symbol: quote})
	ticker, err := r.exchange.GetTicker(target)
	if err != nil {
		return 0, fmt.Errorf("reference ticker for %s: %w", pair, err)
	}
	return ticker.Last, nil
}
