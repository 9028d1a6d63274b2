package monitor

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Account    string  `envconfig:"MONITOR_ACCOUNT" required:"true"`
	Pair       string  `envconfig:"MONITOR_PAIR" default:"BTC/USD"`
	TradeIndex uint    `envconfig:"MONITOR_TRADE_INDEX" default:"0"`
	Leverage   int     `envconfig:"MONITOR_LEVERAGE" default:"75"`
	Collateral float64 `envconfig:"MONITOR_COLLATERAL" default:"10"`
	IsLong     bool    `envconfig:"MONITOR_IS_LONG" default:"true"`
	OpenPrice  float64 `envconfig:"MONITOR_OPEN_PRICE" required:"true"`

	// Warn when the perp feed and the spot reference disagree by more
	// than this many percent.
	ReferenceDivergencePct float64 `envconfig:"MONITOR_REF_DIVERGENCE_PCT" default:"1"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
