package pnl

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	PollInterval time.Duration `envconfig:"PNL_POLL_INTERVAL" default:"1s"`
	FetchTimeout time.Duration `envconfig:"PNL_FETCH_TIMEOUT" default:"3s"`

	// Percentage-of-collateral thresholds for the proximity signals.
	NearTakeProfitPct  float64 `envconfig:"NEAR_TP_PCT" default:"80"`
	NearLiquidationPct float64 `envconfig:"NEAR_LIQ_PCT" default:"-80"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
