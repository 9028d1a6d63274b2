package txbuilder

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	TradingAddress  string `envconfig:"TRADING_CONTRACT" default:"0x44914408af82bC9983bbb330e3578E1105e11d4e"`
	USDCAddress     string `envconfig:"USDC_CONTRACT" default:"0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"`
	ChainID         int64  `envconfig:"CHAIN_ID" default:"8453"`
	ExecutionFeeWei uint64 `envconfig:"EXECUTION_FEE_WEI" default:"1000000000000000"`
	SlippagePct     uint64 `envconfig:"OPEN_SLIPPAGE_PCT" default:"1"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
