package relay

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	GelatoAPIKey    string `envconfig:"GELATO_API_KEY"`
	GelatoBaseURL   string `envconfig:"GELATO_BASE_URL" default:"https://api.gelato.digital"`
	BiconomyAPIKey  string `envconfig:"BICONOMY_API_KEY"`
	BiconomyBaseURL string `envconfig:"BICONOMY_BASE_URL" default:"https://api.biconomy.io"`
	RPCURL          string `envconfig:"RELAY_RPC_URL"`
	RPCFromAddress  string `envconfig:"RELAY_RPC_FROM"`

	ChainID        int64         `envconfig:"CHAIN_ID" default:"8453"`
	ActiveProvider string        `envconfig:"RELAY_ACTIVE_PROVIDER" default:"gelato"`
	SubmitTimeout  time.Duration `envconfig:"RELAY_SUBMIT_TIMEOUT" default:"10s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
