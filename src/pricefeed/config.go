package pricefeed

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	BaseURL      string        `envconfig:"PRICE_FEED_URL" default:"https://feed.perpexecutor.io"`
	WSURL        string        `envconfig:"PRICE_FEED_WS_URL"`
	FetchTimeout time.Duration `envconfig:"PRICE_FETCH_TIMEOUT" default:"5s"`
	CacheTTL     time.Duration `envconfig:"PRICE_CACHE_TTL" default:"5s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
