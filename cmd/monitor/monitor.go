package monitor

import (
	"context"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	logger "github.com/sirupsen/logrus"

	"perpexecutor/src/model"
	"perpexecutor/src/pnl"
	"perpexecutor/src/pricefeed"
	"perpexecutor/src/trade"
	"perpexecutor/src/txbuilder"
)

// How often the spot reference is compared against the perp feed.
const referenceEvery = 30 * time.Second

// Run polls live PnL for the configured open position until SIGINT or
// SIGTERM, logging snapshots, proximity signals, and feed divergence
// against a spot reference.
func Run() error {
	config := GetConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := trade.NewStore()
	position := model.Trade{
		Account:    config.Account,
		Pair:       config.Pair,
		PairIndex:  model.PairIndexFor(config.Pair),
		TradeIndex: config.TradeIndex,
		Leverage:   config.Leverage,
		Collateral: config.Collateral,
		IsLong:     config.IsLong,
		OpenPrice:  config.OpenPrice,
		TP:         txbuilder.TakeProfit(config.OpenPrice, config.IsLong, config.Leverage),
		OpenedAt:   time.Now().UTC(),
	}
	if err := store.SetOpen(position); err != nil {
		return err
	}

	feedCfg := pricefeed.GetConfig()
	prices := pricefeed.NewClient(feedCfg)
	if feedCfg.WSURL != "" {
		stream := pricefeed.NewStream(feedCfg.WSURL, prices)
		go stream.Run(ctx, []string{config.Pair})
	}

	reference := pricefeed.NewReferenceSource()
	lastReferenceCheck := time.Time{}

	engine := pnl.NewEngine(pnl.GetConfig(), prices, store)
	engine.SetOnTick(func(t model.Trade, p model.PnLData, s pnl.Signals) {
		logger.WithFields(map[string]interface{}{
			"pair":    t.Pair,
			"price":   p.CurrentPrice,
			"pnl":     p.PnL,
			"pnl_pct": p.PnLPercentage,
		}).Info("tick")

		if time.Since(lastReferenceCheck) < referenceEvery {
			return
		}
		lastReferenceCheck = time.Now()

		spot, err := reference.Price(t.Pair)
		if err != nil {
			logger.WithError(err).Debug("Reference price unavailable")
			return
		}
		divergence := math.Abs(p.CurrentPrice-spot) / spot * 100
		if divergence > config.ReferenceDivergencePct {
			logger.WithFields(map[string]interface{}{
				"feed":           p.CurrentPrice,
				"spot":           spot,
				"divergence_pct": divergence,
			}).Warn("Perp feed diverges from spot reference")
		}
	})

	if err := engine.Start(ctx); err != nil {
		return err
	}
	defer engine.Stop()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("monitor stopped")
	return nil
}
