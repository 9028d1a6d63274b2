package controller

import (
	"context"
	"time"

	logger "github.com/sirupsen/logrus"

	"perpexecutor/src/delegate"
	"perpexecutor/src/ledger"
	"perpexecutor/src/model"
	"perpexecutor/src/pnl"
	"perpexecutor/src/relay"
	"perpexecutor/src/trade"
	"perpexecutor/src/txbuilder"
	"perpexecutor/src/txcache"
)

// Stopper cancels the PnL poll loop. Cancellation happens inside the
// close/flip transition so no stale snapshot lands after the trade is
// gone.
type Stopper interface {
	Stop()
}

type noopStopper struct{}

func (noopStopper) Stop() {}

// TradeController drives the two latency-sensitive user actions. Cached
// payloads short-circuit straight to submission; a miss falls back to
// an on-demand build. The relay service surfaces typed failures and the
// store transition rolls back on any of them.
type TradeController struct {
	store     *trade.Store
	cache     *txcache.Cache
	relays    *relay.Service
	builder   *txbuilder.Builder
	history   *ledger.Ledger
	delegates *delegate.Manager
	prices    pnl.PriceSource
	monitor   Stopper
	log       *logger.Entry
}

func NewTradeController(
	store *trade.Store,
	cache *txcache.Cache,
	relays *relay.Service,
	builder *txbuilder.Builder,
	history *ledger.Ledger,
	delegates *delegate.Manager,
	prices pnl.PriceSource,
	monitor Stopper,
) *TradeController {
	if monitor == nil {
		monitor = noopStopper{}
	}
	return &TradeController{
		store:     store,
		cache:     cache,
		relays:    relays,
		builder:   builder,
		history:   history,
		delegates: delegates,
		prices:    prices,
		monitor:   monitor,
		log:       logger.WithField("component", "trade-controller"),
	}
}

// PrimeCache speculatively builds close and flip payloads for the open
// trade while the user is merely looking at the position.
func (c *TradeController) PrimeCache(ctx context.Context) {
	t, ok := c.store.Current()
	if !ok {
		return
	}
	key := t.Key()

	go c.cache.Prime(ctx, key, txcache.KindClose, func(ctx context.Context) (model.UnsignedTx, error) {
		return c.builder.BuildCloseTx(t)
	})
	go c.cache.Prime(ctx, key, txcache.KindFlip, func(ctx context.Context) (model.UnsignedTx, error) {
		price, err := c.currentPrice(ctx, t)
		if err != nil {
			return model.UnsignedTx{}, err
		}
		return c.builder.BuildFlipTx(t, price)
	})
}

// Close closes the open position through the active relay provider.
func (c *TradeController) Close(ctx context.Context) (model.TxResult, error) {
	t, err := c.store.BeginClose()
	if err != nil {
		return model.TxResult{}, err
	}
	key := t.Key()

	if st := c.delegates.Status(ctx, t.Account); !st.IsSetup {
		c.store.FailClose(key)
		return model.TxResult{}, &relay.ConfigurationError{
			Provider: c.relays.Registry().ActiveType(),
			Reason:   "delegation not set up for account",
		}
	}

	tx, cached := c.cache.Get(key, txcache.KindClose)
	if !cached {
		tx, err = c.builder.BuildCloseTx(t)
		if err != nil {
			c.store.FailClose(key)
			return model.TxResult{}, err
		}
	}

	result, err := c.relays.Submit(ctx, tx)
	if err != nil {
		c.store.FailClose(key)
		return model.TxResult{}, err
	}

	// Final snapshot for the ledger: latest applied PnL, refreshed with
	// a best-effort price read when none is available.
	snapshot, ok := c.store.LatestPnL()
	if !ok {
		if price, perr := c.currentPrice(ctx, t); perr == nil {
			snapshot = pnl.Compute(t, price)
		} else {
			snapshot = pnl.Compute(t, t.OpenPrice)
		}
	}

	c.monitor.Stop()
	if err := c.store.CompleteClose(key); err != nil {
		// The trade changed underneath the submission. Nothing to record.
		c.log.WithField("key", key.String()).Warn("Close completed for superseded trade key")
		return result, nil
	}
	c.cache.Invalidate(key)
	c.history.Record(ctx, t.Account, t, snapshot, time.Now().UTC())

	c.log.WithFields(map[string]interface{}{
		"key":     key.String(),
		"tx_hash": result.TxHash,
		"cached":  cached,
	}).Info("Position closed")

	return result, nil
}

// Flip reverses the open position's direction at the current price. The
// replacement record keeps the collateral and leverage, takes the
// flip-time price as its new open price, and advances the trade index,
// so every payload keyed to the pre-flip identity is invalidated.
func (c *TradeController) Flip(ctx context.Context) (model.TxResult, error) {
	t, err := c.store.BeginFlip()
	if err != nil {
		return model.TxResult{}, err
	}
	key := t.Key()

	if st := c.delegates.Status(ctx, t.Account); !st.IsSetup {
		c.store.FailFlip(key)
		return model.TxResult{}, &relay.ConfigurationError{
			Provider: c.relays.Registry().ActiveType(),
			Reason:   "delegation not set up for account",
		}
	}

	price, err := c.currentPrice(ctx, t)
	if err != nil {
		c.store.FailFlip(key)
		return model.TxResult{}, err
	}

	tx, cached := c.cache.Get(key, txcache.KindFlip)
	if !cached {
		tx, err = c.builder.BuildFlipTx(t, price)
		if err != nil {
			c.store.FailFlip(key)
			return model.TxResult{}, err
		}
	}

	result, err := c.relays.Submit(ctx, tx)
	if err != nil {
		c.store.FailFlip(key)
		return model.TxResult{}, err
	}

	flipped := t
	flipped.TradeIndex = t.TradeIndex + 1
	flipped.IsLong = !t.IsLong
	flipped.OpenPrice = price
	flipped.TP = txbuilder.TakeProfit(price, flipped.IsLong, flipped.Leverage)
	flipped.SL = 0
	flipped.OpenedAt = time.Now().UTC()

	c.monitor.Stop()
	if err := c.store.CompleteFlip(key, flipped); err != nil {
		c.log.WithField("key", key.String()).Warn("Flip completed for superseded trade key")
		return result, nil
	}
	c.cache.Invalidate(key)

	c.log.WithFields(map[string]interface{}{
		"old_key": key.String(),
		"new_key": flipped.Key().String(),
		"is_long": flipped.IsLong,
		"cached":  cached,
	}).Info("Position flipped")

	return result, nil
}

func (c *TradeController) currentPrice(ctx context.Context, t model.Trade) (float64, error) {
	if snapshot, ok := c.store.LatestPnL(); ok && snapshot.CurrentPrice > 0 {
		return snapshot.CurrentPrice, nil
	}
	return c.prices.Price(ctx, t.Pair)
}
