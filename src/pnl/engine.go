package pnl

import (
	"context"
	"errors"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"

	"perpexecutor/src/model"
	"perpexecutor/src/trade"
)

// PriceSource is the external price read API. Fetches may fail
// transiently; the engine treats that as a missed tick.
type PriceSource interface {
	Price(ctx context.Context, pair string) (float64, error)
}

// TickFunc receives each applied snapshot, for UI feedback.
type TickFunc func(t model.Trade, p model.PnLData, s Signals)

var ErrAlreadyPolling = errors.New("pnl engine already polling")

// Engine polls the price source on a fixed interval while a trade is
// open and feeds snapshots into the trade store. One engine run is
// bound to one trade key: fetches run sequentially in the loop
// goroutine (so snapshots apply in fetch order) and every result is
// re-validated against the store's key before it is committed.
type Engine struct {
	cfg        Config
	thresholds Thresholds
	source     PriceSource
	store      *trade.Store
	onTick     TickFunc
	log        *logger.Entry

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewEngine(cfg Config, source PriceSource, store *trade.Store) *Engine {
	return &Engine{
		cfg: cfg,
		thresholds: Thresholds{
			NearTakeProfitPct:  cfg.NearTakeProfitPct,
			NearLiquidationPct: cfg.NearLiquidationPct,
		},
		source: source,
		store:  store,
		log:    logger.WithField("component", "pnl-engine"),
	}
}

func (e *Engine) SetOnTick(fn TickFunc) { e.onTick = fn }

// Start begins polling for the currently open trade.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancel != nil {
		return ErrAlreadyPolling
	}
	key, ok := e.store.Key()
	if !ok {
		return trade.ErrNoOpenTrade
	}

	loopCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})

	go e.loop(loopCtx, key, e.done)

	e.log.WithField("key", key.String()).Info("PnL polling started")
	return nil
}

// Stop cancels the pending tick and waits for the loop to exit, so
// stopping is synchronous with the lifecycle transition that caused it.
// No further fetches occur after Stop returns.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel, e.done = nil, nil
	e.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	e.log.Info("PnL polling stopped")
}

func (e *Engine) loop(ctx context.Context, key model.TradeKey, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !e.tick(ctx, key) {
				return
			}
		}
	}
}

// tick runs one poll cycle. It returns false when the trade this run is
// bound to no longer exists, which ends the loop.
func (e *Engine) tick(ctx context.Context, key model.TradeKey) bool {
	t, ok := e.store.Current()
	if !ok || t.Key() != key {
		return false
	}

	fetchCtx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
	price, err := e.source.Price(fetchCtx, t.Pair)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		// Missed tick: skip, log, continue.
		e.log.WithError(err).WithField("pair", t.Pair).Warn("Price fetch failed, skipping tick")
		return true
	}

	snapshot := Compute(t, price)
	if err := e.store.ApplyPnL(key, snapshot); err != nil {
		// The trade key changed while we were fetching. Drop the result.
		return false
	}

	signals := e.thresholds.Evaluate(snapshot)
	if signals.NearLiquidation {
		e.log.WithFields(map[string]interface{}{
			"key":     key.String(),
			"pnl_pct": snapshot.PnLPercentage,
		}).Warn("Position near liquidation")
	}
	if signals.NearTakeProfit {
		e.log.WithFields(map[string]interface{}{
			"key":     key.String(),
			"pnl_pct": snapshot.PnLPercentage,
		}).Info("Position near take-profit")
	}

	if e.onTick != nil {
		e.onTick(t, snapshot, signals)
	}
	return true
}
