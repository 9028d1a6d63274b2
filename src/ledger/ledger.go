package ledger

import (
	"context"
	"encoding/json"
	"time"

	logger "github.com/sirupsen/logrus"

	"perpexecutor/src/model"
	"perpexecutor/src/storage"
)

// MaxEntries bounds the per-account history.
const MaxEntries = 100

// Ledger keeps a bounded, deduplicated, most-recent-first history of
// closed trades per account. It is a convenience history: storage
// failures degrade to a no-op and never reach the trading-action path.
type Ledger struct {
	kv  storage.KV
	log *logger.Entry
}

func New(kv storage.KV) *Ledger {
	return &Ledger{
		kv:  kv,
		log: logger.WithField("component", "ledger"),
	}
}

func ledgerKey(account string) string { return "closed_trades:" + account }

// Record appends the closed trade for the account, replacing any
// existing entry with the same (pairIndex, tradeIndex) identity so a
// re-close after a timeout stays idempotent.
func (l *Ledger) Record(ctx context.Context, account string, trade model.Trade, pnl model.PnLData, closedAt time.Time) {
	closed := model.ClosedTrade{
		Trade:              trade,
		ClosedAt:           closedAt,
		ClosePrice:         pnl.CurrentPrice,
		FinalPnL:           pnl.PnL,
		FinalPnLPercentage: pnl.PnLPercentage,
	}

	entries := l.List(ctx, account)

	replaced := false
	for i := range entries {
		if entries[i].PairIndex == trade.PairIndex && entries[i].TradeIndex == trade.TradeIndex {
			entries[i] = closed
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append([]model.ClosedTrade{closed}, entries...)
	}
	if len(entries) > MaxEntries {
		entries = entries[:MaxEntries]
	}

	raw, err := json.Marshal(entries)
	if err != nil {
		l.log.WithError(err).Error("Failed to encode closed-trade history")
		return
	}
	if err := l.kv.Set(ctx, ledgerKey(account), raw); err != nil {
		l.log.WithError(err).WithField("account", account).Error("Failed to persist closed-trade history")
		return
	}

	l.log.WithFields(map[string]interface{}{
		"account":     account,
		"pair_index":  trade.PairIndex,
		"trade_index": trade.TradeIndex,
		"final_pnl":   pnl.PnL,
		"entries":     len(entries),
	}).Info("Closed trade recorded")
}

// List returns the account's history, most recent first. Absent or
// unreadable history yields an empty slice.
func (l *Ledger) List(ctx context.Context, account string) []model.ClosedTrade {
	raw, err := l.kv.Get(ctx, ledgerKey(account))
	if err != nil {
		l.log.WithError(err).WithField("account", account).Error("Failed to load closed-trade history")
		return nil
	}
	if raw == nil {
		return nil
	}

	var entries []model.ClosedTrade
	if err := json.Unmarshal(raw, &entries); err != nil {
		l.log.WithError(err).WithField("account", account).Warn("Discarding malformed closed-trade history")
		return nil
	}
	return entries
}

// Clear drops the account's history.
func (l *Ledger) Clear(ctx context.Context, account string) {
	if err := l.kv.Delete(ctx, ledgerKey(account)); err != nil {
		l.log.WithError(err).WithField("account", account).Error("Failed to clear closed-trade history")
	}
}
