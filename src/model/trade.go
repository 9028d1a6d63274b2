package model

import (
	"fmt"
	"regexp"
	"time"
)

// TradeKey identifies one open position. TradeIndex is per-pair, so
// different pairs can share the same trade index.
type TradeKey struct {
	PairIndex  uint   `json:"pair_index"`
	TradeIndex uint   `json:"trade_index"`
	Account    string `json:"account"`
}

func (k TradeKey) String() string {
	return fmt.Sprintf("%s/%d/%d", k.Account, k.PairIndex, k.TradeIndex)
}

type Trade struct {
	PairIndex  uint      `json:"pair_index"`
	TradeIndex uint      `json:"trade_index"`
	Account    string    `json:"account"`
	Pair       string    `json:"pair"`
	Collateral float64   `json:"collateral"`
	Leverage   int       `json:"leverage"`
	IsLong     bool      `json:"is_long"`
	OpenPrice  float64   `json:"open_price"`
	TP         float64   `json:"tp"`
	SL         float64   `json:"sl"`
	OpenedAt   time.Time `json:"opened_at"`
}

func (t *Trade) Key() TradeKey {
	return TradeKey{PairIndex: t.PairIndex, TradeIndex: t.TradeIndex, Account: t.Account}
}

// PositionSize is the notional exposure in quote currency.
func (t *Trade) PositionSize() float64 {
	return t.Collateral * float64(t.Leverage)
}

// PnLData is recomputed fresh on every poll tick, never accumulated.
type PnLData struct {
	PnL           float64   `json:"pnl"`
	PnLPercentage float64   `json:"pnl_percentage"`
	CurrentPrice  float64   `json:"current_price"`
	ComputedAt    time.Time `json:"computed_at"`
}

type ClosedTrade struct {
	Trade
	ClosedAt           time.Time `json:"closed_at"`
	ClosePrice         float64   `json:"close_price"`
	FinalPnL           float64   `json:"final_pnl"`
	FinalPnLPercentage float64   `json:"final_pnl_percentage"`
}

const (
	PairBTCUSD = "BTC/USD"
	PairETHUSD = "ETH/USD"
	PairSOLUSD = "SOL/USD"
	PairXRPUSD = "XRP/USD"
)

var pairIndexes = map[string]uint{
	PairBTCUSD: 0,
	PairETHUSD: 1,
	PairSOLUSD: 2,
	PairXRPUSD: 3,
}

// PairIndexFor maps a pair name to its protocol pair index. Unknown
// pairs fall back to index 0 (BTC/USD), mirroring the protocol default.
func PairIndexFor(pair string) uint {
	if idx, ok := pairIndexes[pair]; ok {
		return idx
	}
	return 0
}

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// IsAddress reports whether s is a plausible 20-byte hex address.
// Anything reaching the calldata encoders must pass this first.
func IsAddress(s string) bool {
	return addressPattern.MatchString(s)
}
