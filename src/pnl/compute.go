package pnl

import (
	"time"

	"github.com/shopspring/decimal"

	"perpexecutor/src/model"
)

var hundred = decimal.NewFromInt(100)

// Compute derives a fresh PnL snapshot from the tick price and the
// trade's static open parameters. It is a pure function: the same
// inputs always produce the same snapshot, nothing is accumulated from
// previous ticks.
//
//	pnl = ±(current - open)/open * leverage * collateral
//	pct = pnl / collateral * 100
func Compute(t model.Trade, currentPrice float64) model.PnLData {
	return ComputeWithFee(t, currentPrice, 0)
}

// ComputeWithFee subtracts an accrued margin fee from the gross PnL.
// The fee is zero for zero-fee market positions; the parameter exists
// so funding adjustments slot in without touching the core formula.
func ComputeWithFee(t model.Trade, currentPrice, marginFee float64) model.PnLData {
	open := decimal.NewFromFloat(t.OpenPrice)
	current := decimal.NewFromFloat(currentPrice)
	collateral := decimal.NewFromFloat(t.Collateral)
	leverage := decimal.NewFromInt(int64(t.Leverage))

	if open.IsZero() || collateral.IsZero() {
		return model.PnLData{CurrentPrice: currentPrice, ComputedAt: time.Now().UTC()}
	}

	change := current.Sub(open).Div(open)
	if !t.IsLong {
		change = change.Neg()
	}

	gross := change.Mul(leverage).Mul(collateral)
	net := gross.Sub(decimal.NewFromFloat(marginFee))
	pct := net.Div(collateral).Mul(hundred)

	pnl, _ := net.Float64()
	pnlPct, _ := pct.Float64()

	return model.PnLData{
		PnL:           pnl,
		PnLPercentage: pnlPct,
		CurrentPrice:  currentPrice,
		ComputedAt:    time.Now().UTC(),
	}
}

// Signals are pure functions of the latest snapshot, recomputed every
// tick rather than separately stateful.
type Signals struct {
	NearTakeProfit  bool `json:"near_take_profit"`
	NearLiquidation bool `json:"near_liquidation"`
}

type Thresholds struct {
	NearTakeProfitPct  float64
	NearLiquidationPct float64
}

func (th Thresholds) Evaluate(p model.PnLData) Signals {
	return Signals{
		NearTakeProfit:  p.PnLPercentage >= th.NearTakeProfitPct,
		NearLiquidation: p.PnLPercentage <= th.NearLiquidationPct,
	}
}
