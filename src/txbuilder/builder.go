package txbuilder

import (
	"fmt"
	"strings"

	logger "github.com/sirupsen/logrus"

	"perpexecutor/src/model"
)

// ERC20 approve encoded exactly as the contract expects: raw selector
// plus spender plus max uint256.
const (
	approveSelector = "095ea7b3"
	maxUint256      = "ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"
)

// Zero-fee market order type on the trading contract.
const orderTypeMarketZeroFee = 3

// Builder produces unsigned transaction payloads without gas
// estimation, so it never needs a live signer. Every trading call is
// wrapped in delegatedAction(trader, innerCalldata) and executed by the
// relay-held delegate on the trader's behalf.
type Builder struct {
	cfg Config
	log *logger.Entry
}

func NewBuilder(cfg Config) *Builder {
	return &Builder{
		cfg: cfg,
		log: logger.WithField("component", "txbuilder"),
	}
}

// TakeProfit targets a 100% return on collateral: at leverage X that is
// a price move of 1/X from the open.
func TakeProfit(openPrice float64, isLong bool, leverage int) float64 {
	if leverage <= 0 {
		return 0
	}
	move := 1.0 / float64(leverage)
	if isLong {
		return openPrice * (1 + move)
	}
	return openPrice * (1 - move)
}

func (b *Builder) executionFeeHex() string {
	return fmt.Sprintf("0x%x", b.cfg.ExecutionFeeWei)
}

// delegatedAction wraps inner calldata in delegatedAction(address,bytes).
func delegatedAction(trader, innerCalldata string) string {
	var sb strings.Builder
	sb.WriteString("0x")
	sb.WriteString(selector("delegatedAction(address,bytes)"))
	sb.WriteString(encodeAddress(trader))
	sb.WriteString(encodeUint64(0x40)) // offset to the bytes tail
	sb.WriteString(encodeBytesTail(innerCalldata))
	return sb.String()
}

// closeTradeMarket encodes closeTradeMarket(pairIndex, tradeIndex, collateral).
func closeTradeMarket(pairIndex, tradeIndex uint, collateral float64) string {
	var sb strings.Builder
	sb.WriteString(selector("closeTradeMarket(uint256,uint256,uint256)"))
	sb.WriteString(encodeUint64(uint64(pairIndex)))
	sb.WriteString(encodeUint64(uint64(tradeIndex)))
	sb.WriteString(encodeUint(scaleCollateral(collateral)))
	return sb.String()
}

// openTrade encodes openTrade(tradeInput, orderType, slippage) where
// tradeInput is the static tuple (trader, openPrice, pairIndex,
// collateral, isLong, leverage, index, tp, sl).
func openTrade(t model.Trade, slippagePct uint64) string {
	var sb strings.Builder
	sb.WriteString(selector("openTrade((address,uint256,uint256,uint256,bool,uint256,uint256,uint256,uint256),uint8,uint256)"))
	sb.WriteString(encodeAddress(t.Account))
	sb.WriteString(encodeUint(scalePrice(t.OpenPrice)))
	sb.WriteString(encodeUint64(uint64(t.PairIndex)))
	sb.WriteString(encodeUint(scaleCollateral(t.Collateral)))
	sb.WriteString(encodeBool(t.IsLong))
	sb.WriteString(encodeUint64(uint64(t.Leverage)))
	sb.WriteString(encodeUint64(uint64(t.TradeIndex)))
	sb.WriteString(encodeUint(scalePrice(t.TP)))
	sb.WriteString(encodeUint(scalePrice(t.SL)))
	sb.WriteString(encodeUint64(orderTypeMarketZeroFee))
	sb.WriteString(encodeUint64(slippagePct))
	return sb.String()
}

// BuildCloseTx builds the delegated close for the full collateral of
// the given trade.
func (b *Builder) BuildCloseTx(t model.Trade) (model.UnsignedTx, error) {
	if !model.IsAddress(t.Account) {
		return model.UnsignedTx{}, fmt.Errorf("invalid trader address: %q", t.Account)
	}
	if t.Collateral <= 0 {
		return model.UnsignedTx{}, fmt.Errorf("invalid collateral to close: %f", t.Collateral)
	}

	inner := closeTradeMarket(t.PairIndex, t.TradeIndex, t.Collateral)
	data := delegatedAction(t.Account, inner)

	b.log.WithFields(map[string]interface{}{
		"pair_index":  t.PairIndex,
		"trade_index": t.TradeIndex,
		"calldata":    len(data),
	}).Debug("Built delegated close")

	return model.UnsignedTx{
		To:      b.cfg.TradingAddress,
		Data:    data,
		Value:   b.executionFeeHex(),
		ChainID: b.cfg.ChainID,
	}, nil
}

// BuildFlipTx builds the delegated open for the opposite direction at
// the given price. The new position reuses the trade's collateral and
// leverage; its take-profit follows the 1/leverage rule.
func (b *Builder) BuildFlipTx(t model.Trade, flipPrice float64) (model.UnsignedTx, error) {
	if !model.IsAddress(t.Account) {
		return model.UnsignedTx{}, fmt.Errorf("invalid trader address: %q", t.Account)
	}
	if flipPrice <= 0 {
		return model.UnsignedTx{}, fmt.Errorf("invalid flip price: %f", flipPrice)
	}

	flipped := t
	flipped.IsLong = !t.IsLong
	flipped.OpenPrice = flipPrice
	flipped.TP = TakeProfit(flipPrice, flipped.IsLong, flipped.Leverage)
	flipped.SL = 0

	inner := openTrade(flipped, b.cfg.SlippagePct)
	data := delegatedAction(t.Account, inner)

	b.log.WithFields(map[string]interface{}{
		"pair_index": t.PairIndex,
		"is_long":    flipped.IsLong,
		"open_price": flipPrice,
	}).Debug("Built delegated flip open")

	return model.UnsignedTx{
		To:      b.cfg.TradingAddress,
		Data:    data,
		Value:   b.executionFeeHex(),
		ChainID: b.cfg.ChainID,
	}, nil
}

// BuildSetDelegateTx builds the setDelegate call the trader signs with
// their own wallet during delegation setup.
func (b *Builder) BuildSetDelegateTx(delegateAddress string) model.UnsignedTx {
	data := "0x" + selector("setDelegate(address)") + encodeAddress(delegateAddress)
	return model.UnsignedTx{
		To:      b.cfg.TradingAddress,
		Data:    data,
		Value:   "0x0",
		ChainID: b.cfg.ChainID,
	}
}

func (b *Builder) BuildRemoveDelegateTx() model.UnsignedTx {
	return model.UnsignedTx{
		To:      b.cfg.TradingAddress,
		Data:    "0x" + selector("removeDelegate()"),
		Value:   "0x0",
		ChainID: b.cfg.ChainID,
	}
}

// BuildUSDCApprovalTx approves the trading contract for max uint256.
func (b *Builder) BuildUSDCApprovalTx() model.UnsignedTx {
	data := "0x" + approveSelector + encodeAddress(b.cfg.TradingAddress) + maxUint256
	return model.UnsignedTx{
		To:      b.cfg.USDCAddress,
		Data:    data,
		Value:   "0x0",
		ChainID: b.cfg.ChainID,
	}
}
