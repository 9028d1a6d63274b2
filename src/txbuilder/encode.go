package txbuilder

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/sha3"
)

// Scaling used by the trading contract: prices carry 8 decimals
// (Chainlink/Pyth convention), USDC collateral carries 6.
const (
	priceDecimals      = 8
	collateralDecimals = 6
)

const wordHexLen = 64

// selector returns the 4-byte function selector for a canonical
// signature, hex-encoded without the 0x prefix.
func selector(signature string) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(signature))
	return hex.EncodeToString(h.Sum(nil)[:4])
}

func encodeUint(v *big.Int) string {
	return fmt.Sprintf("%064x", v)
}

func encodeUint64(v uint64) string {
	return encodeUint(new(big.Int).SetUint64(v))
}

func encodeBool(v bool) string {
	if v {
		return encodeUint64(1)
	}
	return encodeUint64(0)
}

// encodeAddress left-pads an address to one word. Inputs longer than a
// word keep only the low-order bytes; callers validate address shape
// before encoding, this guard just keeps a bad input from panicking.
func encodeAddress(addr string) string {
	clean := strings.ToLower(strings.TrimPrefix(addr, "0x"))
	if len(clean) > wordHexLen {
		clean = clean[len(clean)-wordHexLen:]
	}
	return strings.Repeat("0", wordHexLen-len(clean)) + clean
}

// encodeBytesTail encodes a dynamic bytes argument tail: length word
// followed by the right-padded content.
func encodeBytesTail(dataHex string) string {
	clean := strings.TrimPrefix(dataHex, "0x")
	byteLen := len(clean) / 2
	padded := clean
	if rem := len(clean) % wordHexLen; rem != 0 {
		padded += strings.Repeat("0", wordHexLen-rem)
	}
	return encodeUint64(uint64(byteLen)) + padded
}

// scalePrice converts a quote price to the contract's 8-decimal fixed
// point representation.
func scalePrice(price float64) *big.Int {
	return decimal.NewFromFloat(price).Shift(priceDecimals).Round(0).BigInt()
}

// scaleCollateral converts a USDC amount to 6-decimal units.
func scaleCollateral(amount float64) *big.Int {
	return decimal.NewFromFloat(amount).Shift(collateralDecimals).Round(0).BigInt()
}
