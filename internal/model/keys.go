package model

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// NormalizeAddress lowercases a hex address so ids compare byte for byte.
func NormalizeAddress(addr string) string {
	return strings.ToLower(addr)
}

// SortTokens returns the pair in canonical order, token0 < token1.
func SortTokens(tokenA, tokenB string) (string, string) {
	a, b := NormalizeAddress(tokenA), NormalizeAddress(tokenB)
	if a < b {
		return a, b
	}
	return b, a
}

// PoolID derives the canonical pool id from the sorted pair and the fee,
// packed as token0 || fee (3 bytes big-endian) || token1.
func PoolID(tokenA, tokenB string, fee uint32) string {
	token0, token1 := SortTokens(tokenA, tokenB)
	buf := make([]byte, 0, 43)
	buf = append(buf, common.HexToAddress(token0).Bytes()...)
	buf = append(buf, byte(fee>>16), byte(fee>>8), byte(fee))
	buf = append(buf, common.HexToAddress(token1).Bytes()...)
	return "0x" + hex.EncodeToString(buf)
}

// PositionInfoID derives the pool-side position key. The pool id is part of
// the preimage so the same owner and range in two pools never share a row.
func PositionInfoID(poolID, owner string, tickLower, tickUpper int32) string {
	preimage := fmt.Sprintf("%s-%s-%d-%d", NormalizeAddress(poolID), NormalizeAddress(owner), tickLower, tickUpper)
	return "0x" + hex.EncodeToString(crypto.Keccak256([]byte(preimage)))
}
