package router

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Swap paths are packed byte strings alternating token addresses and fee
// tiers: 20 bytes of address, 3 bytes of big-endian fee, 20 bytes of the
// next address, and so on.
const (
	addrSize   = common.AddressLength
	feeSize    = 3
	nextOffset = addrSize + feeSize
	popOffset  = nextOffset + addrSize

	// A path with two or more pools holds at least two full hops and the
	// terminal address.
	multiplePoolsMinLength = popOffset + nextOffset
)

var ErrMalformedPath = errors.New("malformed swap path")

// Path is an encoded multi-hop swap route.
type Path []byte

// EncodePath packs tokens and fees into a path. len(tokens) must be
// len(fees)+1.
func EncodePath(tokens []string, fees []uint32) (Path, error) {
	if len(tokens) != len(fees)+1 || len(fees) == 0 {
		return nil, fmt.Errorf("%w: %d tokens, %d fees", ErrMalformedPath, len(tokens), len(fees))
	}
	out := make([]byte, 0, len(fees)*nextOffset+addrSize)
	for i, fee := range fees {
		out = append(out, common.HexToAddress(tokens[i]).Bytes()...)
		var buf [4]byte
		binary.BigEndian.PutUint32(buf[:], fee)
		out = append(out, buf[1:]...)
	}
	out = append(out, common.HexToAddress(tokens[len(tokens)-1]).Bytes()...)
	return out, nil
}

// HasMultiplePools reports whether the path routes through more than one
// pool.
func (p Path) HasMultiplePools() bool {
	return len(p) >= multiplePoolsMinLength
}

// NumPools returns the number of pools along the path.
func (p Path) NumPools() int {
	return (len(p) - addrSize) / nextOffset
}

// DecodeFirstPool returns the first hop's token pair and fee.
func (p Path) DecodeFirstPool() (tokenA, tokenB string, fee uint32, err error) {
	if len(p) < popOffset {
		return "", "", 0, fmt.Errorf("%w: %d bytes", ErrMalformedPath, len(p))
	}
	tokenA = common.BytesToAddress(p[:addrSize]).Hex()
	fee = uint32(p[addrSize])<<16 | uint32(p[addrSize+1])<<8 | uint32(p[addrSize+2])
	tokenB = common.BytesToAddress(p[nextOffset:popOffset]).Hex()
	return tokenA, tokenB, fee, nil
}

// GetFirstPool returns just the first hop's segment.
func (p Path) GetFirstPool() Path {
	return p[:popOffset]
}

// SkipToken drops the first token and fee, leaving the rest of the route.
func (p Path) SkipToken() Path {
	return p[nextOffset:]
}
