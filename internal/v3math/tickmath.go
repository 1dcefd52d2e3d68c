package v3math

import (
	"errors"

	"github.com/holiman/uint256"
)

const (
	// MinTick is the lowest tick with a representable sqrt price.
	MinTick = -887272
	// MaxTick is the highest tick with a representable sqrt price.
	MaxTick = -MinTick
)

var (
	// MinSqrtRatio is getSqrtRatioAtTick(MinTick).
	MinSqrtRatio = uint256.NewInt(4295128739)
	// MaxSqrtRatio is getSqrtRatioAtTick(MaxTick).
	MaxSqrtRatio = uint256.MustFromHex("0xfffd8963efd1fc6a506488495d951d5263988d26")
)

var (
	ErrTickOutOfRange      = errors.New("T")
	ErrSqrtRatioOutOfRange = errors.New("R")
)

// Multipliers for sqrt(1.0001)^(-2^i), Q128, one per bit of the tick index.
var tickRatioMagic = [19]*uint256.Int{
	uint256.MustFromHex("0xfff97272373d413259a46990580e213a"),
	uint256.MustFromHex("0xfff2e50f5f656932ef12357cf3c7fdcc"),
	uint256.MustFromHex("0xffe5caca7e10e4e61c3624eaa0941cd0"),
	uint256.MustFromHex("0xffcb9843d60f6159c9db58835c926644"),
	uint256.MustFromHex("0xff973b41fa98c081472e6896dfb254c0"),
	uint256.MustFromHex("0xff2ea16466c96a3843ec78b326b52861"),
	uint256.MustFromHex("0xfe5dee046a99a2a811c461f1969c3053"),
	uint256.MustFromHex("0xfcbe86c7900a88aedcffc83b479aa3a4"),
	uint256.MustFromHex("0xf987a7253ac413176f2b074cf7815e54"),
	uint256.MustFromHex("0xf3392b0822b70005940c7a398e4b70f3"),
	uint256.MustFromHex("0xe7159475a2c29b7443b29c7fa6e889d9"),
	uint256.MustFromHex("0xd097f3bdfd2022b8845ad8f792aa5825"),
	uint256.MustFromHex("0xa9f746462d870fdf8a65dc1f90e061e5"),
	uint256.MustFromHex("0x70d869a156d2a1b890bb3df62baf32f7"),
	uint256.MustFromHex("0x31be135f97d08fd981231505542fcfa6"),
	uint256.MustFromHex("0x9aa508b5b7a84e1c677de54f3e99bc9"),
	uint256.MustFromHex("0x5d6af8dedb81196699c329225ee604"),
	uint256.MustFromHex("0x2216e584f5fa1ea926041bedfe98"),
	uint256.MustFromHex("0x48a170391f7dc42444e8fa2"),
}

var (
	tickRatioOdd  = uint256.MustFromHex("0xfffcb933bd6fad37aa2d162d1a594001")
	tickRatioEven = uint256.MustFromHex("0x100000000000000000000000000000000")

	logSqrt10001Magic = uint256.MustFromHex("0x3627a301d71055774c85")
	tickLowMagic      = uint256.MustFromHex("0x28f6481ab7f045a5af012a19d003aaa")
	tickHighMagic     = uint256.MustFromHex("0xdb2df09e81959a81455e260799a0632f")

	maskUint32 = uint256.NewInt(0xffffffff)
)

// GetSqrtRatioAtTick returns sqrt(1.0001)^tick as a Q64.96 value.
func GetSqrtRatioAtTick(tick int) (*uint256.Int, error) {
	absTick := tick
	if absTick < 0 {
		absTick = -absTick
	}
	if absTick > MaxTick {
		return nil, ErrTickOutOfRange
	}

	ratio := new(uint256.Int)
	if absTick&1 != 0 {
		ratio.Set(tickRatioOdd)
	} else {
		ratio.Set(tickRatioEven)
	}
	for i, magic := range tickRatioMagic {
		if absTick&(1<<(i+1)) != 0 {
			ratio.Mul(ratio, magic)
			ratio.Rsh(ratio, 128)
		}
	}
	if tick > 0 {
		ratio.Div(MaxUint256, ratio)
	}

	// Round the Q128.128 intermediate up into Q64.96.
	rem := new(uint256.Int).And(ratio, maskUint32)
	ratio.Rsh(ratio, 32)
	if !rem.IsZero() {
		ratio.Add(ratio, one)
	}
	return ratio, nil
}

// GetTickAtSqrtRatio returns the largest tick whose sqrt ratio is at most
// sqrtPriceX96. The price must lie in [MinSqrtRatio, MaxSqrtRatio).
func GetTickAtSqrtRatio(sqrtPriceX96 *uint256.Int) (int, error) {
	if sqrtPriceX96.Lt(MinSqrtRatio) || !sqrtPriceX96.Lt(MaxSqrtRatio) {
		return 0, ErrSqrtRatioOutOfRange
	}

	ratio := new(uint256.Int).Lsh(sqrtPriceX96, 32)
	msb, err := MostSignificantBit(ratio)
	if err != nil {
		return 0, err
	}

	r := new(uint256.Int)
	if msb >= 128 {
		r.Rsh(ratio, msb-127)
	} else {
		r.Lsh(ratio, 127-msb)
	}

	// log2 in signed Q64.64, refined bit by bit below the integer part.
	log2 := FromInt64(int64(msb) - 128)
	log2.Lsh(log2, 64)

	for i := 63; i >= 50; i-- {
		r.Mul(r, r)
		r.Rsh(r, 127)
		f := new(uint256.Int).Rsh(r, 128)
		log2.Or(log2, new(uint256.Int).Lsh(f, uint(i)))
		r.Rsh(r, uint(f.Uint64()))
	}

	logSqrt10001 := new(uint256.Int).Mul(log2, logSqrt10001Magic)

	tickLow := signedShr128ToInt(new(uint256.Int).Sub(logSqrt10001, tickLowMagic))
	tickHigh := signedShr128ToInt(new(uint256.Int).Add(logSqrt10001, tickHighMagic))

	if tickLow == tickHigh {
		return tickLow, nil
	}
	ratioAtHigh, err := GetSqrtRatioAtTick(tickHigh)
	if err != nil {
		return 0, err
	}
	if !ratioAtHigh.Gt(sqrtPriceX96) {
		return tickHigh, nil
	}
	return tickLow, nil
}

func signedShr128ToInt(x *uint256.Int) int {
	return int(ToInt64(new(uint256.Int).SRsh(x, 128)))
}
