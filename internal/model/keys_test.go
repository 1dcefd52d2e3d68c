package model

import "testing"

const (
	tokenA = "0x00000000000000000000000000000000000000AA"
	tokenB = "0x00000000000000000000000000000000000000bb"
)

func TestPoolIDCanonical(t *testing.T) {
	id1 := PoolID(tokenA, tokenB, 3000)
	id2 := PoolID(tokenB, tokenA, 3000)
	if id1 != id2 {
		t.Fatalf("pool id must not depend on argument order: %s != %s", id1, id2)
	}
	if id1 == PoolID(tokenA, tokenB, 500) {
		t.Fatalf("pool id must depend on the fee")
	}
}

func TestPoolIDLayout(t *testing.T) {
	id := PoolID(tokenA, tokenB, 3000)
	// 20 + 3 + 20 bytes, hex encoded with 0x prefix.
	if len(id) != 2+2*43 {
		t.Fatalf("unexpected pool id length %d", len(id))
	}
	// 3000 == 0x000bb8 sits between the two addresses.
	if id[2+2*20:2+2*23] != "000bb8" {
		t.Fatalf("fee bytes not found in pool id: %s", id)
	}
}

func TestPositionInfoID(t *testing.T) {
	poolA := PoolID(tokenA, tokenB, 3000)
	poolB := PoolID(tokenA, tokenB, 500)

	a := PositionInfoID(poolA, tokenA, -60, 60)
	b := PositionInfoID(poolA, tokenA, -60, 60)
	if a != b {
		t.Fatalf("position id must be deterministic")
	}
	if a == PositionInfoID(poolA, tokenA, -120, 60) {
		t.Fatalf("position id must depend on the range")
	}
	if a == PositionInfoID(poolB, tokenA, -60, 60) {
		t.Fatalf("position id must depend on the pool")
	}
	if len(a) != 2+64 {
		t.Fatalf("unexpected position id length %d", len(a))
	}
	// Owner casing must not matter.
	if a != PositionInfoID(poolA, "0x00000000000000000000000000000000000000aa", -60, 60) {
		t.Fatalf("owner address must be canonicalized")
	}
}
