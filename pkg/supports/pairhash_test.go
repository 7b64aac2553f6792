package supports

import "testing"

func TestPairHashCommutative(t *testing.T) {
	seen := make(map[uint64][2]uint32)
	for i := uint32(0); i < 1000; i++ {
		for j := i; j < 1000; j++ {
			h := PairHash[uint64](i, j)
			if r := PairHash[uint64](j, i); r != h {
				t.Fatalf("PairHash(%d, %d) = %d, reversed = %d", i, j, h, r)
			}
			if prev, ok := seen[h]; ok {
				t.Fatalf("PairHash(%d, %d) collides with (%d, %d)", i, j, prev[0], prev[1])
			}
			seen[h] = [2]uint32{i, j}
		}
	}
}

func TestPairHashNarrowOutput(t *testing.T) {
	// 16 bit inputs into 32 bits keep the full shift.
	if got := PairHash[uint32](int16(3), int16(1)); got != 1<<16+3 {
		t.Errorf("PairHash(3, 1) = %d, want %d", got, 1<<16+3)
	}
	// Same-width output halves the shift.
	if got := PairHash[uint64](uint64(2), uint64(5)); got != 2<<32+5 {
		t.Errorf("PairHash(2, 5) = %d, want %d", got, uint64(2)<<32+5)
	}
}
