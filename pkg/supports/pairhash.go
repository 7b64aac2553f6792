package supports

import "unsafe"

// Integer is any integer type.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// PairHash maps the unordered pair {a, b} to a single key of type II.
// The smaller value goes to the high half, so PairHash(a, b) equals
// PairHash(b, a). When II is at least twice as wide as I the key is
// unique for all non-negative inputs; otherwise it is unique while both
// values fit in half of I.
func PairHash[II, I Integer](a, b I) II {
	ibits := int(unsafe.Sizeof(a)) * 8
	iibits := int(unsafe.Sizeof(II(0))) * 8
	shift := ibits
	if iibits/2 < ibits {
		shift = ibits / 2
	}
	g, l := min(a, b), max(a, b)
	return II(g)<<shift + II(l)
}
