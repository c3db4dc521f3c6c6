// Package traffic generates the deterministic pseudorandom access pattern
// that every access strategy replays. A position i of repetition k maps to
// an offset in [0, M) through a 64-bit mixing hash seeded with k and N.
package traffic

const (
	hashMul = 0x880355f21e6d1965
	mixMul  = 0x2127599bf4325c37

	// lenSeed is 8*hashMul mod 2^64, the length term for a one-word input.
	lenSeed = 0x401aaf90f368cb28

	// HashName identifies Hash64 in result file names.
	HashName = "fast-hash-64"
)

func mix(h uint64) uint64 {
	h ^= h >> 23
	h *= mixMul
	h ^= h >> 47

	return h
}

// Hash64 mixes a single 64-bit word with two seeds. The input is exactly one
// 8-byte word, so there is no tail handling.
func Hash64(n, seedA, seedB uint64) uint64 {
	h := (seedA + seedB) ^ lenSeed
	h ^= mix(n)
	h *= hashMul

	return mix(h)
}

// Index returns the backing-array offset visited at the given position of
// repetition rep, for n accesses per repetition into m elements.
func Index(position, rep, n, m uint64) uint64 {
	return Hash64(position, rep, n) % m
}

// Pattern is the traffic of one repetition.
type Pattern struct {
	M          uint64
	N          uint64
	Repetition uint64
}

// At returns the offset for position i.
func (p Pattern) At(i uint64) uint64 {
	return Index(i, p.Repetition, p.N, p.M)
}

// Fill writes the offsets of positions [0, len(dst)) into dst.
func (p Pattern) Fill(dst []uint64) {
	for i := range dst {
		dst[i] = Index(uint64(i), p.Repetition, p.N, p.M)
	}
}
