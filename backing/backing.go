// Package backing owns the large array the strategies read from. It is
// allocated once, filled with pseudorandom values before measurement, and
// only read afterwards.
package backing

import (
	"errors"
	mrand "math/rand"
)

// ElementBytes is the width of one backing element.
const ElementBytes = 4

// Array is the backing array. Data must not be written once a sweep starts.
type Array struct {
	Data []int32

	// Aligned is true when Data starts on a page boundary.
	Aligned bool

	release func() error
}

// Allocate reserves m elements.
func Allocate(m uint64) (*Array, error) {
	if m == 0 {
		return nil, errors.New("backing array size must be positive")
	}

	return allocate(m)
}

// Bytes returns the size of the array in bytes.
func (a *Array) Bytes() uint64 {
	return uint64(len(a.Data)) * ElementBytes
}

// Populate fills the array with non-negative pseudorandom values, touching
// every page. The values only matter for defeating dead code elimination
// and for making certificate mismatches visible.
func (a *Array) Populate(seed int64) {
	rng := mrand.New(mrand.NewSource(seed))
	for i := range a.Data {
		a.Data[i] = rng.Int31()
	}
}

// Close releases the memory. The array must not be used afterwards.
func (a *Array) Close() error {
	a.Data = nil

	if a.release == nil {
		return nil
	}

	release := a.release
	a.release = nil

	return release()
}

func allocateHeap(m uint64) *Array {
	return &Array{Data: make([]int32, m)}
}
