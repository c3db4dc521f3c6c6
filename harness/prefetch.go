package harness

import "fmt"

// Prefetcher issues a non-binding hint that data[pos] will be read soon.
// Go exposes no portable prefetch instruction, so the hint is a capability
// the platform may or may not honour. Strategies stay correct when it does
// nothing.
type Prefetcher interface {
	Prefetch(data []int32, pos uint64)
}

// NoPrefetch ignores every hint.
type NoPrefetch struct{}

// Prefetch does nothing.
func (NoPrefetch) Prefetch([]int32, uint64) {}

// TouchPrefetch approximates a prefetch with an independent load whose value
// only feeds a discard accumulator. Nothing downstream waits on the load, so
// an out-of-order core keeps it in flight while the payload runs.
type TouchPrefetch struct {
	sink int32
}

// Prefetch loads data[pos] into the discard accumulator.
func (p *TouchPrefetch) Prefetch(data []int32, pos uint64) {
	p.sink += data[pos]
}

// Sink returns the discard accumulator so the loads cannot be proven dead.
func (p *TouchPrefetch) Sink() int32 {
	return p.sink
}

// PrefetcherByName returns "none" or "touch".
func PrefetcherByName(name string) (Prefetcher, error) {
	switch name {
	case "", "touch":
		return &TouchPrefetch{}, nil
	case "none":
		return NoPrefetch{}, nil
	default:
		return nil, fmt.Errorf("unknown prefetcher %q", name)
	}
}
