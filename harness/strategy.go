package harness

import (
	"errors"
	"fmt"
	"time"

	"github.com/weiihann/membatch/payload"
	"github.com/weiihann/membatch/traffic"
)

// ErrInvalidBatchSize is returned for a batched strategy with batch size < 1.
var ErrInvalidBatchSize = errors.New("batch size must be at least 1")

// Strategy selects how accesses are scheduled.
type Strategy int

const (
	// NoBatch loads, computes and accumulates one element at a time.
	NoBatch Strategy = iota
	// BatchOnly loads a whole batch before applying the payload to it.
	BatchOnly
	// BatchPrefetch pipelines one batch ahead: while the current batch is
	// computed, indices of the next batch are hashed, cached and prefetched.
	BatchPrefetch
	// LocationsBatch hashes every position up front, then batches loads and
	// prefetches the element one batch ahead.
	LocationsBatch
)

// String returns the label used in result files.
func (s Strategy) String() string {
	switch s {
	case NoBatch:
		return "no batch"
	case BatchOnly:
		return "batch only"
	case BatchPrefetch:
		return "batch prefetch"
	case LocationsBatch:
		return "locations batch"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// Batched returns the strategies that take a batch size, in sweep order.
func Batched() []Strategy {
	return []Strategy{BatchOnly, BatchPrefetch, LocationsBatch}
}

// Runner executes one strategy at one batch size. Scratch buffers are sized
// once and reused across repetitions; a Runner is not safe for concurrent use.
type Runner struct {
	Strategy   Strategy
	BatchSize  int
	Data       []int32
	N          uint64
	Payload    payload.Func
	Prefetcher Prefetcher

	batch     []int32
	hashes    []uint64
	locations []uint64
}

// NewRunner creates a Runner over data for n accesses per repetition. The
// batch size is ignored by NoBatch. A nil prefetcher means NoPrefetch.
func NewRunner(
	s Strategy,
	data []int32,
	n uint64,
	fn payload.Func,
	batchSize int,
	pf Prefetcher,
) (*Runner, error) {
	if len(data) == 0 {
		return nil, errors.New("backing array is empty")
	}

	if pf == nil {
		pf = NoPrefetch{}
	}

	r := &Runner{
		Strategy:   s,
		BatchSize:  batchSize,
		Data:       data,
		N:          n,
		Payload:    fn,
		Prefetcher: pf,
	}

	switch s {
	case NoBatch:
		r.BatchSize = 0
	case BatchOnly, BatchPrefetch, LocationsBatch:
		if batchSize < 1 {
			return nil, fmt.Errorf("%s: %w (got %d)", s, ErrInvalidBatchSize, batchSize)
		}

		r.batch = make([]int32, batchSize)
	default:
		return nil, fmt.Errorf("unknown strategy %d", int(s))
	}

	switch s {
	case BatchPrefetch:
		r.hashes = make([]uint64, batchSize)
	case LocationsBatch:
		r.locations = make([]uint64, n)
	}

	return r, nil
}

// Run executes repetition rep and times it.
func (r *Runner) Run(rep uint64) Result {
	start := time.Now()

	var c int64

	switch r.Strategy {
	case NoBatch:
		c = r.tail(rep, 0)
	case BatchOnly:
		c = r.batchOnly(rep)
	case BatchPrefetch:
		c = r.batchPrefetch(rep)
	case LocationsBatch:
		c = r.locationsBatch(rep)
	}

	return Result{Certificate: c, Elapsed: time.Since(start)}
}

// tail processes positions [from, N) one element at a time. With from = 0
// it is the whole baseline strategy.
func (r *Runner) tail(rep, from uint64) int64 {
	data, n, m, f := r.Data, r.N, uint64(len(r.Data)), r.Payload

	var c int64
	for i := from; i < n; i++ {
		c += int64(f(data[traffic.Index(i, rep, n, m)]))
	}

	return c
}

func (r *Runner) batchOnly(rep uint64) int64 {
	data, n, m, f := r.Data, r.N, uint64(len(r.Data)), r.Payload
	batch := r.batch
	bs := uint64(len(batch))
	last := n / bs * bs

	var c int64
	for i := uint64(0); i < last; i += bs {
		for j := uint64(0); j < bs; j++ {
			batch[j] = data[traffic.Index(i+j, rep, n, m)]
		}

		for j := uint64(0); j < bs; j++ {
			c += int64(f(batch[j]))
		}
	}

	return c + r.tail(rep, last)
}

func (r *Runner) batchPrefetch(rep uint64) int64 {
	data, n, m, f := r.Data, r.N, uint64(len(r.Data)), r.Payload
	batch, hashes, pf := r.batch, r.hashes, r.Prefetcher
	bs := uint64(len(batch))
	last := n / bs * bs

	var c int64
	for i := uint64(0); i < last; i += bs {
		// The first batch has no predecessor that cached its indices.
		if i == 0 {
			for j := uint64(0); j < bs; j++ {
				batch[j] = data[traffic.Index(j, rep, n, m)]
			}
		} else {
			for j := uint64(0); j < bs; j++ {
				batch[j] = data[hashes[j]]
			}
		}

		for j := uint64(0); j < bs; j++ {
			pos := traffic.Index(i+bs+j, rep, n, m)
			hashes[j] = pos
			pf.Prefetch(data, pos)
		}

		for j := uint64(0); j < bs; j++ {
			c += int64(f(batch[j]))
		}
	}

	return c + r.tail(rep, last)
}

func (r *Runner) locationsBatch(rep uint64) int64 {
	data, n, m, f := r.Data, r.N, uint64(len(r.Data)), r.Payload
	batch, locs, pf := r.batch, r.locations, r.Prefetcher
	bs := uint64(len(batch))
	last := n / bs * bs

	// No sort: sorting N locations costs more than it saves.
	traffic.Pattern{M: m, N: n, Repetition: rep}.Fill(locs)

	var c int64
	for i := uint64(0); i < last; i += bs {
		for j := uint64(0); j < bs; j++ {
			batch[j] = data[locs[i+j]]
			if ahead := i + j + bs; ahead < n {
				pf.Prefetch(data, locs[ahead])
			}
		}

		for j := uint64(0); j < bs; j++ {
			c += int64(f(batch[j]))
		}
	}

	return c + r.tail(rep, last)
}
