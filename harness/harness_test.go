package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiihann/membatch/payload"
	"github.com/weiihann/membatch/traffic"
)

func testData(m int) []int32 {
	data := make([]int32, m)
	for i := range data {
		data[i] = int32(uint32(i)*2654435761) ^ int32(i)
	}

	return data
}

func allStrategies() []Strategy {
	return append([]Strategy{NoBatch}, Batched()...)
}

func runOnce(
	t *testing.T,
	s Strategy,
	data []int32,
	n uint64,
	fn payload.Func,
	batchSize int,
	rep uint64,
) int64 {
	t.Helper()

	r, err := NewRunner(s, data, n, fn, batchSize, &TouchPrefetch{})
	require.NoError(t, err)

	res := r.Run(rep)
	assert.GreaterOrEqual(t, res.Elapsed.Nanoseconds(), int64(0))

	return res.Certificate
}

func TestStrategiesAgree(t *testing.T) {
	data := testData(1024)

	want := runOnce(t, NoBatch, data, 4096, payload.Identity, 0, 0)

	// Baseline equals the plain sum over the traffic pattern.
	var sum int64
	p := traffic.Pattern{M: 1024, N: 4096, Repetition: 0}
	for i := uint64(0); i < 4096; i++ {
		sum += int64(data[p.At(i)])
	}
	require.Equal(t, sum, want)

	for _, s := range Batched() {
		got := runOnce(t, s, data, 4096, payload.Identity, 8, 0)
		assert.Equal(t, want, got, "strategy %s", s)
	}
}

func TestStrategiesAgreeAcrossPayloadsAndBatchSizes(t *testing.T) {
	data := testData(999)
	payloads := []payload.Payload{
		{Name: "identity", Fn: payload.Identity},
		{Name: "p1", Fn: payload.P1},
		{Name: "p4", Fn: payload.Repeat(4)},
	}

	for _, p := range payloads {
		for rep := uint64(0); rep < 3; rep++ {
			want := runOnce(t, NoBatch, data, 1000, p.Fn, 0, rep)

			for _, bs := range []int{1, 2, 3, 7, 8, 64, 1000, 1500} {
				for _, s := range Batched() {
					got := runOnce(t, s, data, 1000, p.Fn, bs, rep)
					if got != want {
						t.Errorf("%s/%s batch=%d rep=%d: got %d, want %d",
							p.Name, s, bs, rep, got, want)
					}
				}
			}
		}
	}
}

func TestRemainderVisitedOnce(t *testing.T) {
	const n = 4097

	data := testData(1024)
	p := traffic.Pattern{M: 1024, N: n, Repetition: 0}

	withTail := runOnce(t, NoBatch, data, n, payload.Identity, 0, 0)

	var sum int64
	for i := uint64(0); i < n; i++ {
		sum += int64(data[p.At(i)])
	}
	require.Equal(t, sum, withTail)

	for _, s := range Batched() {
		visits := make(map[int32]int)
		order := recordingPayload(visits, nil)

		got := runOnce(t, s, data, n, order, 8, 0)
		assert.Equal(t, withTail, got, "strategy %s", s)

		total := 0
		for _, v := range visits {
			total += v
		}
		assert.Equal(t, n, total, "strategy %s visited %d positions", s, total)
	}
}

// recordingPayload counts and optionally records every payload input. It
// is identity on its argument.
func recordingPayload(counts map[int32]int, seq *[]int32) payload.Func {
	return func(x int32) int32 {
		if counts != nil {
			counts[x]++
		}
		if seq != nil {
			*seq = append(*seq, x)
		}

		return x
	}
}

func TestTraversalOrderMatchesBaseline(t *testing.T) {
	data := make([]int32, 4096)
	for i := range data {
		data[i] = int32(i)
	}

	var baseline []int32
	runOnce(t, NoBatch, data, 777, recordingPayload(nil, &baseline), 0, 5)
	require.Len(t, baseline, 777)

	for _, bs := range []int{1, 4, 10} {
		for _, s := range Batched() {
			var seq []int32
			runOnce(t, s, data, 777, recordingPayload(nil, &seq), bs, 5)
			assert.Equal(t, baseline, seq, "strategy %s batch=%d", s, bs)
		}
	}
}

func TestBatchSizeOneMatchesBaseline(t *testing.T) {
	data := testData(513)
	want := runOnce(t, NoBatch, data, 2000, payload.P1, 0, 2)

	for _, s := range Batched() {
		assert.Equal(t, want, runOnce(t, s, data, 2000, payload.P1, 1, 2), "strategy %s", s)
	}
}

func TestBatchPrefetchFirstBatchIgnoresCache(t *testing.T) {
	data := testData(1024)
	want := runOnce(t, NoBatch, data, 100, payload.Identity, 0, 1)

	r, err := NewRunner(BatchPrefetch, data, 100, payload.Identity, 8, NoPrefetch{})
	require.NoError(t, err)

	// Poison the cache with valid but wrong offsets.
	for j := range r.hashes {
		r.hashes[j] = uint64(len(data) - 1)
	}
	assert.Equal(t, want, r.Run(1).Certificate)

	// Indices cached at the end of repetition 1 must not leak into 2.
	want2 := runOnce(t, NoBatch, data, 100, payload.Identity, 0, 2)
	assert.Equal(t, want2, r.Run(2).Certificate)
}

func TestRunnerReuseAcrossRepetitions(t *testing.T) {
	data := testData(2048)

	for _, s := range allStrategies() {
		r, err := NewRunner(s, data, 3001, payload.Repeat(2), 6, &TouchPrefetch{})
		require.NoError(t, err)

		for rep := uint64(0); rep < 4; rep++ {
			want := runOnce(t, NoBatch, data, 3001, payload.Repeat(2), 0, rep)
			assert.Equal(t, want, r.Run(rep).Certificate, "strategy %s rep %d", s, rep)
		}
	}
}

func TestPrefetcherDoesNotAffectCertificate(t *testing.T) {
	data := testData(4096)

	for _, s := range []Strategy{BatchPrefetch, LocationsBatch} {
		touch := &TouchPrefetch{}
		a, err := NewRunner(s, data, 5000, payload.P1, 16, touch)
		require.NoError(t, err)
		b, err := NewRunner(s, data, 5000, payload.P1, 16, NoPrefetch{})
		require.NoError(t, err)

		assert.Equal(t, b.Run(0).Certificate, a.Run(0).Certificate)
	}
}

func TestNewRunnerValidation(t *testing.T) {
	data := testData(16)

	for _, s := range Batched() {
		_, err := NewRunner(s, data, 10, payload.Identity, 0, nil)
		assert.ErrorIs(t, err, ErrInvalidBatchSize, "strategy %s", s)
	}

	r, err := NewRunner(NoBatch, data, 10, payload.Identity, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, r.BatchSize)
	assert.IsType(t, NoPrefetch{}, r.Prefetcher)

	_, err = NewRunner(NoBatch, nil, 10, payload.Identity, 0, nil)
	assert.Error(t, err)

	_, err = NewRunner(Strategy(42), data, 10, payload.Identity, 4, nil)
	assert.Error(t, err)
}

func TestStrategyLabels(t *testing.T) {
	tests := []struct {
		s    Strategy
		want string
	}{
		{NoBatch, "no batch"},
		{BatchOnly, "batch only"},
		{BatchPrefetch, "batch prefetch"},
		{LocationsBatch, "locations batch"},
		{Strategy(9), "strategy(9)"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.s.String())
	}
}

func TestPrefetcherByName(t *testing.T) {
	pf, err := PrefetcherByName("touch")
	require.NoError(t, err)
	assert.IsType(t, &TouchPrefetch{}, pf)

	pf, err = PrefetcherByName("none")
	require.NoError(t, err)
	assert.IsType(t, NoPrefetch{}, pf)

	_, err = PrefetcherByName("sse")
	assert.Error(t, err)
}
