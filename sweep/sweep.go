// Package sweep drives the measurement: for every payload it times the
// baseline strategy, then every batched strategy at every batch size,
// certifying each against the baseline and forwarding the timing series to
// a report sink.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/weiihann/membatch/harness"
	"github.com/weiihann/membatch/payload"
	"github.com/weiihann/membatch/report"
)

// Config holds the fixed parameters of a run.
type Config struct {
	M           uint64
	N           uint64
	Repetitions int
	BatchSizes  []int
	TimeUnit    report.TimeUnit
	Prefetcher  string
}

// DefaultConfig returns the parameters of a full run: 4 GiB of int32, 2^20
// accesses, 100 repetitions, batch sizes 2 to 80 in steps of 2.
func DefaultConfig() Config {
	return Config{
		M:           1 << 30,
		N:           1 << 20,
		Repetitions: 100,
		BatchSizes:  BatchSizes(2, 80, 2),
		TimeUnit:    report.Microseconds,
		Prefetcher:  "touch",
	}
}

// BatchSizes returns from, from+step, ... up to and including to.
func BatchSizes(from, to, step int) []int {
	if step <= 0 || from > to {
		return nil
	}

	sizes := make([]int, 0, (to-from)/step+1)
	for bs := from; bs <= to; bs += step {
		sizes = append(sizes, bs)
	}

	return sizes
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.M == 0 {
		return errors.New("backing size M must be positive")
	}

	if c.N == 0 {
		return errors.New("access count N must be positive")
	}

	if c.Repetitions <= 0 {
		return errors.New("repetitions must be positive")
	}

	if len(c.BatchSizes) == 0 {
		return errors.New("at least one batch size is required")
	}

	for _, bs := range c.BatchSizes {
		if bs < 1 {
			return fmt.Errorf("batch size %d: %w", bs, harness.ErrInvalidBatchSize)
		}
	}

	if _, err := report.ParseTimeUnit(string(c.TimeUnit)); err != nil {
		return err
	}

	if _, err := harness.PrefetcherByName(c.Prefetcher); err != nil {
		return err
	}

	return nil
}

// Sweep measures all strategies over one backing array.
type Sweep struct {
	cfg        Config
	data       []int32
	prefetcher harness.Prefetcher
	logger     *slog.Logger
}

// New creates a Sweep over data, which must hold cfg.M elements and must not
// be written while the sweep runs.
func New(cfg Config, data []int32, logger *slog.Logger) (*Sweep, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if uint64(len(data)) != cfg.M {
		return nil, fmt.Errorf(
			"backing array has %d elements, config wants %d", len(data), cfg.M,
		)
	}

	pf, err := harness.PrefetcherByName(cfg.Prefetcher)
	if err != nil {
		return nil, err
	}

	return &Sweep{
		cfg:        cfg,
		data:       data,
		prefetcher: pf,
		logger:     logger,
	}, nil
}

// Run measures one payload and returns the baseline certificate. The first
// certificate mismatch aborts the sweep with a *MismatchError; series
// already recorded are left in the sink.
func (s *Sweep) Run(
	ctx context.Context,
	p payload.Payload,
	sink report.Sink,
) (int64, error) {
	logger := s.logger.With(slog.String("payload", p.Name))

	logger.InfoContext(ctx, "measuring baseline")

	baseline, err := s.measure(ctx, p, harness.NoBatch, 0, sink)
	if err != nil {
		return 0, err
	}

	for _, strategy := range harness.Batched() {
		logger.InfoContext(ctx, "measuring strategy",
			slog.String("strategy", strategy.String()),
			slog.Int("batch_sizes", len(s.cfg.BatchSizes)),
		)

		for _, bs := range s.cfg.BatchSizes {
			if err := ctx.Err(); err != nil {
				return 0, err
			}

			got, err := s.measure(ctx, p, strategy, bs, sink)
			if err != nil {
				return 0, err
			}

			if err := Validate(p.Name, strategy, bs, got, baseline); err != nil {
				return 0, err
			}
		}
	}

	logger.InfoContext(ctx, "payload complete",
		slog.Int64("certificate", baseline),
	)

	return baseline, nil
}

// measure runs every repetition of one (strategy, batch size) cell, records
// its timing series and returns the certificate summed over repetitions.
func (s *Sweep) measure(
	ctx context.Context,
	p payload.Payload,
	strategy harness.Strategy,
	batchSize int,
	sink report.Sink,
) (int64, error) {
	runner, err := harness.NewRunner(
		strategy, s.data, s.cfg.N, p.Fn, batchSize, s.prefetcher,
	)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", strategy, err)
	}

	times := make([]float64, s.cfg.Repetitions)

	var certificate int64
	for k := range times {
		res := runner.Run(uint64(k))
		certificate += res.Certificate
		times[k] = s.cfg.TimeUnit.Convert(res.Elapsed)
	}

	s.logger.DebugContext(ctx, "cell measured",
		slog.String("payload", p.Name),
		slog.String("strategy", strategy.String()),
		slog.Int("batch_size", batchSize),
		slog.Int64("certificate", certificate),
	)

	if err := sink.Record(strategy.String(), batchSize, times); err != nil {
		return 0, fmt.Errorf("record %s/%d: %w", strategy, batchSize, err)
	}

	return certificate, nil
}

// RunAll measures every payload in order with a fresh sink per payload and
// returns the sum of the baseline certificates.
func (s *Sweep) RunAll(
	ctx context.Context,
	payloads []payload.Payload,
	newSink func(payload.Payload) (report.Sink, error),
) (int64, error) {
	var total int64

	for _, p := range payloads {
		sink, err := newSink(p)
		if err != nil {
			return total, fmt.Errorf("open sink for %s: %w", p.Name, err)
		}

		certificate, err := s.Run(ctx, p, sink)

		if closeErr := sink.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close sink for %s: %w", p.Name, closeErr)
		}

		if err != nil {
			return total, err
		}

		total += certificate
	}

	return total, nil
}
