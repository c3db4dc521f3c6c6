// Package main provides the CLI entry point for membatch, an experiment
// harness measuring how batching and software prefetch change the cost of
// random access into a large array under varying per-element payloads.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/weiihann/membatch/payload"
	"github.com/weiihann/membatch/sweep"
)

const (
	exitFailure  = 1
	exitMismatch = 2
)

func main() {
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)

	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	}))

	root := newRootCmd(logger, level)
	if err := root.Execute(); err != nil {
		os.Exit(exitCode(logger, err))
	}
}

func exitCode(logger *slog.Logger, err error) int {
	var mismatch *sweep.MismatchError
	if errors.As(err, &mismatch) {
		logger.Error("certificate mismatch",
			slog.String("strategy", mismatch.Strategy.String()),
			slog.String("payload", mismatch.Payload),
			slog.Int("batch_size", mismatch.BatchSize),
			slog.Int64("got", mismatch.Got),
			slog.Int64("want", mismatch.Want),
		)
		fmt.Fprintln(os.Stderr, mismatch.Error())

		return exitMismatch
	}

	logger.Error("run failed", slog.String("error", err.Error()))

	return exitFailure
}

func newRootCmd(logger *slog.Logger, level *slog.LevelVar) *cobra.Command {
	root := &cobra.Command{
		Use:   "membatch",
		Short: "Measure batched and prefetched random memory access",
		Long: `Membatch issues N pseudorandom reads into an M-element array and
times four schedules of the same traffic: one access at a time, batches of
loads, batches with the next batch prefetched, and precomputed locations with
prefetch. Every schedule must produce the same certificate as the baseline.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCmd(logger, level))
	root.AddCommand(newPayloadsCmd())

	return root
}

func newPayloadsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "payloads",
		Short: "List the default payloads in sweep order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			names := make([]string, 0, len(payload.Default()))
			for _, p := range payload.Default() {
				names = append(names, p.Name)
			}

			_, err := fmt.Fprintln(cmd.OutOrStdout(), strings.Join(names, "\n"))

			return err
		},
	}
}
