package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/weiihann/membatch/backing"
	"github.com/weiihann/membatch/host"
	"github.com/weiihann/membatch/payload"
	"github.com/weiihann/membatch/report"
	"github.com/weiihann/membatch/sweep"
	"github.com/weiihann/membatch/traffic"
)

type runConfig struct {
	sweep      sweep.Config
	payloads   []string
	seed       int64
	outputDir  string
	notes      string
	sqlitePath string
	cpu        int
	skipMemory bool
}

func newRunCmd(logger *slog.Logger, level *slog.LevelVar) *cobra.Command {
	v := viper.New()

	var cfgFile string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the batching sweep over every payload",
		Long: `Allocate and populate the backing array, then for every payload time
the unbatched baseline once and each batched strategy at every batch size,
writing one result file per payload.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadConfig(v, cmd, cfgFile); err != nil {
				return err
			}

			if v.GetBool("verbose") {
				level.Set(slog.LevelDebug)
			}

			cfg, err := resolveConfig(v)
			if err != nil {
				return err
			}

			return runSweep(cmd.Context(), logger, cfg)
		},
	}

	def := sweep.DefaultConfig()

	flags := cmd.Flags()
	flags.StringVar(&cfgFile, "config", "",
		"Config file (default: ./membatch.yaml if present)")
	flags.Uint64("m", def.M,
		"Backing array size in elements")
	flags.Uint64("n", def.N,
		"Accesses per repetition")
	flags.Int("reps", def.Repetitions,
		"Repetitions per (strategy, batch size)")
	flags.Int("batch-min", 2, "Smallest batch size")
	flags.Int("batch-max", 80, "Largest batch size")
	flags.Int("batch-step", 2, "Batch size increment")
	flags.StringSlice("payloads", nil,
		"Payloads to measure (default: all, see 'membatch payloads')")
	flags.String("time-unit", string(def.TimeUnit),
		"Timing unit: nanoseconds, microseconds, milliseconds")
	flags.String("prefetch", def.Prefetcher,
		"Prefetch hint implementation: touch, none")
	flags.Int64("seed", 0,
		"Seed for populating the backing array (0 = use current time)")
	flags.String("output-dir", "results",
		"Directory for per-payload result files")
	flags.String("notes", "",
		"Free-form notes for result file names (default: host description)")
	flags.String("sqlite", "",
		"Also record samples into this SQLite database")
	flags.Int("cpu", -1,
		"Pin the measuring thread to this CPU (-1 = no affinity)")
	flags.Bool("skip-memory-check", false,
		"Do not check available memory before allocating")
	flags.BoolP("verbose", "v", false, "Enable debug logging")

	return cmd
}

// loadConfig layers flags over environment (MEMBATCH_*) over the optional
// config file over defaults.
func loadConfig(v *viper.Viper, cmd *cobra.Command, cfgFile string) error {
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}

	v.SetEnvPrefix("MEMBATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("membatch")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	return nil
}

func resolveConfig(v *viper.Viper) (runConfig, error) {
	unit, err := report.ParseTimeUnit(v.GetString("time-unit"))
	if err != nil {
		return runConfig{}, err
	}

	cfg := runConfig{
		sweep: sweep.Config{
			M:           v.GetUint64("m"),
			N:           v.GetUint64("n"),
			Repetitions: v.GetInt("reps"),
			BatchSizes: sweep.BatchSizes(
				v.GetInt("batch-min"),
				v.GetInt("batch-max"),
				v.GetInt("batch-step"),
			),
			TimeUnit:   unit,
			Prefetcher: v.GetString("prefetch"),
		},
		payloads:   v.GetStringSlice("payloads"),
		seed:       v.GetInt64("seed"),
		outputDir:  v.GetString("output-dir"),
		notes:      v.GetString("notes"),
		sqlitePath: v.GetString("sqlite"),
		cpu:        v.GetInt("cpu"),
		skipMemory: v.GetBool("skip-memory-check"),
	}

	if err := cfg.sweep.Validate(); err != nil {
		return runConfig{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func runSweep(ctx context.Context, logger *slog.Logger, cfg runConfig) error {
	payloads, err := payload.Select(cfg.payloads)
	if err != nil {
		return err
	}

	size := cfg.sweep.M * backing.ElementBytes

	if !cfg.skipMemory {
		if err := host.CheckMemory(ctx, size); err != nil {
			return err
		}
	}

	seed := cfg.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	logger.InfoContext(ctx, "generating data",
		slog.String("size", report.FormatBytes(size)),
		slog.Uint64("elements", cfg.sweep.M),
		slog.Int64("seed", seed),
	)

	arr, err := backing.Allocate(cfg.sweep.M)
	if err != nil {
		return fmt.Errorf("allocate backing array: %w", err)
	}
	defer arr.Close()

	arr.Populate(seed)

	notes := cfg.notes
	if notes == "" {
		notes = host.Notes(ctx)
	}

	var store *report.SQLiteStore
	if cfg.sqlitePath != "" {
		store, err = report.OpenSQLite(ctx, cfg.sqlitePath)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	s, err := sweep.New(cfg.sweep, arr.Data, logger)
	if err != nil {
		return err
	}

	if err := host.PinCPU(cfg.cpu); err != nil {
		return err
	}
	defer host.UnpinCPU()

	logger.InfoContext(ctx, "measuring",
		slog.Uint64("m", cfg.sweep.M),
		slog.Uint64("n", cfg.sweep.N),
		slog.Int("reps", cfg.sweep.Repetitions),
		slog.Any("batch_sizes", cfg.sweep.BatchSizes),
		slog.Int("payloads", len(payloads)),
		slog.Bool("aligned", arr.Aligned),
		slog.String("notes", notes),
	)

	newSink := func(p payload.Payload) (report.Sink, error) {
		meta := report.Meta{
			Payload:      p.Name,
			HashFunction: traffic.HashName,
			M:            cfg.sweep.M,
			N:            cfg.sweep.N,
			Repetitions:  cfg.sweep.Repetitions,
			ElementBytes: backing.ElementBytes,
			Aligned:      arr.Aligned,
			TimeUnit:     cfg.sweep.TimeUnit,
			Notes:        notes,
		}

		text, err := report.NewTextSink(cfg.outputDir, meta, os.Stdout)
		if err != nil {
			return nil, err
		}

		if store == nil {
			return text, nil
		}

		db, err := store.Sink(ctx, meta)
		if err != nil {
			text.Close()

			return nil, err
		}

		return report.Multi(text, db), nil
	}

	total, err := s.RunAll(ctx, payloads, newSink)
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "sweep complete",
		slog.Int64("certificate", total),
		slog.String("output_dir", cfg.outputDir),
	)

	return nil
}
