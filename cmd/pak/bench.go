package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/meigma/pak"
)

var errNoAssets = errors.New("no assets to read")

type benchOptions struct {
	globs      []string
	reads      int
	duration   time.Duration
	random     bool
	seed       uint64
	cpuProfile string
	memProfile string
	traceFile  string
}

type benchStats struct {
	reads   int
	bytes   int64
	elapsed time.Duration
}

var benchCmd = &cobra.Command{
	Use:   "bench <source>",
	Short: "Measure asset read throughput",
	Long:  "Read assets from a source repeatedly and report throughput, optionally writing CPU, heap, and execution trace profiles.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := loadBenchOptions(cmd)
		if err != nil {
			return err
		}
		src, err := openSource(cmd, args[0])
		if err != nil {
			return err
		}
		defer src.Close()

		stop, err := startProfiles(opts)
		if err != nil {
			return err
		}
		stats, runErr := runBench(cmd.Context(), src, opts)
		if err := errors.Join(runErr, stop()); err != nil {
			return err
		}
		if err := writeHeapProfile(opts.memProfile); err != nil {
			return err
		}
		printBench(cmd.OutOrStdout(), stats)
		return nil
	},
}

func init() {
	benchCmd.Flags().StringSlice("glob", nil, "Only read assets matching these patterns")
	benchCmd.Flags().Int("reads", 1000, "Number of reads (ignored when --duration is set)")
	benchCmd.Flags().Duration("duration", 0, "Read for this long instead of a fixed count")
	benchCmd.Flags().Bool("random", false, "Pick assets at random instead of in order")
	benchCmd.Flags().Uint64("seed", 1, "Seed for --random")
	benchCmd.Flags().String("cpu-profile", "", "Write a CPU profile to this file")
	benchCmd.Flags().String("mem-profile", "", "Write a heap profile to this file")
	benchCmd.Flags().String("trace", "", "Write an execution trace to this file")
	rootCmd.AddCommand(benchCmd)
}

func loadBenchOptions(cmd *cobra.Command) (benchOptions, error) {
	var opts benchOptions
	flags := cmd.Flags()
	var err error
	if opts.globs, err = flags.GetStringSlice("glob"); err != nil {
		return opts, err
	}
	if opts.reads, err = flags.GetInt("reads"); err != nil {
		return opts, err
	}
	if opts.duration, err = flags.GetDuration("duration"); err != nil {
		return opts, err
	}
	if opts.random, err = flags.GetBool("random"); err != nil {
		return opts, err
	}
	if opts.seed, err = flags.GetUint64("seed"); err != nil {
		return opts, err
	}
	if opts.cpuProfile, err = flags.GetString("cpu-profile"); err != nil {
		return opts, err
	}
	if opts.memProfile, err = flags.GetString("mem-profile"); err != nil {
		return opts, err
	}
	if opts.traceFile, err = flags.GetString("trace"); err != nil {
		return opts, err
	}
	return opts, nil
}

// runBench reads assets until the read count or the duration is reached.
func runBench(ctx context.Context, src pak.Source, opts benchOptions) (benchStats, error) {
	paths, err := pak.SelectPaths(src, opts.globs...)
	if err != nil {
		return benchStats{}, err
	}
	if len(paths) == 0 {
		return benchStats{}, errNoAssets
	}

	rng := rand.New(rand.NewPCG(opts.seed, opts.seed)) //nolint:gosec // reproducible benchmark order
	var stats benchStats
	start := time.Now()
	for i := 0; ; i++ {
		if opts.duration > 0 {
			if time.Since(start) >= opts.duration {
				break
			}
		} else if i >= opts.reads {
			break
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		p := paths[i%len(paths)]
		if opts.random {
			p = paths[rng.IntN(len(paths))]
		}
		data, err := src.Read(p)
		if err != nil {
			return stats, err
		}
		stats.reads++
		stats.bytes += int64(len(data))
	}
	stats.elapsed = time.Since(start)
	return stats, nil
}

// startProfiles starts the CPU profile and execution trace selected by
// opts. The returned function stops them and closes their files.
func startProfiles(opts benchOptions) (func() error, error) {
	var stops []func() error
	stopAll := func() error {
		var errs []error
		for i := len(stops) - 1; i >= 0; i-- {
			errs = append(errs, stops[i]())
		}
		return errors.Join(errs...)
	}

	if opts.cpuProfile != "" {
		f, err := os.Create(opts.cpuProfile)
		if err != nil {
			return nil, err
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			return nil, errors.Join(err, f.Close())
		}
		stops = append(stops, func() error {
			pprof.StopCPUProfile()
			return f.Close()
		})
	}

	if opts.traceFile != "" {
		f, err := os.Create(opts.traceFile)
		if err != nil {
			return nil, errors.Join(err, stopAll())
		}
		if err := trace.Start(f); err != nil {
			return nil, errors.Join(err, f.Close(), stopAll())
		}
		stops = append(stops, func() error {
			trace.Stop()
			return f.Close()
		})
	}
	return stopAll, nil
}

func writeHeapProfile(path string) error {
	if path == "" {
		return nil
	}
	runtime.GC()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := pprof.WriteHeapProfile(f); err != nil {
		return errors.Join(err, f.Close())
	}
	return f.Close()
}

func printBench(w io.Writer, stats benchStats) {
	perSecond := 0.0
	if secs := stats.elapsed.Seconds(); secs > 0 {
		perSecond = float64(stats.bytes) / secs
	}
	fmt.Fprintf(w, "reads=%d bytes=%s elapsed=%s throughput=%s/s\n",
		stats.reads,
		humanize.IBytes(uint64(stats.bytes)), //nolint:gosec // byte counts are non-negative
		stats.elapsed.Round(time.Microsecond),
		humanize.IBytes(uint64(perSecond)),
	)
}
