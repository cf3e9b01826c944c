package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/zoobzio/threadz"
	threadztesting "github.com/zoobzio/threadz/testing"
)

var (
	benchTime time.Duration

	benchmarkCmd = &cobra.Command{
		Use:     "benchmark",
		Aliases: []string{"bench"},
		Short:   "Run performance benchmarks",
		Long: `Run in-process benchmarks of the thread handle.

Measures binding a callable, a start/join cycle on a dedicated OS
thread, and the same cycle on plain goroutines for comparison. The
configured thread attributes apply to the native cycle.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBenchmarks(cmd.OutOrStdout(), benchTime)
		},
	}
)

func init() {
	benchmarkCmd.Flags().DurationVar(&benchTime, "time", time.Second, "Benchmark duration per case")
}

type benchCase struct {
	name string
	fn   func(b *testing.B)
}

func benchCases(c demoConfig) []benchCase {
	fn := func(a, b int) int { return a + b }
	return []benchCase{
		{"bind", func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := threadz.Bind(fn, 1, 2); err != nil {
					b.Fatal(err)
				}
			}
		}},
		{"start-join/native", func(b *testing.B) {
			th := threadz.New()
			defer th.Close()
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				th.SetAttr(c.attr())
				if err := th.Start(fn, 1, 2); err != nil {
					b.Fatal(err)
				}
				if err := th.Join(); err != nil {
					b.Fatal(err)
				}
			}
		}},
		{"start-join/goroutine", func(b *testing.B) {
			platform := threadztesting.NewMockPlatform(nil).WithHistorySize(0)
			th := threadz.New(threadz.WithPlatform(platform))
			defer th.Close()
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if err := th.Launch(threadz.InvocationFunc(func(context.Context) error { return nil })); err != nil {
					b.Fatal(err)
				}
				if err := th.Join(); err != nil {
					b.Fatal(err)
				}
			}
		}},
	}
}

func runBenchmarks(out io.Writer, d time.Duration) error {
	// testing.Benchmark reads the -test.benchtime flag.
	testing.Init()
	if err := flag.Set("test.benchtime", d.String()); err != nil {
		return err
	}

	fmt.Fprintln(out, colorCyan+"=== THREADZ BENCHMARKS ==="+colorReset)
	for _, bc := range benchCases(cfg) {
		logger.Debug().Str("case", bc.name).Dur("benchtime", d).Msg("running benchmark")
		res := testing.Benchmark(bc.fn)
		if res.N == 0 {
			return fmt.Errorf("benchmark %s failed", bc.name)
		}
		fmt.Fprintf(out, "%-22s %s %s\n", bc.name, res.String(), res.MemString())
	}
	fmt.Fprintln(out, colorGreen+"Benchmark completed"+colorReset)
	return nil
}
