package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
)

var (
	demoAll bool

	demoCmd = &cobra.Command{
		Use:   "demo [example]",
		Short: "Run demonstrations",
		Long: `Run demonstrations of threadz examples.

When run with an example name, runs that specific demo.
With --all, runs every demo in order.

Available examples:
  quickstart  Free functions with value and reference arguments
  members     Methods on a shared object, by value and by name
  alltypes    Free functions and methods with 0 to 10 arguments
  cancel      Cooperative cancellation of a running thread
  detach      Detached threads and the errors that follow
  chaos       Creation failures retried with exponential backoff`,
		Args: cobra.MaximumNArgs(1),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			if len(args) != 0 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}

			var completions []string
			for _, ex := range getAllExamples() {
				if strings.HasPrefix(ex.Name(), toComplete) {
					completions = append(completions, ex.Name())
				}
			}
			return completions, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			example := ""
			if len(args) > 0 {
				example = args[0]
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			env := &Env{Out: cmd.OutOrStdout(), Log: logger, Config: cfg}
			return runDemo(ctx, env, example, demoAll)
		},
	}
)

func init() {
	demoCmd.Flags().BoolVar(&demoAll, "all", false, "Run all demos sequentially")
}

// ANSI color codes
const (
	colorReset = "\033[0m"
	colorGreen = "\033[32m"
	colorCyan  = "\033[36m"
)

// runDemo runs a demo based on the example name
func runDemo(ctx context.Context, env *Env, example string, all bool) error {
	if all && example != "" {
		return fmt.Errorf("cannot specify example with --all")
	}

	var examples []Example
	switch {
	case all:
		examples = getAllExamples()
	case example == "":
		return fmt.Errorf("no example given\n\nRun 'threadz list' to see available examples")
	default:
		ex, ok := getExampleByName(example)
		if !ok {
			return fmt.Errorf("unknown example: %s\n\nRun 'threadz list' to see available examples", example)
		}
		examples = []Example{ex}
	}

	for _, ex := range examples {
		for i := 0; i < env.Config.Repeat; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			banner(env.Out, ex.Name())
			env.Log.Debug().Str("example", ex.Name()).Int("run", i+1).Msg("running demo")
			if err := ex.Demo(ctx, env); err != nil {
				env.Log.Error().Err(err).Str("example", ex.Name()).Msg("demo failed")
				return fmt.Errorf("%s: %w", ex.Name(), err)
			}
			fmt.Fprintln(env.Out, colorGreen+"=== End ==="+colorReset)
		}
	}
	return nil
}

func banner(w io.Writer, name string) {
	fmt.Fprintf(w, colorCyan+"=== %s ==="+colorReset+"\n", strings.ToUpper(name))
}
