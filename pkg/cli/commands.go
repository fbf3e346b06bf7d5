package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/danpilch/kpstk/pkg/benchmark"
	"github.com/danpilch/kpstk/pkg/export"
	"github.com/danpilch/kpstk/pkg/flamegraph"
	"github.com/danpilch/kpstk/pkg/query"
	"github.com/danpilch/kpstk/pkg/session"
)

// RootCommand builds the kp command tree. Without a subcommand kp starts
// the interactive shell.
func (a *App) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "kp [flags] <command>",
		Short: "Analyze sampled call-stack traces",
		Long: `kp aggregates sampled call-stack traces and ranks functions by inclusive
and exclusive weight. With two active traces every ranking shows the change
in share between them, in percentage points.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.prepare,
		Args:              cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runShell(cmd)
		},
	}
	a.cfg.PopulateFlagSet(root.PersistentFlags())

	root.AddCommand(a.commands()...)
	root.AddCommand(&cobra.Command{
		Use:   "shell",
		Short: "Start the interactive shell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runShell(cmd)
		},
	})
	return root
}

// commands returns the commands shared by the command line and the shell.
func (a *App) commands() []*cobra.Command {
	return []*cobra.Command{
		a.rankCmd("in", "Rank functions by inclusive weight", func(n int) (*query.Result, error) {
			return a.session.Inclusive(n)
		}),
		a.rankCmd("ex", "Rank functions by exclusive weight", func(n int) (*query.Result, error) {
			return a.session.Exclusive(n)
		}),
		a.rankCmd("ina", "List inclusive and exclusive weight, by inclusive", func(n int) (*query.Result, error) {
			return a.session.Combined(query.OrderInclusive, n)
		}),
		a.rankCmd("exa", "List inclusive and exclusive weight, by exclusive", func(n int) (*query.Result, error) {
			return a.session.Combined(query.OrderExclusive, n)
		}),
		a.callerCmd(),
		a.functionCmd("callee", "Rank the functions FUNCTION calls", func(fn string, n int) (*query.Result, error) {
			return a.session.Callees(fn, n)
		}),
		a.functionCmd("func", "Rank the hottest instructions in FUNCTION", func(fn string, n int) (*query.Result, error) {
			return a.session.Instructions(fn, n)
		}),
		a.lsCmd(),
		a.flamegraphCmd(),
		a.foldCmd(),
		a.pprofCmd(),
		a.benchCmd(),
	}
}

func (a *App) linesFlag(cmd *cobra.Command, n *int) {
	cmd.Flags().IntVarP(n, "lines", "n", a.cfg.Lines, "number of rows to show, 0 for all")
}

func (a *App) render(cmd *cobra.Command, res *query.Result, err error) error {
	if err != nil {
		return err
	}
	return a.formatter(cmd.OutOrStdout()).Render(res)
}

func (a *App) rankCmd(use, short string, run func(n int) (*query.Result, error)) *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := run(n)
			return a.render(cmd, res, err)
		},
	}
	a.linesFlag(cmd, &n)
	return cmd
}

func (a *App) functionCmd(use, short string, run func(fn string, n int) (*query.Result, error)) *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   use + " FUNCTION",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := run(args[0], n)
			return a.render(cmd, res, err)
		},
	}
	a.linesFlag(cmd, &n)
	return cmd
}

func (a *App) callerCmd() *cobra.Command {
	var n, depth int
	cmd := &cobra.Command{
		Use:   "caller FUNCTION",
		Short: "Rank the call paths leading to FUNCTION",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.session.Callers(args[0], depth, n)
			return a.render(cmd, res, err)
		},
	}
	a.linesFlag(cmd, &n)
	cmd.Flags().IntVarP(&depth, "depth", "s", a.cfg.Depth, "number of calling frames per path")
	return cmd
}

func (a *App) lsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List opened traces; * marks the active ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.listFiles(cmd)
		},
	}
}

// target resolves an optional trace reference, defaulting to the first
// active trace.
func (a *App) target(args []string) (*session.Entry, error) {
	if len(args) > 0 {
		return a.session.Resolve(args[0])
	}
	active := a.session.Active()
	if len(active) == 0 {
		return nil, session.ErrNoActive
	}
	return active[0], nil
}

// create opens path for writing; "-" is the command's output.
func create(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func (a *App) writeTo(cmd *cobra.Command, path string, write func(io.Writer) error) error {
	w, closeFn, err := create(cmd, path)
	if err != nil {
		return err
	}
	if err := write(w); err != nil {
		closeFn()
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	if err := closeFn(); err != nil {
		return err
	}
	if path != "-" {
		a.logger.WithField("path", path).Info("Wrote output")
	}
	return nil
}

func (a *App) flamegraphCmd() *cobra.Command {
	var out string
	opts := flamegraph.DefaultSVGOptions()
	cmd := &cobra.Command{
		Use:   "flamegraph [FILE]",
		Short: "Render a trace as an SVG flame graph",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.target(args)
			if err != nil {
				return err
			}
			return a.writeTo(cmd, out, func(w io.Writer) error {
				return flamegraph.GenerateSVG(e.Profile, w, opts)
			})
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "flamegraph.svg", "output file, - for stdout")
	cmd.Flags().StringVar(&opts.Title, "title", opts.Title, "graph title")
	cmd.Flags().IntVar(&opts.Width, "width", opts.Width, "image width in pixels")
	cmd.Flags().StringVar(&opts.ColorScheme, "colors", opts.ColorScheme, "color scheme: hot, cold or mem")
	return cmd
}

func (a *App) foldCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "fold [FILE]",
		Short: "Write a trace as folded stacks",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.target(args)
			if err != nil {
				return err
			}
			return a.writeTo(cmd, out, func(w io.Writer) error {
				return flamegraph.WriteFolded(w, e.Profile)
			})
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "-", "output file, - for stdout")
	return cmd
}

func (a *App) pprofCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "pprof [FILE]",
		Short: "Convert a trace to a gzipped pprof profile",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.target(args)
			if err != nil {
				return err
			}
			return a.writeTo(cmd, out, func(w io.Writer) error {
				return export.WritePprof(w, e.Profile)
			})
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "profile.pb.gz", "output file, - for stdout")
	return cmd
}

func (a *App) benchCmd() *cobra.Command {
	opts := benchmark.DefaultOptions()
	cmd := &cobra.Command{
		Use:   "bench [PATH...]",
		Short: "Measure how long traces take to load; defaults to the opened ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := args
			if len(paths) == 0 {
				for _, e := range a.session.Entries() {
					paths = append(paths, e.Path)
				}
			}
			if len(paths) == 0 {
				return session.ErrNoActive
			}
			traceOpts, err := a.cfg.TraceOptions()
			if err != nil {
				return err
			}
			opts.Trace = traceOpts
			results, overhead, err := benchmark.Run(cmd.Context(), paths, opts, a.logger)
			if err != nil {
				return err
			}
			benchmark.RenderResults(cmd.OutOrStdout(), results, overhead)
			return nil
		},
	}
	cmd.Flags().IntVarP(&opts.Iterations, "iterations", "i", opts.Iterations, "timed loads per trace")
	cmd.Flags().IntVar(&opts.Warmup, "warmup", opts.Warmup, "untimed loads per trace")
	return cmd
}
