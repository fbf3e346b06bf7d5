package cli

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/danpilch/kpstk/pkg/debug"
	"github.com/danpilch/kpstk/pkg/output"
	"github.com/danpilch/kpstk/pkg/session"
)

// App is one kp invocation: its configuration, the session and the
// streams commands read from and write to.
type App struct {
	cfg    Config
	logger *logrus.Logger

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	session   *session.Session
	format    output.Format
	prepared  bool
	stopPprof func()
}

// NewApp creates an App with the default configuration.
func NewApp(in io.Reader, out, errOut io.Writer) *App {
	logger := logrus.New()
	logger.SetOutput(errOut)
	logger.SetLevel(logrus.WarnLevel)
	return &App{
		cfg:    DefaultConfig(),
		logger: logger,
		in:     in,
		out:    out,
		errOut: errOut,
	}
}

// Execute runs kp with args.
func Execute(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) error {
	app := NewApp(in, out, errOut)
	defer app.Close()

	root := app.RootCommand()
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)
	return root.ExecuteContext(ctx)
}

// prepare applies the configuration and opens the requested traces. It
// runs once per App; shell lines reuse the prepared session.
func (a *App) prepare(cmd *cobra.Command, _ []string) error {
	if a.prepared {
		return nil
	}
	if err := a.cfg.ConfigureLogger(a.logger); err != nil {
		return err
	}
	format, err := output.ParseFormat(a.cfg.Format)
	if err != nil {
		return err
	}
	a.format = format

	traceOpts, err := a.cfg.TraceOptions()
	if err != nil {
		return err
	}
	opts := session.DefaultOptions()
	opts.Trace = traceOpts
	a.session = session.New(opts, a.logger)

	if a.cfg.PprofAddr != "" {
		stop, err := debug.StartPprofServer(a.cfg.PprofAddr, a.logger)
		if err != nil {
			return err
		}
		a.stopPprof = stop
	}
	a.prepared = true

	if len(a.cfg.Files) > 0 {
		// Unreadable files are logged and skipped; the rest stay usable.
		if err := a.session.Open(cmd.Context(), a.cfg.Files...); err != nil {
			a.logger.WithError(err).Debug("Some traces were not opened")
		}
	}
	return nil
}

// Close prints the timing report if requested and stops the pprof server.
func (a *App) Close() {
	if a.cfg.Timing && a.session != nil {
		debug.TimingReport(a.errOut, debug.Timings(a.session.Entries()))
	}
	if a.stopPprof != nil {
		a.stopPprof()
		a.stopPprof = nil
	}
}

func (a *App) formatter(w io.Writer) *output.Formatter {
	f := output.NewFormatter(a.format, w)
	f.SetShowBars(!a.cfg.NoBars)
	f.SetShowHints(a.cfg.Hints)
	return f
}
