// Package cli wires the session, query and rendering packages into the kp
// command line and its interactive shell.
package cli

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/danpilch/kpstk/pkg/trace"
)

// Config holds the settings shared by every command.
type Config struct {
	Files        []string
	Format       string
	InputFormat  string
	SkipPreamble bool
	Lines        int
	Depth        int
	Hints        bool
	NoBars       bool
	Timing       bool
	PprofAddr    string
	LogLevel     string
	LogFormat    string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Format:      "table",
		InputFormat: string(trace.FormatKP),
		Lines:       20,
		Depth:       1,
		LogLevel:    "warn",
		LogFormat:   "text",
	}
}

// PopulateFlagSet binds the persistent flags.
func (c *Config) PopulateFlagSet(fs *pflag.FlagSet) {
	fs.StringSliceVarP(&c.Files, "files", "f", c.Files, "trace files to open; the first two become the active pair")
	fs.StringVar(&c.Format, "format", c.Format, "output format: table, json or tsv")
	fs.StringVar(&c.InputFormat, "input-format", c.InputFormat, "trace format: kp or folded")
	fs.BoolVar(&c.SkipPreamble, "skip-preamble", c.SkipPreamble, "ignore everything before the first '!' line")
	fs.BoolVar(&c.Hints, "hints", c.Hints, "suggest follow-up queries under tables")
	fs.BoolVar(&c.NoBars, "no-bars", c.NoBars, "hide share bars")
	fs.BoolVar(&c.Timing, "timing", c.Timing, "print trace load timings on exit")
	fs.StringVar(&c.PprofAddr, "pprof-addr", c.PprofAddr, "serve kp's own pprof endpoints on this address")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: debug, info, warn or error")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "log format: text or json")
}

// TraceOptions derives the parser options.
func (c *Config) TraceOptions() (trace.Options, error) {
	opts := trace.DefaultOptions()
	switch f := trace.Format(c.InputFormat); f {
	case trace.FormatKP, trace.FormatFolded:
		opts.Format = f
	default:
		return opts, fmt.Errorf("unknown input format %q (want kp or folded)", c.InputFormat)
	}
	opts.SkipPreamble = c.SkipPreamble
	return opts, nil
}

// ConfigureLogger applies the log level and format to logger.
func (c *Config) ConfigureLogger(logger *logrus.Logger) error {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return err
	}
	logger.SetLevel(level)

	switch c.LogFormat {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02T15:04:05.000",
		})
	default:
		return fmt.Errorf("unknown log format %q (want text or json)", c.LogFormat)
	}
	return nil
}
