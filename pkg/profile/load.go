package profile

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/danpilch/kpstk/pkg/trace"
)

// Load opens, parses and aggregates the trace at path.
func Load(ctx context.Context, path string, opts trace.Options, logger *logrus.Logger) (*Profile, error) {
	rc, err := trace.Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return Read(ctx, path, rc, opts, logger)
}

// Read parses and aggregates a trace stream.
func Read(ctx context.Context, name string, r io.Reader, opts trace.Options, logger *logrus.Logger) (*Profile, error) {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}

	start := time.Now()
	tr := trace.NewReader(r, opts)
	p, err := Aggregate(ctx, name, tr.All())
	if err != nil {
		return nil, err
	}
	if err := tr.Err(); err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", name, err)
	}
	p.dropped = tr.Dropped()

	logger.WithFields(logrus.Fields{
		"trace":     name,
		"samples":   p.samples,
		"total":     p.total,
		"stacks":    len(p.stacks),
		"functions": len(p.inclusive),
		"dropped":   p.dropped,
		"elapsed":   time.Since(start),
	}).Debug("Aggregated trace")

	if p.dropped > 0 {
		logger.WithFields(logrus.Fields{
			"trace":   name,
			"dropped": p.dropped,
		}).Info("Skipped malformed blocks")
	}
	return p, nil
}
