// Package debug provides instrumentation and profiling tools for kp itself.
package debug

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof"
	"time"

	"github.com/sirupsen/logrus"
)

// StartPprofServer serves net/http/pprof on addr. The listener is bound
// before returning, so an unusable address fails here. The returned stop
// function shuts the server down.
func StartPprofServer(addr string, logger *logrus.Logger) (func(), error) {
	if addr == "" {
		addr = "localhost:6060"
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("pprof server failed: %w", err)
	}
	server := &http.Server{
		Handler:           http.DefaultServeMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.WithField("addr", ln.Addr().String()).Info("Serving pprof")
	go func() {
		if err := server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("pprof server stopped")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.WithError(err).Warn("pprof server shutdown")
		}
	}, nil
}
