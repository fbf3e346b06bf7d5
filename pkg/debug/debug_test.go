package debug

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimingReport(t *testing.T) {
	var buf bytes.Buffer
	TimingReport(&buf, []LoadTiming{
		{Path: "a.kp", Samples: 1200, Duration: 2 * time.Millisecond},
		{Path: "b.kp", Samples: 34, Duration: time.Millisecond},
	})

	out := buf.String()
	assert.Contains(t, out, "Trace Load Timing Report")
	assert.Contains(t, out, "a.kp")
	assert.Contains(t, out, "1,200")
	assert.Contains(t, out, "1,234")
	assert.Contains(t, out, "3ms")
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestStartPprofServer(t *testing.T) {
	addr := freeAddr(t)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	stop, err := StartPprofServer(addr, logger)
	require.NoError(t, err)
	defer stop()

	resp, err := http.Get(fmt.Sprintf("http://%s/debug/pprof/", addr))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStartPprofServerAddressInUse(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	_, err = StartPprofServer(l.Addr().String(), nil)
	assert.Error(t, err)
}
