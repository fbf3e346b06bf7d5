package trace

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTrace = "work\nmain\n5\n!\n"

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func readOpened(t *testing.T, path string) string {
	t.Helper()
	rc, err := Open(path)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func TestOpenPlain(t *testing.T) {
	path := writeFile(t, "plain.kp", []byte(sampleTrace))
	assert.Equal(t, sampleTrace, readOpened(t, path))
}

func TestOpenGzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(sampleTrace))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	path := writeFile(t, "trace.kp.gz", buf.Bytes())
	assert.Equal(t, sampleTrace, readOpened(t, path))
}

func TestOpenZstd(t *testing.T) {
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	data := enc.EncodeAll([]byte(sampleTrace), nil)
	require.NoError(t, enc.Close())

	path := writeFile(t, "trace.kp.zst", data)
	assert.Equal(t, sampleTrace, readOpened(t, path))
}

func TestOpenEmptyFile(t *testing.T) {
	path := writeFile(t, "empty.kp", nil)
	assert.Equal(t, "", readOpened(t, path))
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.kp"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
