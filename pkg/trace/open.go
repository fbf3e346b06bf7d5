package trace

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

type readCloser struct {
	io.Reader
	closers []func() error
}

func (rc *readCloser) Close() error {
	var first error
	for _, c := range rc.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Open opens a trace file, transparently decompressing gzip and zstd
// input.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	rc, err := decompress(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("cannot decompress %s: %w", path, err)
	}
	return rc, nil
}

func decompress(f io.ReadCloser) (io.ReadCloser, error) {
	br := bufio.NewReader(f)
	// Short files are fine: Peek returns what is available.
	magic, _ := br.Peek(len(zstdMagic))

	switch {
	case bytes.HasPrefix(magic, gzipMagic):
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, err
		}
		return &readCloser{Reader: zr, closers: []func() error{zr.Close, f.Close}}, nil

	case bytes.HasPrefix(magic, zstdMagic):
		zd, err := zstd.NewReader(br)
		if err != nil {
			return nil, err
		}
		closeDecoder := func() error {
			zd.Close()
			return nil
		}
		return &readCloser{Reader: zd, closers: []func() error{closeDecoder, f.Close}}, nil
	}

	return &readCloser{Reader: br, closers: []func() error{f.Close}}, nil
}
