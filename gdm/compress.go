package gdm

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Payload compression magic numbers.
var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// Compression names a detected payload encoding.
type Compression string

// Detected payload encodings.
const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

// DetectCompression inspects the leading bytes of a payload.
func DetectCompression(head []byte) Compression {
	switch {
	case bytes.HasPrefix(head, zstdMagic):
		return CompressionZstd
	case bytes.HasPrefix(head, gzipMagic):
		return CompressionGzip
	default:
		return CompressionNone
	}
}

// openPayload opens p on store and transparently decodes a gzip or zstd
// payload. File names carry no compression suffix; detection uses the
// payload's magic bytes only.
func openPayload(ctx context.Context, store Store, p string) (io.ReadCloser, error) {
	rc, err := store.Get(ctx, p)
	if err != nil {
		return nil, err
	}

	br := bufio.NewReader(rc)
	head, err := br.Peek(len(zstdMagic))
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		_ = rc.Close()
		return nil, fmt.Errorf("gdm: read %s: %w: %w", p, ErrStorageUnavailable, err)
	}

	switch DetectCompression(head) {
	case CompressionGzip:
		gz, err := gzip.NewReader(br)
		if err != nil {
			_ = rc.Close()
			return nil, fmt.Errorf("gdm: gzip %s: %w", p, err)
		}
		return &decodedReader{Reader: gz, closers: []io.Closer{gz, rc}}, nil

	case CompressionZstd:
		decoder, err := zstd.NewReader(br)
		if err != nil {
			_ = rc.Close()
			return nil, fmt.Errorf("gdm: zstd %s: %w", p, err)
		}
		zr := decoder.IOReadCloser()
		return &decodedReader{Reader: zr, closers: []io.Closer{zr, rc}}, nil

	default:
		return &decodedReader{Reader: br, closers: []io.Closer{rc}}, nil
	}
}

// decodedReader reads through a decoder and closes the decoder before the
// underlying file.
type decodedReader struct {
	io.Reader
	closers []io.Closer
}

func (d *decodedReader) Close() error {
	var first error
	for _, c := range d.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
