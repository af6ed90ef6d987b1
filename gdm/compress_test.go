package gdm

import (
	"io"
	"testing"

	"github.com/justapithecus/gdm/internal/testutil"
)

func TestDetectCompression(t *testing.T) {
	tests := []struct {
		name string
		head []byte
		want Compression
	}{
		{"gzip", []byte{0x1f, 0x8b, 0x08, 0x00}, CompressionGzip},
		{"zstd", []byte{0x28, 0xb5, 0x2f, 0xfd}, CompressionZstd},
		{"plain", []byte("chr1"), CompressionNone},
		{"short", []byte{0x1f}, CompressionNone},
		{"empty", nil, CompressionNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectCompression(tt.head); got != tt.want {
				t.Errorf("DetectCompression = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOpenPayload(t *testing.T) {
	plain := []byte("chr1\t1\t2\t+\n")
	m := NewMemory()
	m.Put("/plain", plain)
	m.Put("/gzip", testutil.Gzip(t, plain))
	m.Put("/zstd", testutil.Zstd(t, plain))
	m.Put("/empty", nil)
	m.Put("/tiny", []byte("x"))

	for p, want := range map[string]string{
		"/plain": string(plain),
		"/gzip":  string(plain),
		"/zstd":  string(plain),
		"/empty": "",
		"/tiny":  "x",
	} {
		t.Run(p, func(t *testing.T) {
			rc, err := openPayload(t.Context(), m, p)
			if err != nil {
				t.Fatalf("openPayload failed: %v", err)
			}
			defer closer(rc)()

			got, err := io.ReadAll(rc)
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != want {
				t.Errorf("payload = %q, want %q", got, want)
			}
		})
	}
}

func TestOpenPayload_CorruptGzip(t *testing.T) {
	m := NewMemory()
	m.Put("/bad", []byte{0x1f, 0x8b, 0x00})
	if rc, err := openPayload(t.Context(), m, "/bad"); err == nil {
		_ = rc.Close()
		t.Error("expected error for truncated gzip header")
	}
}
