package testutil

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// SchemaXML is a native-layout schema with a name, a score and a flag
// after the chr, left, right and strand columns.
const SchemaXML = `<?xml version="1.0" encoding="UTF-8"?>
<gmqlSchemaCollection name="TEST_DS" xmlns="http://genomic.elet.polimi.it/entities">
  <gmqlSchema type="Peak" coordinate_system="0-based">
    <field type="STRING">name</field>
    <field type="DOUBLE">score</field>
    <field type="BOOLEAN">flag</field>
  </gmqlSchema>
</gmqlSchemaCollection>
`

// Files maps slash-separated relative paths to file contents.
type Files map[string][]byte

// Samples returns n well-paired samples named S_00000, S_00001, ... with two
// regions and two metadata lines each, plus schema.xml.
func Samples(n int) Files {
	files := Files{"schema.xml": []byte(SchemaXML)}
	for i := range n {
		name := fmt.Sprintf("S_%05d", i)
		files[name+".gdm"] = []byte(fmt.Sprintf(
			"chr1\t%d\t%d\t+\tpeak%d\t%d.5\ttrue\nchr2\t%d\t%d\t.\tNULL\t.\tfalse\n",
			i*100, i*100+50, i, i, i*100+10, i*100+90))
		files[name+".gdm.meta"] = []byte(fmt.Sprintf(
			"cell\tK562\nsample_id\t%d\n", i))
	}
	return files
}

// Under returns a copy of f with every path prefixed by dir.
func (f Files) Under(dir string) Files {
	out := make(Files, len(f))
	for p, data := range f {
		out[dir+"/"+p] = data
	}
	return out
}

// Write creates every file of f under root, creating parent directories.
func Write(t testing.TB, root string, f Files) {
	t.Helper()
	if err := f.WriteTo(root); err != nil {
		t.Fatal(err)
	}
}

// WriteTo creates every file of f under root, creating parent directories.
func (f Files) WriteTo(root string) error {
	for p, data := range f {
		full := filepath.Join(root, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", full, err)
		}
		if err := os.WriteFile(full, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", full, err)
		}
	}
	return nil
}

// Gzip compresses data with gzip.
func Gzip(t testing.TB, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

// Zstd compresses data with zstd.
func Zstd(t testing.TB, data []byte) []byte {
	t.Helper()
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatalf("zstd writer: %v", err)
	}
	defer func() { _ = enc.Close() }()
	return enc.EncodeAll(data, nil)
}
