package gdm

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Attribute is one attribute/value line of a metadata file.
type Attribute struct {
	Name  string
	Value string
}

// SampleMeta holds the metadata of one sample in file order.
type SampleMeta struct {
	Sample     string
	Attributes []Attribute
}

// Values returns every value of attribute name, in file order.
func (s SampleMeta) Values(name string) []string {
	var out []string
	for _, a := range s.Attributes {
		if a.Name == name {
			out = append(out, a.Value)
		}
	}
	return out
}

// MetaTable is the metadata of a dataset, one entry per sample ordered by
// sample name.
type MetaTable struct {
	Samples []SampleMeta
}

// Get returns the metadata of sample.
func (t *MetaTable) Get(sample string) (SampleMeta, bool) {
	for _, s := range t.Samples {
		if s.Sample == sample {
			return s, true
		}
	}
	return SampleMeta{}, false
}

// Len returns the number of samples.
func (t *MetaTable) Len() int {
	return len(t.Samples)
}

// DecodeMeta reads a metadata file.
//
// Each non-blank line is an attribute name and a value separated by the
// first tab. A line without a tab is an attribute with an empty value.
func DecodeMeta(sample string, r io.Reader) (SampleMeta, error) {
	meta := SampleMeta{Sample: sample}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		name, value, _ := strings.Cut(line, "\t")
		meta.Attributes = append(meta.Attributes, Attribute{Name: name, Value: value})
	}
	if err := sc.Err(); err != nil {
		return SampleMeta{}, fmt.Errorf("gdm: metadata of %s: %w", sample, err)
	}
	return meta, nil
}

// maxLineSize bounds a single region or metadata line.
const maxLineSize = 16 << 20

func readSampleMeta(ctx context.Context, store Store, s Sample) (SampleMeta, error) {
	rc, err := openPayload(ctx, store, s.MetaPath)
	if err != nil {
		return SampleMeta{}, fmt.Errorf("gdm: open metadata %s: %w", s.MetaPath, err)
	}
	defer closer(rc)()
	return DecodeMeta(s.Name, rc)
}

// ReadMeta reads every metadata file of a canonical directory.
func ReadMeta(ctx context.Context, store Store, dir string) (*MetaTable, error) {
	samples, _, err := DataFiles(ctx, store, dir)
	if err != nil {
		return nil, err
	}
	table := &MetaTable{Samples: make([]SampleMeta, 0, len(samples))}
	for _, s := range samples {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		meta, err := readSampleMeta(ctx, store, s)
		if err != nil {
			return nil, err
		}
		table.Samples = append(table.Samples, meta)
	}
	return table, nil
}
