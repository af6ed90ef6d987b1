package gdm

import (
	"bufio"
	"context"
	"fmt"
)

// RegionRow is a region tagged with the sample it came from.
type RegionRow struct {
	Sample string
	Region
}

// RegionTable holds every region of a dataset in memory.
type RegionTable struct {
	// Fields describes Region.Values of every row.
	Fields []FieldSpec

	// Rows are ordered by sample, then by file position.
	Rows []RegionRow
}

// Len returns the number of regions.
func (t *RegionTable) Len() int {
	return len(t.Rows)
}

// Sample returns the regions of one sample.
func (t *RegionTable) Sample(name string) []Region {
	var out []Region
	for _, r := range t.Rows {
		if r.Sample == name {
			out = append(out, r.Region)
		}
	}
	return out
}

// Materialize reads the whole dataset in a canonical directory into memory.
// Region and metadata files may be plain, gzip or zstd encoded.
func Materialize(ctx context.Context, store Store, dir string, parser RegionParser) (*Materialized, error) {
	samples, _, err := DataFiles(ctx, store, dir)
	if err != nil {
		return nil, err
	}

	regions := &RegionTable{Fields: parser.Descriptor().Fields}
	meta := &MetaTable{Samples: make([]SampleMeta, 0, len(samples))}

	for _, s := range samples {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sm, err := readSampleMeta(ctx, store, s)
		if err != nil {
			return nil, err
		}
		meta.Samples = append(meta.Samples, sm)

		if err := readSampleRegions(ctx, store, s, parser, regions); err != nil {
			return nil, err
		}
	}

	return &Materialized{Regions: regions, Meta: meta}, nil
}

func readSampleRegions(ctx context.Context, store Store, s Sample, parser RegionParser, into *RegionTable) error {
	rc, err := openPayload(ctx, store, s.RegionPath)
	if err != nil {
		return fmt.Errorf("gdm: open regions %s: %w", s.RegionPath, err)
	}
	defer closer(rc)()

	sc := bufio.NewScanner(rc)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if line == "" {
			continue
		}
		region, err := parser.ParseRegion(line)
		if err != nil {
			return fmt.Errorf("gdm: %s line %d: %w", s.RegionPath, lineNo, err)
		}
		into.Rows = append(into.Rows, RegionRow{Sample: s.Name, Region: region})
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("gdm: read regions %s: %w", s.RegionPath, err)
	}
	return nil
}
