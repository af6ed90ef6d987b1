package gdm

import (
	"fmt"
	"strconv"
	"strings"
)

// Region is one decoded line of a region file.
type Region struct {
	Chr    string
	Start  int64
	Stop   int64
	Strand string

	// Values holds the non-coordinate fields in descriptor order.
	// Null markers decode to nil.
	Values []any
}

// unknownStrand is used when a region carries no strand information.
const unknownStrand = "*"

// delimitedParser decodes delimiter-separated region lines.
type delimitedParser struct {
	desc  ParserDescriptor
	width int
}

// NewDelimitedParser creates a RegionParser for desc.
//
// Coordinates are parsed as integers. Other fields are converted by their
// declared type; "", ".", "null" and "NULL" decode to nil.
func NewDelimitedParser(desc ParserDescriptor) (RegionParser, error) {
	if desc.Delimiter == "" {
		desc.Delimiter = "\t"
	}

	seen := make(map[int]bool)
	width := 0
	claim := func(what string, pos int) error {
		if pos < 0 {
			return fmt.Errorf("%w: %s column is not set", ErrInvalidSchema, what)
		}
		if seen[pos] {
			return fmt.Errorf("%w: column %d used twice", ErrInvalidSchema, pos)
		}
		seen[pos] = true
		width = max(width, pos+1)
		return nil
	}

	if err := claim("chr", desc.ChrPos); err != nil {
		return nil, err
	}
	if err := claim("start", desc.StartPos); err != nil {
		return nil, err
	}
	if err := claim("stop", desc.StopPos); err != nil {
		return nil, err
	}
	if desc.StrandPos >= 0 {
		if err := claim("strand", desc.StrandPos); err != nil {
			return nil, err
		}
	}
	for _, f := range desc.Fields {
		if err := claim(f.Name, f.Pos); err != nil {
			return nil, err
		}
	}

	return &delimitedParser{desc: desc, width: width}, nil
}

func (p *delimitedParser) Descriptor() ParserDescriptor {
	return p.desc
}

func (p *delimitedParser) ParseRegion(line string) (Region, error) {
	cols := strings.Split(strings.TrimRight(line, "\r\n"), p.desc.Delimiter)
	if len(cols) < p.width {
		return Region{}, fmt.Errorf("gdm: region line has %d columns, want %d", len(cols), p.width)
	}

	start, err := strconv.ParseInt(cols[p.desc.StartPos], 10, 64)
	if err != nil {
		return Region{}, fmt.Errorf("gdm: region start: %w", err)
	}
	stop, err := strconv.ParseInt(cols[p.desc.StopPos], 10, 64)
	if err != nil {
		return Region{}, fmt.Errorf("gdm: region stop: %w", err)
	}

	region := Region{
		Chr:    cols[p.desc.ChrPos],
		Start:  start,
		Stop:   stop,
		Strand: unknownStrand,
		Values: make([]any, len(p.desc.Fields)),
	}
	if p.desc.StrandPos >= 0 {
		if s := cols[p.desc.StrandPos]; s != "" && s != "." {
			region.Strand = s
		}
	}

	for i, f := range p.desc.Fields {
		v, err := convertField(cols[f.Pos], f.Type)
		if err != nil {
			return Region{}, fmt.Errorf("gdm: region field %q: %w", f.Name, err)
		}
		region.Values[i] = v
	}
	return region, nil
}

func convertField(raw string, typ FieldType) (any, error) {
	switch raw {
	case "", ".", "null", "NULL":
		return nil, nil
	}
	switch typ {
	case FieldString:
		return raw, nil
	case FieldInt:
		return strconv.ParseInt(raw, 10, 64)
	case FieldFloat:
		return strconv.ParseFloat(raw, 64)
	case FieldBool:
		return strconv.ParseBool(raw)
	default:
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, typ)
	}
}
