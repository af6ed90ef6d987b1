package gdm

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"slices"
	"strings"
)

// -----------------------------------------------------------------------------
// Field types
// -----------------------------------------------------------------------------

// FieldType enumerates the value types of non-coordinate region fields.
type FieldType int

// Field type constants.
const (
	FieldString FieldType = iota
	FieldInt
	FieldFloat
	FieldBool
)

func (t FieldType) String() string {
	switch t {
	case FieldString:
		return "STRING"
	case FieldInt:
		return "LONG"
	case FieldFloat:
		return "DOUBLE"
	case FieldBool:
		return "BOOLEAN"
	default:
		return fmt.Sprintf("FieldType(%d)", int(t))
	}
}

func parseFieldType(s string) (FieldType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "STRING", "CHAR", "CHARACTER":
		return FieldString, nil
	case "INTEGER", "INT", "LONG":
		return FieldInt, nil
	case "DOUBLE", "FLOAT":
		return FieldFloat, nil
	case "BOOLEAN", "BOOL":
		return FieldBool, nil
	default:
		return 0, fmt.Errorf("%w: unknown field type %q", ErrInvalidSchema, s)
	}
}

// FieldSpec describes one non-coordinate column of a region file.
type FieldSpec struct {
	Name string
	Type FieldType

	// Pos is the zero-based column index in the region file.
	Pos int
}

// -----------------------------------------------------------------------------
// Parser descriptor
// -----------------------------------------------------------------------------

// ParserDescriptor is the engine-facing description of a region format.
type ParserDescriptor struct {
	// DatasetName is the schema collection name, if any.
	DatasetName string

	// RegionType is the schema type attribute (for example "Peak" or "tab").
	RegionType string

	// CoordinateSystem is "0-based", "1-based" or "default".
	CoordinateSystem string

	// Delimiter separates columns. Defaults to a tab.
	Delimiter string

	// Column indexes of the coordinates. StrandPos is -1 when absent.
	ChrPos    int
	StartPos  int
	StopPos   int
	StrandPos int

	// Fields lists the remaining columns in file order.
	Fields []FieldSpec
}

// FieldNames returns the names of the non-coordinate fields.
func (d ParserDescriptor) FieldNames() []string {
	names := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		names[i] = f.Name
	}
	return names
}

// Descriptor returns d, so a bare descriptor satisfies Parser.
func (d ParserDescriptor) Descriptor() ParserDescriptor { return d }

var (
	chrNames    = []string{"chr", "chrom", "chromosome", "seqname"}
	startNames  = []string{"start", "left"}
	stopNames   = []string{"stop", "right", "end"}
	strandNames = []string{"strand", "str"}
)

// -----------------------------------------------------------------------------
// schema.xml
// -----------------------------------------------------------------------------

type xmlSchemaCollection struct {
	XMLName xml.Name    `xml:"gmqlSchemaCollection"`
	Name    string      `xml:"name,attr"`
	Schemas []xmlSchema `xml:"gmqlSchema"`
}

type xmlSchema struct {
	Type             string     `xml:"type,attr"`
	CoordinateSystem string     `xml:"coordinate_system,attr"`
	Fields           []xmlField `xml:"field"`
}

type xmlField struct {
	Type string `xml:"type,attr"`
	Name string `xml:",chardata"`
}

// DecodeSchema reads a schema descriptor document.
//
// When the schema names the coordinate columns (chr, start/left, stop/right,
// optionally strand) their positions are taken from the schema. Otherwise
// the native GDM layout is assumed: chr, left, right and strand occupy the
// first four columns and the schema fields follow.
func DecodeSchema(r io.Reader) (ParserDescriptor, error) {
	var doc xmlSchemaCollection
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return ParserDescriptor{}, fmt.Errorf("%w: %w", ErrInvalidSchema, err)
	}
	if len(doc.Schemas) != 1 {
		return ParserDescriptor{}, fmt.Errorf("%w: expected one gmqlSchema, found %d", ErrInvalidSchema, len(doc.Schemas))
	}
	schema := doc.Schemas[0]

	desc := ParserDescriptor{
		DatasetName:      doc.Name,
		RegionType:       schema.Type,
		CoordinateSystem: schema.CoordinateSystem,
		Delimiter:        "\t",
		ChrPos:           -1,
		StartPos:         -1,
		StopPos:          -1,
		StrandPos:        -1,
	}
	if desc.CoordinateSystem == "" {
		desc.CoordinateSystem = "default"
	}

	type column struct {
		name string
		typ  FieldType
	}
	columns := make([]column, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			return ParserDescriptor{}, fmt.Errorf("%w: field with empty name", ErrInvalidSchema)
		}
		typ, err := parseFieldType(f.Type)
		if err != nil {
			return ParserDescriptor{}, fmt.Errorf("field %q: %w", name, err)
		}
		columns = append(columns, column{name: name, typ: typ})
	}

	for i, c := range columns {
		switch lower := strings.ToLower(c.name); {
		case desc.ChrPos < 0 && slices.Contains(chrNames, lower):
			desc.ChrPos = i
		case desc.StartPos < 0 && slices.Contains(startNames, lower):
			desc.StartPos = i
		case desc.StopPos < 0 && slices.Contains(stopNames, lower):
			desc.StopPos = i
		case desc.StrandPos < 0 && slices.Contains(strandNames, lower):
			desc.StrandPos = i
		default:
			desc.Fields = append(desc.Fields, FieldSpec{Name: c.name, Type: c.typ, Pos: i})
		}
	}

	explicit := desc.ChrPos >= 0 || desc.StartPos >= 0 || desc.StopPos >= 0
	switch {
	case explicit && (desc.ChrPos < 0 || desc.StartPos < 0 || desc.StopPos < 0):
		return ParserDescriptor{}, fmt.Errorf("%w: schema names some but not all of chr, start and stop", ErrInvalidSchema)
	case !explicit:
		// A lone strand field is still the fourth native column.
		desc.ChrPos, desc.StartPos, desc.StopPos, desc.StrandPos = 0, 1, 2, 3
		for i := range desc.Fields {
			desc.Fields[i].Pos = i + 4
		}
	}

	return desc, nil
}

// ReadSchema decodes the schema descriptor of a canonical directory.
func ReadSchema(ctx context.Context, store Store, dir string) (ParserDescriptor, error) {
	schemaPath, err := SchemaPath(ctx, store, dir)
	if err != nil {
		return ParserDescriptor{}, err
	}
	rc, err := store.Get(ctx, schemaPath)
	if err != nil {
		return ParserDescriptor{}, fmt.Errorf("gdm: read schema: %w", err)
	}
	defer closer(rc)()

	desc, err := DecodeSchema(rc)
	if err != nil {
		return ParserDescriptor{}, fmt.Errorf("gdm: decode schema %s: %w", schemaPath, err)
	}
	return desc, nil
}

// InferParser builds the default region parser from a directory's schema.
func InferParser(ctx context.Context, store Store, dir string) (RegionParser, error) {
	desc, err := ReadSchema(ctx, store, dir)
	if err != nil {
		return nil, err
	}
	return NewDelimitedParser(desc)
}
