package gdm

import (
	"bytes"
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"
)

// -----------------------------------------------------------------------------
// Parquet export
// -----------------------------------------------------------------------------

// Fixed region columns. Schema fields are appended as optional columns.
const (
	columnSample = "sample"
	columnChr    = "chr"
	columnStart  = "start"
	columnStop   = "stop"
	columnStrand = "strand"
)

// regionColumn locates the value of one Parquet column within a RegionRow.
type regionColumn struct {
	name     string
	field    int // index into Region.Values, or -1 for fixed columns
	typ      FieldType
	nullable bool
}

// WriteParquet writes the table as a single Parquet file with one row per
// region. The file is snappy compressed.
func (t *RegionTable) WriteParquet(w io.Writer) error {
	pqSchema, columns, err := t.parquetSchema()
	if err != nil {
		return err
	}

	rowBuf := parquet.NewBuffer(pqSchema)
	for i, r := range t.Rows {
		row, err := regionToRow(r, columns, i)
		if err != nil {
			return err
		}
		if _, err := rowBuf.WriteRows([]parquet.Row{row}); err != nil {
			return fmt.Errorf("parquet: write row %d: %w", i, err)
		}
	}

	var buf bytes.Buffer
	pqWriter := parquet.NewWriter(&buf, pqSchema, parquet.Compression(&parquet.Snappy))
	if _, err := pqWriter.WriteRowGroup(rowBuf); err != nil {
		_ = pqWriter.Close()
		return fmt.Errorf("parquet: write row group: %w", err)
	}
	if err := pqWriter.Close(); err != nil {
		return fmt.Errorf("parquet: close writer: %w", err)
	}

	_, err = io.Copy(w, &buf)
	return err
}

// parquetSchema builds the file schema and the columns in schema order.
// parquet.Group orders its fields by name, so the returned columns follow
// that order rather than the declaration order.
func (t *RegionTable) parquetSchema() (*parquet.Schema, []regionColumn, error) {
	byName := map[string]regionColumn{
		columnSample: {name: columnSample, field: -1, typ: FieldString},
		columnChr:    {name: columnChr, field: -1, typ: FieldString},
		columnStart:  {name: columnStart, field: -1, typ: FieldInt},
		columnStop:   {name: columnStop, field: -1, typ: FieldInt},
		columnStrand: {name: columnStrand, field: -1, typ: FieldString},
	}
	for i, f := range t.Fields {
		if _, dup := byName[f.Name]; dup {
			return nil, nil, fmt.Errorf("%w: field %q collides with a region column", ErrInvalidSchema, f.Name)
		}
		byName[f.Name] = regionColumn{name: f.Name, field: i, typ: f.Type, nullable: true}
	}

	group := make(parquet.Group, len(byName))
	for name, col := range byName {
		group[name] = parquetNode(col)
	}
	pqSchema := parquet.NewSchema("region", group)

	columns := make([]regionColumn, 0, len(byName))
	for _, f := range pqSchema.Fields() {
		columns = append(columns, byName[f.Name()])
	}
	return pqSchema, columns, nil
}

func parquetNode(col regionColumn) parquet.Node {
	var node parquet.Node
	switch col.typ {
	case FieldInt:
		node = parquet.Int(64)
	case FieldFloat:
		node = parquet.Leaf(parquet.DoubleType)
	case FieldBool:
		node = parquet.Leaf(parquet.BooleanType)
	default:
		node = parquet.String()
	}
	if col.nullable {
		node = parquet.Optional(node)
	}
	return node
}

func regionToRow(r RegionRow, columns []regionColumn, index int) (parquet.Row, error) {
	row := make(parquet.Row, len(columns))
	for i, col := range columns {
		var val any
		switch col.name {
		case columnSample:
			val = r.Sample
		case columnChr:
			val = r.Chr
		case columnStart:
			val = r.Start
		case columnStop:
			val = r.Stop
		case columnStrand:
			val = r.Strand
		}
		if col.field >= 0 {
			if col.field >= len(r.Values) {
				return nil, fmt.Errorf("%w: region %d has %d values", ErrInvalidSchema, index, len(r.Values))
			}
			val = r.Values[col.field]
		}

		if val == nil {
			row[i] = parquet.NullValue().Level(0, 0, i)
			continue
		}
		pqVal, err := toParquetValue(val, col)
		if err != nil {
			return nil, fmt.Errorf("parquet: region %d: %w", index, err)
		}
		defLevel := 0
		if col.nullable {
			defLevel = 1
		}
		row[i] = pqVal.Level(0, defLevel, i)
	}
	return row, nil
}

func toParquetValue(val any, col regionColumn) (parquet.Value, error) {
	switch v := val.(type) {
	case string:
		if col.typ == FieldString {
			return parquet.ByteArrayValue([]byte(v)), nil
		}
	case int64:
		if col.typ == FieldInt {
			return parquet.Int64Value(v), nil
		}
	case float64:
		if col.typ == FieldFloat {
			return parquet.DoubleValue(v), nil
		}
	case bool:
		if col.typ == FieldBool {
			return parquet.BooleanValue(v), nil
		}
	}
	return parquet.Value{}, fmt.Errorf("%w: column %q: expected %v, got %T", ErrInvalidSchema, col.name, col.typ, val)
}
