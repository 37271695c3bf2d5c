// Layout implements the fixed per-column serialization:
// `i` = 4-byte little-endian signed int, `f` = 4-byte IEEE754 LE float,
// `Ns` = N bytes zero-padded UTF-8, `?` = 1 byte bool, `10s` for DATE, and
// a pair of floats for POINT.
package types

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	tabulaerrors "github.com/iamNilotpal/tabula/pkg/errors"
)

// DateLength is DATE's fixed on-disk text width.
const DateLength = 10

// ColumnWidth returns the fixed number of bytes col occupies in a record's
// packed representation.
func ColumnWidth(col Column) int {
	switch col.Type {
	case Int, Float:
		return 4
	case Varchar:
		return col.VarcharLength
	case Bool:
		return 1
	case Date:
		return DateLength
	case Point:
		return 8
	default:
		return 0
	}
}

// RecordSize returns the constant packed size of any record matching schema.
func RecordSize(schema *TableSchema) int {
	size := 0
	for _, c := range schema.Columns {
		size += ColumnWidth(c)
	}
	return size
}

// EncodeColumn appends v's packed bytes for col to buf, returning the
// extended slice.
func EncodeColumn(buf []byte, col Column, v Value) ([]byte, error) {
	if err := CheckType(col, v); err != nil {
		return nil, err
	}

	switch col.Type {
	case Int:
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], uint32(v.Int))
		return append(buf, tmp[:]...), nil

	case Float:
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], math.Float32bits(v.Float))
		return append(buf, tmp[:]...), nil

	case Varchar:
		width := col.VarcharLength
		raw := []byte(v.Str)
		if len(raw) > width {
			return nil, tabulaerrors.NewTypeError(
				nil, tabulaerrors.ErrorCodeTypeMismatch,
				fmt.Sprintf("value for VARCHAR(%d) column %q is %d bytes", width, col.Name, len(raw)),
			).WithColumn(col.Name).WithGotValue(v.Str)
		}
		padded := make([]byte, width)
		copy(padded, raw)
		return append(buf, padded...), nil

	case Bool:
		var b byte
		if v.Bool {
			b = 1
		}
		return append(buf, b), nil

	case Date:
		raw := []byte(v.Str)
		if len(raw) > DateLength {
			raw = raw[:DateLength]
		}
		padded := make([]byte, DateLength)
		copy(padded, raw)
		return append(buf, padded...), nil

	case Point:
		var tmp [8]byte
		binary.LittleEndian.PutUint32(tmp[0:4], math.Float32bits(v.Point.X))
		binary.LittleEndian.PutUint32(tmp[4:8], math.Float32bits(v.Point.Y))
		return append(buf, tmp[:]...), nil

	default:
		return nil, tabulaerrors.NewTypeError(
			nil, tabulaerrors.ErrorCodeTypeMismatch, fmt.Sprintf("unknown column type %s", col.Type),
		).WithColumn(col.Name)
	}
}

// DecodeColumn reads col's packed representation from the front of buf,
// returning the decoded Value and the number of bytes consumed.
func DecodeColumn(buf []byte, col Column) (Value, int, error) {
	width := ColumnWidth(col)
	if len(buf) < width {
		return Value{}, 0, tabulaerrors.NewTypeError(
			nil, tabulaerrors.ErrorCodeTypeMismatch,
			fmt.Sprintf("short buffer decoding column %q: need %d, have %d", col.Name, width, len(buf)),
		).WithColumn(col.Name)
	}

	switch col.Type {
	case Int:
		return IntValue(int32(binary.LittleEndian.Uint32(buf[:4]))), 4, nil
	case Float:
		return FloatValue(math.Float32frombits(binary.LittleEndian.Uint32(buf[:4]))), 4, nil
	case Varchar:
		s := strings.TrimRight(string(buf[:width]), "\x00")
		return VarcharValue(s), width, nil
	case Bool:
		return BoolValue(buf[0] != 0), 1, nil
	case Date:
		s := strings.TrimRight(string(buf[:DateLength]), "\x00")
		return DateValue(s), DateLength, nil
	case Point:
		x := math.Float32frombits(binary.LittleEndian.Uint32(buf[0:4]))
		y := math.Float32frombits(binary.LittleEndian.Uint32(buf[4:8]))
		return PointValue(x, y), 8, nil
	default:
		return Value{}, 0, tabulaerrors.NewTypeError(
			nil, tabulaerrors.ErrorCodeTypeMismatch, fmt.Sprintf("unknown column type %s", col.Type),
		).WithColumn(col.Name)
	}
}

// EncodeRecord packs record into its fixed-size on-disk representation,
// column by column, in schema order.
func EncodeRecord(schema *TableSchema, record Record) ([]byte, error) {
	if len(record) != len(schema.Columns) {
		return nil, tabulaerrors.NewTypeError(
			nil, tabulaerrors.ErrorCodeArityMismatch,
			fmt.Sprintf("record has %d values, schema %q has %d columns", len(record), schema.TableName, len(schema.Columns)),
		).WithDetail("table", schema.TableName)
	}

	buf := make([]byte, 0, RecordSize(schema))
	for i, col := range schema.Columns {
		var err error
		buf, err = EncodeColumn(buf, col, record[i])
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// DecodeRecord unpacks a fixed-size record from buf according to schema.
func DecodeRecord(schema *TableSchema, buf []byte) (Record, error) {
	record := make(Record, len(schema.Columns))
	offset := 0
	for i, col := range schema.Columns {
		v, n, err := DecodeColumn(buf[offset:], col)
		if err != nil {
			return nil, err
		}
		record[i] = v
		offset += n
	}
	return record, nil
}
