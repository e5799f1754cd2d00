package sobject

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"time"
)

// ValidationError reports an invalid field selection at schema build
// time.
type ValidationError struct {
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return e.Message
}

// DecodeError reports a row that cannot be decoded under the schema.
// It fails the whole iteration; rows are never skipped.
type DecodeError struct {
	Column  string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	msg := e.Message
	if e.Column != "" {
		msg = fmt.Sprintf("column %s: %s", e.Column, msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("decode row: %s: %v", msg, e.Err)
	}
	return "decode row: " + msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Column is one typed column of a row schema.
type Column struct {
	Name string
	Kind Kind

	// MaxLen is the maximum value length for bounded string columns;
	// zero means unconstrained.
	MaxLen int
}

// Schema maps requested field names to semantic kinds, in request
// order. Built from the caller's field list, never re-derived from the
// result header.
type Schema struct {
	Columns []Column
}

// BuildSchema validates the requested fields against the object's
// catalog and returns one column per field in request order. It fails
// on an empty selection, an unknown field name, or a composite field
// type.
func BuildSchema(object *SObject, fields []string) (*Schema, error) {
	if len(fields) == 0 {
		return nil, &ValidationError{Message: "at least one field must be selected"}
	}

	columns := make([]Column, 0, len(fields))
	for _, name := range fields {
		field := object.Field(name)
		if field == nil {
			return nil, &ValidationError{Message: "unknown field: " + name}
		}
		if IsComposite(field.Type) {
			return nil, &ValidationError{
				Message: fmt.Sprintf("cannot query %s type field: %s", field.Type, name),
			}
		}
		kind, err := KindForType(field.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		column := Column{Name: name, Kind: kind}
		if kind == KindString && field.Length > 0 {
			column.MaxLen = field.Length
		}
		columns = append(columns, column)
	}

	return &Schema{Columns: columns}, nil
}

// RowDecoder decodes raw CSV rows into records, with columns arranged
// in result header order.
type RowDecoder struct {
	columns []Column
}

// Bind arranges the schema's columns in the order given by the result
// header row. The header must have exactly one entry per schema column
// and every header name must be a schema column.
func (s *Schema) Bind(header []string) (*RowDecoder, error) {
	if len(header) != len(s.Columns) {
		return nil, &DecodeError{
			Message: fmt.Sprintf("header has %d columns, schema has %d",
				len(header), len(s.Columns)),
		}
	}

	byName := make(map[string]Column, len(s.Columns))
	for _, column := range s.Columns {
		byName[column.Name] = column
	}

	columns := make([]Column, len(header))
	for i, name := range header {
		column, ok := byName[name]
		if !ok {
			return nil, &DecodeError{Column: name, Message: "not in requested field list"}
		}
		columns[i] = column
	}

	return &RowDecoder{columns: columns}, nil
}

// Record is one decoded result row. Every value is nullable: an absent
// column value decodes to nil regardless of the field's declared
// nillability, because the wire format can always omit it.
type Record map[string]any

// Decode converts one raw row into a record. A column count mismatch or
// an unparsable value fails the decode.
func (d *RowDecoder) Decode(row []string) (Record, error) {
	if len(row) != len(d.columns) {
		return nil, &DecodeError{
			Message: fmt.Sprintf("row has %d columns, schema has %d",
				len(row), len(d.columns)),
		}
	}

	record := make(Record, len(row))
	for i, cell := range row {
		column := d.columns[i]
		if cell == "" {
			record[column.Name] = nil
			continue
		}
		value, err := decodeValue(column, cell)
		if err != nil {
			return nil, err
		}
		record[column.Name] = value
	}
	return record, nil
}

// Salesforce timestamp layouts, most common first.
var dateTimeLayouts = []string{
	"2006-01-02T15:04:05.000Z0700",
	time.RFC3339,
}

func decodeValue(column Column, cell string) (any, error) {
	switch column.Kind {
	case KindString:
		if column.MaxLen > 0 && len(cell) > column.MaxLen {
			return nil, &DecodeError{
				Column:  column.Name,
				Message: fmt.Sprintf("value exceeds maximum length %d", column.MaxLen),
			}
		}
		return cell, nil

	case KindAny:
		return cell, nil

	case KindInt:
		value, err := strconv.ParseInt(cell, 10, 64)
		if err != nil {
			return nil, &DecodeError{Column: column.Name, Message: "invalid integer", Err: err}
		}
		return value, nil

	case KindFloat:
		value, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, &DecodeError{Column: column.Name, Message: "invalid number", Err: err}
		}
		return value, nil

	case KindBool:
		value, err := strconv.ParseBool(cell)
		if err != nil {
			return nil, &DecodeError{Column: column.Name, Message: "invalid boolean", Err: err}
		}
		return value, nil

	case KindBytes:
		value, err := base64.StdEncoding.DecodeString(cell)
		if err != nil {
			return nil, &DecodeError{Column: column.Name, Message: "invalid base64", Err: err}
		}
		return value, nil

	case KindDate:
		value, err := time.Parse("2006-01-02", cell)
		if err != nil {
			return nil, &DecodeError{Column: column.Name, Message: "invalid date", Err: err}
		}
		return value, nil

	case KindDateTime:
		var lastErr error
		for _, layout := range dateTimeLayouts {
			value, err := time.Parse(layout, cell)
			if err == nil {
				return value, nil
			}
			lastErr = err
		}
		return nil, &DecodeError{Column: column.Name, Message: "invalid datetime", Err: lastErr}

	default:
		return nil, &DecodeError{
			Column:  column.Name,
			Message: fmt.Sprintf("unhandled kind %s", column.Kind),
		}
	}
}
