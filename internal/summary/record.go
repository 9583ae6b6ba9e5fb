package summary

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Field is one named cell of a preview record.
type Field struct {
	Name  string
	Value any
}

// Record is a preview row with a stable column order. Values are nil, string,
// bool, or json.Number.
type Record struct {
	Fields []Field
}

// NewRecord builds a record from alternating name/value pairs.
func NewRecord(pairs ...any) Record {
	rec := Record{Fields: make([]Field, 0, len(pairs)/2)}
	for i := 0; i+1 < len(pairs); i += 2 {
		name, _ := pairs[i].(string)
		rec.Fields = append(rec.Fields, Field{Name: name, Value: pairs[i+1]})
	}
	return rec
}

// Columns returns the record's column names in order.
func (r Record) Columns() []string {
	out := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		out[i] = f.Name
	}
	return out
}

// Get returns the value for the named column.
func (r Record) Get(name string) (any, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Clone returns a copy that shares no slice storage with r.
func (r Record) Clone() Record {
	if r.Fields == nil {
		return Record{}
	}
	fields := make([]Field, len(r.Fields))
	copy(fields, r.Fields)
	return Record{Fields: fields}
}

// MarshalJSON encodes the record as a JSON object preserving column order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.Fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", f.Name, err)
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping key order and rejecting
// duplicate keys and non-scalar values.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("preview record: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("preview record: expected JSON object")
	}

	fields := make([]Field, 0, 8)
	seen := make(map[string]struct{})
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("preview record: %w", err)
		}
		name, ok := tok.(string)
		if !ok {
			return errors.New("preview record: expected column name")
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("preview record: duplicate column %q", name)
		}
		seen[name] = struct{}{}

		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("preview record: column %q: %w", name, err)
		}
		switch value.(type) {
		case nil, string, bool, json.Number:
		default:
			return fmt.Errorf("preview record: column %q holds a non-scalar value", name)
		}
		fields = append(fields, Field{Name: name, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("preview record: %w", err)
	}
	r.Fields = fields
	return nil
}

// FormatValue renders a cell value for display.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return fmt.Sprint(val)
	}
}
