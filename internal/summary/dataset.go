package summary

import (
	"errors"
	"fmt"
)

// DefaultPreviewLimit matches the five-row sample the backend returns.
const DefaultPreviewLimit = 5

// Dataset is the profile produced by one successful upload.
type Dataset struct {
	RowCount          int      `json:"rows"`
	ColumnCount       int      `json:"columns"`
	MissingValueCount int      `json:"missingValues"`
	Preview           []Record `json:"preview"`
}

// Columns returns the canonical column order (the first preview record's).
func (d Dataset) Columns() []string {
	if len(d.Preview) == 0 {
		return nil
	}
	return d.Preview[0].Columns()
}

// Clone returns a deep copy of d.
func (d Dataset) Clone() Dataset {
	out := d
	if d.Preview != nil {
		out.Preview = make([]Record, len(d.Preview))
		for i, rec := range d.Preview {
			out.Preview[i] = rec.Clone()
		}
	}
	return out
}

// Normalize validates d and returns a copy whose preview is capped at limit
// records and whose records all follow the first record's column order.
func (d Dataset) Normalize(limit int) (Dataset, error) {
	if d.RowCount < 0 {
		return Dataset{}, errors.New("rows must be non-negative")
	}
	if d.ColumnCount < 0 {
		return Dataset{}, errors.New("columns must be non-negative")
	}
	if d.MissingValueCount < 0 {
		return Dataset{}, errors.New("missingValues must be non-negative")
	}
	if limit <= 0 {
		limit = DefaultPreviewLimit
	}

	preview := d.Preview
	if len(preview) > limit {
		preview = preview[:limit]
	}
	out := Dataset{
		RowCount:          d.RowCount,
		ColumnCount:       d.ColumnCount,
		MissingValueCount: d.MissingValueCount,
	}
	if len(preview) == 0 {
		return out, nil
	}

	canonical := preview[0].Columns()
	out.Preview = make([]Record, 0, len(preview))
	out.Preview = append(out.Preview, preview[0].Clone())
	for i, rec := range preview[1:] {
		if len(rec.Fields) != len(canonical) {
			return Dataset{}, fmt.Errorf("preview record %d has %d columns, expected %d", i+1, len(rec.Fields), len(canonical))
		}
		ordered := Record{Fields: make([]Field, 0, len(canonical))}
		for _, name := range canonical {
			value, ok := rec.Get(name)
			if !ok {
				return Dataset{}, fmt.Errorf("preview record %d is missing column %q", i+1, name)
			}
			ordered.Fields = append(ordered.Fields, Field{Name: name, Value: value})
		}
		out.Preview = append(out.Preview, ordered)
	}
	return out, nil
}
