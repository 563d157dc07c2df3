package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Row is a read-only view of the current row of a cursor. It is only valid
// inside the callback it was passed to.
type Row struct {
	columns []string
	values  []any
}

func newRow(columns []string, values []any) *Row {
	return &Row{columns: columns, values: values}
}

// Columns returns the column names in cursor order.
func (r *Row) Columns() []string {
	out := make([]string, len(r.columns))
	copy(out, r.columns)
	return out
}

func (r *Row) indexOf(column string) (int, error) {
	for i, c := range r.columns {
		if strings.EqualFold(c, column) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("session: column %q not found in %v", column, r.columns)
}

// Any returns the raw driver value of a column.
func (r *Row) Any(column string) (any, error) {
	i, err := r.indexOf(column)
	if err != nil {
		return nil, err
	}
	return normalize(r.values[i]), nil
}

// AnyAt returns the raw driver value at a 1-based column index.
func (r *Row) AnyAt(index int) (any, error) {
	if index < 1 || index > len(r.values) {
		return nil, fmt.Errorf("session: column index %d out of range [1,%d]", index, len(r.values))
	}
	return normalize(r.values[index-1]), nil
}

// IsNull reports whether a column holds SQL NULL.
func (r *Row) IsNull(column string) (bool, error) {
	v, err := r.Any(column)
	return v == nil, err
}

func (r *Row) Int64(column string) (int64, error)     { return lookup(r, column, cast.ToInt64E) }
func (r *Row) Int64At(index int) (int64, error)       { return lookupAt(r, index, cast.ToInt64E) }
func (r *Row) Int(column string) (int, error)         { return lookup(r, column, cast.ToIntE) }
func (r *Row) IntAt(index int) (int, error)           { return lookupAt(r, index, cast.ToIntE) }
func (r *Row) String(column string) (string, error)   { return lookup(r, column, cast.ToStringE) }
func (r *Row) StringAt(index int) (string, error)     { return lookupAt(r, index, cast.ToStringE) }
func (r *Row) Float64(column string) (float64, error) { return lookup(r, column, cast.ToFloat64E) }
func (r *Row) Float64At(index int) (float64, error)   { return lookupAt(r, index, cast.ToFloat64E) }
func (r *Row) Bool(column string) (bool, error)       { return lookup(r, column, cast.ToBoolE) }
func (r *Row) BoolAt(index int) (bool, error)         { return lookupAt(r, index, cast.ToBoolE) }
func (r *Row) Time(column string) (time.Time, error)  { return lookup(r, column, cast.ToTimeE) }
func (r *Row) TimeAt(index int) (time.Time, error)    { return lookupAt(r, index, cast.ToTimeE) }

// Bytes returns a column as a byte slice. Strings are converted.
func (r *Row) Bytes(column string) ([]byte, error) {
	i, err := r.indexOf(column)
	if err != nil {
		return nil, err
	}
	switch v := r.values[i].(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("session: cannot convert %T to []byte", v)
	}
}

func lookup[T any](r *Row, column string, conv func(any) (T, error)) (T, error) {
	v, err := r.Any(column)
	if err != nil {
		var zero T
		return zero, err
	}
	return conv(v)
}

func lookupAt[T any](r *Row, index int, conv func(any) (T, error)) (T, error) {
	v, err := r.AnyAt(index)
	if err != nil {
		var zero T
		return zero, err
	}
	return conv(v)
}

// normalize turns driver byte slices into strings so numeric columns
// returned as text (MySQL) coerce the same way as native values.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
