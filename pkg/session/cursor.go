package session

import (
	"fmt"
	"iter"
	"reflect"

	"github.com/spf13/cast"
)

// rowSource is the part of *sql.Rows a Cursor consumes.
type rowSource interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// Cursor is a forward-only, single-pass sequence of rows. Only the current
// row is held in memory. A Cursor is owned by the call that produced it and
// is closed together with its statement.
type Cursor struct {
	src      rowSource
	consumed bool
}

func newCursor(src rowSource) *Cursor {
	return &Cursor{src: src}
}

// All returns the rows of the cursor. Ranging a second time yields
// ErrCursorConsumed; re-execute the statement to read the rows again.
func (c *Cursor) All() iter.Seq2[*Row, error] {
	return func(yield func(*Row, error) bool) {
		if c.consumed {
			yield(nil, ErrCursorConsumed)
			return
		}
		c.consumed = true

		cols, err := c.src.Columns()
		if err != nil {
			yield(nil, err)
			return
		}
		for c.src.Next() {
			values := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range values {
				ptrs[i] = &values[i]
			}
			if err := c.src.Scan(ptrs...); err != nil {
				yield(nil, err)
				return
			}
			if !yield(newRow(cols, values), nil) {
				return
			}
		}
		if err := c.src.Err(); err != nil {
			yield(nil, err)
		}
	}
}

// Close releases the underlying driver cursor.
func (c *Cursor) Close() error {
	return c.src.Close()
}

// bufferedRows is an in-memory rowSource holding generated keys collected
// while a statement ran.
type bufferedRows struct {
	columns []string
	rows    [][]any
	pos     int
}

func (b *bufferedRows) Columns() ([]string, error) { return b.columns, nil }

func (b *bufferedRows) Next() bool {
	if b.pos >= len(b.rows) {
		return false
	}
	b.pos++
	return true
}

func (b *bufferedRows) Scan(dest ...any) error {
	if b.pos == 0 || b.pos > len(b.rows) {
		return fmt.Errorf("session: Scan called without a current row")
	}
	row := b.rows[b.pos-1]
	if len(dest) != len(row) {
		return fmt.Errorf("session: expected %d destination arguments in Scan, not %d", len(row), len(dest))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *any:
			*p = row[i]
		case *int64:
			v, err := cast.ToInt64E(normalize(row[i]))
			if err != nil {
				return err
			}
			*p = v
		case *string:
			v, err := cast.ToStringE(normalize(row[i]))
			if err != nil {
				return err
			}
			*p = v
		default:
			return fmt.Errorf("session: unsupported Scan destination %s", reflect.TypeOf(d))
		}
	}
	return nil
}

func (b *bufferedRows) Err() error   { return nil }
func (b *bufferedRows) Close() error { return nil }

func (b *bufferedRows) add(columns []string, values []any) {
	if b.columns == nil {
		b.columns = columns
	}
	b.rows = append(b.rows, values)
}
