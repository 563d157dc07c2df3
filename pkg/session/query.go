package session

import (
	"context"
	"iter"
)

// Extractor turns the current row into a value. It must not keep the row.
type Extractor[A any] func(*Row) (A, error)

// Single runs a query expected to return at most one row. It returns
// found=false for no rows and a *TooManyRowsError for more than one.
func Single[A any](ctx context.Context, s Session, template string, extract Extractor[A], params ...any) (out A, found bool, err error) {
	count := 0
	err = s.query(ctx, template, params, func(c *Cursor) error {
		for row, err := range c.All() {
			if err != nil {
				return err
			}
			count++
			if count > 1 {
				continue
			}
			if out, err = extract(row); err != nil {
				return err
			}
		}
		return nil
	})
	switch {
	case err != nil:
		var zero A
		return zero, false, err
	case count > 1:
		var zero A
		return zero, false, &TooManyRowsError{Expected: 1, Actual: count}
	}
	return out, count == 1, nil
}

// First returns the first row of a query and ignores the rest.
func First[A any](ctx context.Context, s Session, template string, extract Extractor[A], params ...any) (out A, found bool, err error) {
	err = s.query(ctx, template, params, func(c *Cursor) error {
		for row, err := range c.All() {
			if err != nil {
				return err
			}
			if out, err = extract(row); err != nil {
				return err
			}
			found = true
			return nil
		}
		return nil
	})
	if err != nil {
		var zero A
		return zero, false, err
	}
	return out, found, nil
}

// Collector builds a container of type C from extracted values.
type Collector[A, C any] struct {
	Init func() C
	Add  func(C, A) C
}

// SliceCollector collects values into a slice in cursor order.
func SliceCollector[A any]() Collector[A, []A] {
	return Collector[A, []A]{
		Init: func() []A { return []A{} },
		Add:  func(c []A, a A) []A { return append(c, a) },
	}
}

// SetCollector collects distinct values.
func SetCollector[A comparable]() Collector[A, map[A]struct{}] {
	return Collector[A, map[A]struct{}]{
		Init: func() map[A]struct{} { return map[A]struct{}{} },
		Add: func(c map[A]struct{}, a A) map[A]struct{} {
			c[a] = struct{}{}
			return c
		},
	}
}

// Collection runs a query and collects every extracted row with col.
func Collection[A, C any](ctx context.Context, s Session, template string, extract Extractor[A], col Collector[A, C], params ...any) (C, error) {
	out := col.Init()
	err := s.query(ctx, template, params, func(c *Cursor) error {
		for row, err := range c.All() {
			if err != nil {
				return err
			}
			v, err := extract(row)
			if err != nil {
				return err
			}
			out = col.Add(out, v)
		}
		return nil
	})
	if err != nil {
		var zero C
		return zero, err
	}
	return out, nil
}

// List runs a query and returns every extracted row in cursor order.
func List[A any](ctx context.Context, s Session, template string, extract Extractor[A], params ...any) ([]A, error) {
	return Collection(ctx, s, template, extract, SliceCollector[A](), params...)
}

// Traversable returns a lazy sequence over a query. The query runs each time
// the sequence is ranged over and its statement is closed when the range ends.
// A failure is yielded once as the final element.
func Traversable[A any](ctx context.Context, s Session, template string, extract Extractor[A], params ...any) iter.Seq2[A, error] {
	return func(yield func(A, error) bool) {
		stopped := false
		err := s.query(ctx, template, params, func(c *Cursor) error {
			for row, err := range c.All() {
				if err != nil {
					return err
				}
				v, err := extract(row)
				if err != nil {
					return err
				}
				if !yield(v, nil) {
					stopped = true
					return nil
				}
			}
			return nil
		})
		if err != nil && !stopped {
			var zero A
			yield(zero, err)
		}
	}
}

// Foreach runs a query and calls fn for every row in cursor order.
func Foreach(ctx context.Context, s Session, template string, fn func(*Row) error, params ...any) error {
	return s.query(ctx, template, params, func(c *Cursor) error {
		for row, err := range c.All() {
			if err != nil {
				return err
			}
			if err := fn(row); err != nil {
				return err
			}
		}
		return nil
	})
}

// FoldLeft runs a query and folds its rows into init in cursor order.
func FoldLeft[A any](ctx context.Context, s Session, template string, init A, op func(A, *Row) (A, error), params ...any) (A, error) {
	acc := init
	err := s.query(ctx, template, params, func(c *Cursor) error {
		for row, err := range c.All() {
			if err != nil {
				return err
			}
			if acc, err = op(acc, row); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		var zero A
		return zero, err
	}
	return acc, nil
}
