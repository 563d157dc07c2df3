package db

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/spf13/cast"

	"github.com/TechXTT/tormsql/pkg/session"
)

// Select retrieves all rows from the table named after T (UserProfile reads
// user_profile). Columns are matched to exported fields by snake_case name.
func Select[T any](ctx context.Context, s session.Session) ([]T, error) {
	var zero T
	elemType := reflect.TypeOf(zero)
	if elemType == nil || elemType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("select: %T is not a struct", zero)
	}
	query := fmt.Sprintf("SELECT * FROM %s", snakeCase(elemType.Name()))
	return session.List(ctx, s, query, StructExtractor[T]())
}

// StructExtractor fills a T from a row by matching columns to fields.
// Columns without a matching field are ignored.
func StructExtractor[T any]() session.Extractor[T] {
	return func(r *session.Row) (T, error) {
		var out T
		elemVal := reflect.ValueOf(&out).Elem()
		fields := fieldIndex(elemVal.Type())
		for _, col := range r.Columns() {
			i, ok := fields[strings.ToLower(col)]
			if !ok {
				continue
			}
			v, err := r.Any(col)
			if err != nil {
				return out, err
			}
			if err := assign(elemVal.Field(i), v); err != nil {
				return out, fmt.Errorf("failed to scan column %s: %w", col, err)
			}
		}
		return out, nil
	}
}

func fieldIndex(t reflect.Type) map[string]int {
	out := make(map[string]int, t.NumField())
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		out[snakeCase(f.Name)] = i
		out[strings.ToLower(f.Name)] = i
	}
	return out
}

func assign(field reflect.Value, v any) error {
	if v == nil {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}
	var (
		conv any
		err  error
	)
	switch field.Kind() {
	case reflect.String:
		conv, err = cast.ToStringE(v)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var n int64
		n, err = cast.ToInt64E(v)
		conv = reflect.ValueOf(n).Convert(field.Type()).Interface()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		var n uint64
		n, err = cast.ToUint64E(v)
		conv = reflect.ValueOf(n).Convert(field.Type()).Interface()
	case reflect.Float32, reflect.Float64:
		var f float64
		f, err = cast.ToFloat64E(v)
		conv = reflect.ValueOf(f).Convert(field.Type()).Interface()
	case reflect.Bool:
		conv, err = cast.ToBoolE(v)
	default:
		rv := reflect.ValueOf(v)
		if !rv.Type().ConvertibleTo(field.Type()) {
			return fmt.Errorf("cannot assign %T to %s", v, field.Type())
		}
		conv = rv.Convert(field.Type()).Interface()
	}
	if err != nil {
		return err
	}
	field.Set(reflect.ValueOf(conv))
	return nil
}

// snakeCase turns a Go identifier into a lower snake_case name.
func snakeCase(name string) string {
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
