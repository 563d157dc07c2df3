// File: internal/core/builder.go
package core

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"strings"

	"github.com/TechXTT/tormsql/pkg/session"
)

// QueryBuilder is a generics-based fluent query builder. Rows are turned
// into T by the extractor and every query runs through the session.
type QueryBuilder[T any] struct {
	s           session.Session
	extract     session.Extractor[T]
	table       string
	selectCols  []string
	whereOps    []string
	args        []any
	joinClauses []string
	orderBy     string

	// Zero leaves the clause out.
	limit  int
	offset int
}

func NewQueryBuilder[T any](s session.Session, extract session.Extractor[T]) *QueryBuilder[T] {
	return &QueryBuilder[T]{s: s, extract: extract}
}

func (qb *QueryBuilder[T]) From(table string) *QueryBuilder[T] {
	qb.table = table
	return qb
}

func (qb *QueryBuilder[T]) Select(cols ...string) *QueryBuilder[T] {
	qb.selectCols = cols
	return qb
}

func (qb *QueryBuilder[T]) Where(cond string, vals ...any) *QueryBuilder[T] {
	qb.whereOps = append(qb.whereOps, cond)
	qb.args = append(qb.args, vals...)
	return qb
}

// Join adds a JOIN clause (e.g. "JOIN other_table ON ...")
func (qb *QueryBuilder[T]) Join(clause string) *QueryBuilder[T] {
	qb.joinClauses = append(qb.joinClauses, clause)
	return qb
}

// OrderBy sets the ORDER BY clause
func (qb *QueryBuilder[T]) OrderBy(order string) *QueryBuilder[T] {
	qb.orderBy = order
	return qb
}

// Limit sets the LIMIT clause
func (qb *QueryBuilder[T]) Limit(n int) *QueryBuilder[T] {
	qb.limit = n
	return qb
}

// Offset sets the OFFSET clause
func (qb *QueryBuilder[T]) Offset(n int) *QueryBuilder[T] {
	qb.offset = n
	return qb
}

// Build assembles the SQL query string and returns it with args
func (qb *QueryBuilder[T]) Build() (string, []any) {
	parts := []string{"SELECT"}
	if len(qb.selectCols) > 0 {
		parts = append(parts, strings.Join(qb.selectCols, ", "))
	} else {
		parts = append(parts, "*")
	}
	parts = append(parts, "FROM", qb.table)
	if len(qb.joinClauses) > 0 {
		parts = append(parts, strings.Join(qb.joinClauses, " "))
	}
	if len(qb.whereOps) > 0 {
		parts = append(parts, "WHERE", strings.Join(qb.whereOps, " AND "))
	}
	if qb.orderBy != "" {
		parts = append(parts, "ORDER BY", qb.orderBy)
	}
	if qb.limit > 0 {
		parts = append(parts, fmt.Sprintf("LIMIT %d", qb.limit))
	}
	if qb.offset > 0 {
		parts = append(parts, fmt.Sprintf("OFFSET %d", qb.offset))
	}
	query := strings.Join(parts, " ")
	return query, qb.args
}

// All runs the built query and extracts every row in order.
func (qb *QueryBuilder[T]) All(ctx context.Context) ([]T, error) {
	query, args := qb.Build()
	return session.List(ctx, qb.s, query, qb.extract, args...)
}

// Each returns a lazy sequence over the built query.
func (qb *QueryBuilder[T]) Each(ctx context.Context) iter.Seq2[T, error] {
	query, args := qb.Build()
	return session.Traversable(ctx, qb.s, query, qb.extract, args...)
}

// One fetches a single record into T
func (qb *QueryBuilder[T]) One(ctx context.Context) (T, error) {
	qb.limit = 1
	query, args := qb.Build()
	item, found, err := session.First(ctx, qb.s, query, qb.extract, args...)
	if err != nil {
		var zero T
		return zero, err
	}
	if !found {
		var zero T
		return zero, sql.ErrNoRows
	}
	return item, nil
}

// Count returns the count of matching records
func (qb *QueryBuilder[T]) Count(ctx context.Context) (int64, error) {
	// Temporarily override SELECT and ignore other clauses except WHERE and JOIN
	originalCols := qb.selectCols
	qb.selectCols = []string{"COUNT(*)"}
	query, args := qb.Build()
	qb.selectCols = originalCols

	count, _, err := session.Single(ctx, qb.s, query, func(r *session.Row) (int64, error) {
		return r.Int64At(1)
	}, args...)
	if err != nil {
		return 0, err
	}
	return count, nil
}
