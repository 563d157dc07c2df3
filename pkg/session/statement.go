package session

import (
	"database/sql"
	"slices"
)

// Statement is a prepared statement owned by a single session call. Filters
// passed to ExecuteWithFilters and UpdateWithFilters receive it right before
// and after execution.
type Statement struct {
	stmt     *sql.Stmt
	template string
	sql      string
	keys     keySource

	fetchSize    *int
	queryTimeout *int

	params    []any
	batch     [][]any
	generated *bufferedRows
}

// Stmt returns the underlying database/sql statement.
func (s *Statement) Stmt() *sql.Stmt { return s.stmt }

// Template returns the SQL template the caller passed in.
func (s *Statement) Template() string { return s.template }

// SQL returns the SQL text that was prepared. It differs from Template when
// generated keys were requested through a RETURNING clause.
func (s *Statement) SQL() string { return s.sql }

// FetchSize returns the fetch size hint, if one was set.
func (s *Statement) FetchSize() (int, bool) {
	if s.fetchSize == nil {
		return 0, false
	}
	return *s.fetchSize, true
}

// SetFetchSize records a fetch size hint. database/sql has no portable fetch
// size, so drivers that support one read it from here through a filter.
func (s *Statement) SetFetchSize(size int) { s.fetchSize = &size }

// QueryTimeout returns the statement timeout in seconds, if one was set.
func (s *Statement) QueryTimeout() (int, bool) {
	if s.queryTimeout == nil {
		return 0, false
	}
	return *s.queryTimeout, true
}

// SetQueryTimeout sets the statement timeout in seconds. Values <= 0 disable it.
func (s *Statement) SetQueryTimeout(seconds int) { s.queryTimeout = &seconds }

// Bind sets the parameters for the next execution.
func (s *Statement) Bind(params ...any) { s.params = params }

// AddBatch enqueues the bound parameters for ExecuteBatch.
func (s *Statement) AddBatch() {
	s.batch = append(s.batch, slices.Clone(s.params))
	s.params = nil
}

// GeneratedKeys returns the keys produced by the last execution. The cursor is
// empty when keys were not requested or the driver produced none.
func (s *Statement) GeneratedKeys() *Cursor {
	if s.generated == nil {
		return newCursor(&bufferedRows{})
	}
	return newCursor(&bufferedRows{columns: s.generated.columns, rows: s.generated.rows})
}

func (s *Statement) close() error {
	return s.stmt.Close()
}
