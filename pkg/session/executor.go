package session

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"
)

// preparer is implemented by *sql.Conn and *sql.Tx.
type preparer interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// execSpec describes how a call wants its statement prepared.
type execSpec struct {
	returnKeys bool
	keyName    string
}

// executor prepares and runs one template for one session call.
// It owns its Statement and must be closed by the call that created it.
type executor struct {
	st       *Statement
	template string
	params   []any
	settings Settings
	tags     []string
	log      *zap.Logger
	cancels  []context.CancelFunc
}

func newExecutor(ctx context.Context, p preparer, settings Settings, log *zap.Logger, attrs ConnectionAttributes,
	cfg Config, template string, params []any, spec execSpec) (*executor, error) {
	ex := &executor{
		template: template,
		params:   params,
		settings: settings,
		tags:     cfg.Tags,
		log:      log,
	}

	mode := chooseKeyMode(settings, attrs, spec.returnKeys, spec.keyName)
	query, src := preparedSQL(template, mode, spec.keyName, settings, attrs)
	stmt, err := p.PrepareContext(ctx, query)
	if err != nil {
		return nil, ex.fail(err)
	}

	ex.st = &Statement{stmt: stmt, template: template, sql: query, keys: src}
	if cfg.FetchSize != nil {
		ex.st.SetFetchSize(*cfg.FetchSize)
	}
	if cfg.QueryTimeout != nil {
		ex.st.SetQueryTimeout(*cfg.QueryTimeout)
	}
	return ex, nil
}

// bind binds the call parameters for a single execution.
func (ex *executor) bind() {
	ex.st.Bind(ex.params...)
}

// bindBatch enqueues every parameter set.
func (ex *executor) bindBatch(paramsList [][]any) {
	for _, params := range paramsList {
		ex.st.Bind(params...)
		ex.st.AddBatch()
	}
}

// callContext applies the statement timeout, if any, to one driver call.
func (ex *executor) callContext(ctx context.Context) context.Context {
	seconds, ok := ex.st.QueryTimeout()
	if !ok || seconds <= 0 {
		return ctx
	}
	ctx, cancel := context.WithTimeout(ctx, time.Duration(seconds)*time.Second)
	ex.cancels = append(ex.cancels, cancel)
	return ctx
}

// execute runs the statement and reports whether it produced a result set.
func (ex *executor) execute(ctx context.Context) (bool, error) {
	start := time.Now()
	rows, err := ex.st.stmt.QueryContext(ex.callContext(ctx), ex.st.params...)
	if err != nil {
		return false, ex.fail(err)
	}
	cols, err := rows.Columns()
	if cerr := rows.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return false, ex.fail(err)
	}
	ex.complete(start)
	return len(cols) > 0, nil
}

func (ex *executor) executeQuery(ctx context.Context) (*Cursor, error) {
	start := time.Now()
	rows, err := ex.st.stmt.QueryContext(ex.callContext(ctx), ex.st.params...)
	if err != nil {
		return nil, ex.fail(err)
	}
	ex.complete(start)
	return newCursor(rows), nil
}

func (ex *executor) executeUpdate(ctx context.Context) (int, error) {
	start := time.Now()
	n, err := ex.update(ctx, ex.st.params)
	if err != nil {
		return 0, ex.fail(err)
	}
	ex.complete(start)
	return n, nil
}

// executeBatch flushes the enqueued parameter sets in order and returns one
// count per set.
func (ex *executor) executeBatch(ctx context.Context) ([]int, error) {
	start := time.Now()
	counts := make([]int, 0, len(ex.st.batch))
	for _, params := range ex.st.batch {
		n, err := ex.update(ctx, params)
		if err != nil {
			return nil, ex.fail(err)
		}
		counts = append(counts, n)
	}
	ex.st.batch = nil
	ex.complete(start)
	return counts, nil
}

func (ex *executor) update(ctx context.Context, params []any) (int, error) {
	st := ex.st
	ctx = ex.callContext(ctx)
	if st.keys == sourceReturning {
		return ex.updateReturning(ctx, params)
	}

	res, err := st.stmt.ExecContext(ctx, params...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if st.keys == sourceLastInsertID {
		id, err := res.LastInsertId()
		if err != nil {
			ex.log.Debug("driver did not report a generated key", zap.String("sql", st.sql), zap.Error(err))
		} else {
			ex.keys().add([]string{generatedKeyColumn}, []any{id})
		}
	}
	return int(n), nil
}

// updateReturning runs a statement carrying a RETURNING clause. Every
// returned row is a generated key row and counts as one affected row.
func (ex *executor) updateReturning(ctx context.Context, params []any) (n int, err error) {
	rows, err := ex.st.stmt.QueryContext(ctx, params...)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	cols, err := rows.Columns()
	if err != nil {
		return 0, err
	}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return 0, err
		}
		ex.keys().add(cols, values)
		n++
	}
	return n, rows.Err()
}

func (ex *executor) keys() *bufferedRows {
	if ex.st.generated == nil {
		ex.st.generated = &bufferedRows{}
	}
	return ex.st.generated
}

// fail reports err to the log and the failure listeners and returns it unchanged.
func (ex *executor) fail(err error) error {
	s := ex.settings
	if s.SQLErrorLogging {
		ex.log.Error("SQL execution failed",
			zap.String("sql", ex.formatSQL()),
			zap.Any("params", ex.params),
			zap.Strings("tags", ex.tags),
			zap.Error(err))
	}
	if l := s.QueryFailureListener; l != nil {
		notify(ex.log, func() { l(ex.template, ex.params, err) })
	}
	if l := s.TaggedQueryFailureListener; l != nil {
		notify(ex.log, func() { l(ex.template, ex.params, err, ex.tags) })
	}
	return err
}

func (ex *executor) complete(start time.Time) {
	elapsed := time.Since(start)
	ex.log.Debug("SQL execution completed",
		zap.String("sql", ex.st.sql),
		zap.Any("params", ex.params),
		zap.Duration("elapsed", elapsed),
		zap.Strings("tags", ex.tags))
	if l := ex.settings.QueryCompletionListener; l != nil {
		notify(ex.log, func() { l(ex.template, ex.params, elapsed) })
	}
}

// formatSQL pretty-prints the template, falling back to the raw template.
func (ex *executor) formatSQL() (out string) {
	out = ex.template
	f := ex.settings.SQLFormatter
	if f == nil {
		return out
	}
	defer func() {
		if r := recover(); r != nil {
			out = ex.template
		}
	}()
	formatted, err := f.Format(ex.template)
	if err != nil {
		ex.log.Debug("failed to format SQL", zap.Error(err))
		return ex.template
	}
	return formatted
}

func (ex *executor) close() {
	if err := ex.st.close(); err != nil {
		ex.log.Debug("failed to close statement", zap.String("sql", ex.st.sql), zap.Error(err))
	}
	for _, cancel := range ex.cancels {
		cancel()
	}
}

// notify runs a listener, keeping its panics away from the caller.
func notify(log *zap.Logger, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn("query listener panicked", zap.Any("panic", r))
		}
	}()
	fn()
}
