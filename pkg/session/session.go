package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StatementFilter gets direct access to a prepared statement right before or
// after it runs. A nil filter is skipped.
type StatementFilter func(*Statement) error

// Session runs statements over one database connection. It is either a
// *DBSession or NoSession. A Session is not safe for concurrent use.
type Session interface {
	IsReadOnly() bool

	Config() Config
	Configure(opts ...ConfigOption) error
	FetchSize() (int, bool)
	QueryTimeout() (int, bool)
	Tags() []string

	Execute(ctx context.Context, template string, params ...any) (bool, error)
	ExecuteWithFilters(ctx context.Context, before, after StatementFilter, template string, params ...any) (bool, error)
	Update(ctx context.Context, template string, params ...any) (int, error)
	ExecuteUpdate(ctx context.Context, template string, params ...any) (int, error)
	UpdateWithFilters(ctx context.Context, returnGeneratedKeys bool, before, after StatementFilter, template string, params ...any) (int, error)
	UpdateWithAutoGeneratedKeyNameAndFilters(ctx context.Context, returnGeneratedKeys bool, keyName string, before, after StatementFilter, template string, params ...any) (int, error)
	UpdateAndReturnGeneratedKey(ctx context.Context, template string, params ...any) (int64, error)
	UpdateAndReturnSpecifiedGeneratedKey(ctx context.Context, template string, key Key, params ...any) (int64, error)
	Batch(ctx context.Context, template string, paramsList ...[]any) ([]int, error)
	BatchAndReturnGeneratedKey(ctx context.Context, template string, paramsList ...[]any) ([]int64, error)
	BatchAndReturnSpecifiedGeneratedKey(ctx context.Context, template string, key Key, paramsList ...[]any) ([]int64, error)

	// Close releases the connection. It always returns nil.
	Close() error

	query(ctx context.Context, template string, params []any, fn func(*Cursor) error) error
}

var (
	_ Session = (*DBSession)(nil)
	_ Session = NoSession{}
)

// DBSession is an active session. It exclusively owns its connection until Close.
type DBSession struct {
	id       string
	conn     *sql.Conn
	tx       *Tx
	attrs    ConnectionAttributes
	readOnly bool
	settings SettingsProvider
	cfg      Config
	closed   bool
}

// Option configures a DBSession at construction.
type Option func(*DBSession)

// WithTx runs the session's statements inside tx. tx must be active.
func WithTx(tx *Tx) Option {
	return func(s *DBSession) { s.tx = tx }
}

// ReadOnly rejects every mutating call.
func ReadOnly() Option {
	return func(s *DBSession) { s.readOnly = true }
}

// WithSettings replaces the global settings lookup.
func WithSettings(p SettingsProvider) Option {
	return func(s *DBSession) {
		if p != nil {
			s.settings = p
		}
	}
}

// WithConfig sets the initial session configuration.
func WithConfig(cfg Config) Option {
	return func(s *DBSession) { s.cfg = cfg.clone() }
}

// New builds a session over conn. Without a transaction the connection runs
// in auto-commit mode, which is what database/sql does outside a Tx.
func New(conn *sql.Conn, attrs ConnectionAttributes, opts ...Option) (*DBSession, error) {
	if conn == nil {
		return nil, errors.New("session: nil connection")
	}
	s := &DBSession{
		id:       uuid.NewString(),
		conn:     conn,
		attrs:    attrs,
		settings: GlobalSettings(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx != nil && !s.tx.IsActive() {
		return nil, ErrTxNotActive
	}

	settings := s.settings.Settings()
	if s.tx == nil && !settings.TxManagerCompatible {
		s.logger(settings).Debug("session opened in auto-commit mode",
			zap.String("driver", attrs.DriverName), zap.Bool("read_only", s.readOnly))
	}
	return s, nil
}

// ID identifies the session in log entries.
func (s *DBSession) ID() string { return s.id }

// Attributes returns the connection attributes.
func (s *DBSession) Attributes() ConnectionAttributes { return s.attrs }

func (s *DBSession) IsReadOnly() bool { return s.readOnly }

// Config returns a copy of the current configuration.
func (s *DBSession) Config() Config { return s.cfg.clone() }

// Configure applies opts to the configuration used by subsequent calls.
func (s *DBSession) Configure(opts ...ConfigOption) error {
	for _, opt := range opts {
		opt(&s.cfg)
	}
	return nil
}

func (s *DBSession) FetchSize() (int, bool) {
	if s.cfg.FetchSize == nil {
		return 0, false
	}
	return *s.cfg.FetchSize, true
}

func (s *DBSession) QueryTimeout() (int, bool) {
	if s.cfg.QueryTimeout == nil {
		return 0, false
	}
	return *s.cfg.QueryTimeout, true
}

func (s *DBSession) Tags() []string { return s.cfg.clone().Tags }

func (s *DBSession) logger(settings Settings) *zap.Logger {
	return settings.logger().With(zap.String("session", s.id))
}

func (s *DBSession) preparer() preparer {
	if s.tx != nil {
		return s.tx.tx
	}
	return s.conn
}

func (s *DBSession) ensureWritable(template string) error {
	if s.readOnly {
		return &ReadOnlyError{Template: template}
	}
	return nil
}

// withExecutor prepares template and runs fn with the executor. The
// statement is closed when fn returns.
func (s *DBSession) withExecutor(ctx context.Context, template string, params []any, spec execSpec, fn func(*executor) error) error {
	settings := s.settings.Settings()
	ex, err := newExecutor(ctx, s.preparer(), settings, s.logger(settings), s.attrs, s.cfg, template, params, spec)
	if err != nil {
		return err
	}
	defer ex.close()
	return fn(ex)
}

func (s *DBSession) query(ctx context.Context, template string, params []any, fn func(*Cursor) error) error {
	return s.withExecutor(ctx, template, params, execSpec{}, func(ex *executor) error {
		ex.bind()
		c, err := ex.executeQuery(ctx)
		if err != nil {
			return err
		}
		defer c.Close()
		return fn(c)
	})
}

// Execute runs a statement and reports whether it returned a result set.
func (s *DBSession) Execute(ctx context.Context, template string, params ...any) (bool, error) {
	return s.ExecuteWithFilters(ctx, nil, nil, template, params...)
}

func (s *DBSession) ExecuteWithFilters(ctx context.Context, before, after StatementFilter, template string, params ...any) (bool, error) {
	if err := s.ensureWritable(template); err != nil {
		return false, err
	}
	var result bool
	err := s.withExecutor(ctx, template, params, execSpec{}, func(ex *executor) error {
		ex.bind()
		if err := applyFilter(before, ex.st); err != nil {
			return err
		}
		r, err := ex.execute(ctx)
		if err != nil {
			return err
		}
		result = r
		return applyFilter(after, ex.st)
	})
	return result, err
}

// Update runs a mutating statement and returns the affected row count.
func (s *DBSession) Update(ctx context.Context, template string, params ...any) (int, error) {
	return s.UpdateWithFilters(ctx, false, nil, nil, template, params...)
}

// ExecuteUpdate is an alias of Update.
func (s *DBSession) ExecuteUpdate(ctx context.Context, template string, params ...any) (int, error) {
	return s.Update(ctx, template, params...)
}

// UpdateWithFilters runs a mutating statement between two filters. With
// returnGeneratedKeys the after filter can read Statement.GeneratedKeys.
func (s *DBSession) UpdateWithFilters(ctx context.Context, returnGeneratedKeys bool, before, after StatementFilter, template string, params ...any) (int, error) {
	return s.update(ctx, execSpec{returnKeys: returnGeneratedKeys}, before, after, template, params)
}

// UpdateWithAutoGeneratedKeyNameAndFilters is UpdateWithFilters with the
// generated key column named explicitly.
func (s *DBSession) UpdateWithAutoGeneratedKeyNameAndFilters(ctx context.Context, returnGeneratedKeys bool, keyName string, before, after StatementFilter, template string, params ...any) (int, error) {
	return s.update(ctx, execSpec{returnKeys: returnGeneratedKeys, keyName: keyName}, before, after, template, params)
}

func (s *DBSession) update(ctx context.Context, spec execSpec, before, after StatementFilter, template string, params []any) (int, error) {
	if err := s.ensureWritable(template); err != nil {
		return 0, err
	}
	var count int
	err := s.withExecutor(ctx, template, params, spec, func(ex *executor) error {
		ex.bind()
		if err := applyFilter(before, ex.st); err != nil {
			return err
		}
		n, err := ex.executeUpdate(ctx)
		if err != nil {
			return err
		}
		count = n
		return applyFilter(after, ex.st)
	})
	return count, err
}

// UpdateAndReturnGeneratedKey returns the generated key at index 1.
func (s *DBSession) UpdateAndReturnGeneratedKey(ctx context.Context, template string, params ...any) (int64, error) {
	return s.UpdateAndReturnSpecifiedGeneratedKey(ctx, template, KeyIndex(1), params...)
}

// UpdateAndReturnSpecifiedGeneratedKey runs an update and returns the key
// selected by key. A key that cannot be read by name or index is read from
// index 1 instead.
func (s *DBSession) UpdateAndReturnSpecifiedGeneratedKey(ctx context.Context, template string, key Key, params ...any) (int64, error) {
	if err := s.ensureWritable(template); err != nil {
		return 0, err
	}
	if key == nil {
		return 0, fmt.Errorf("%w: nil", ErrInvalidKey)
	}

	log := s.logger(s.settings.Settings())
	var (
		found bool
		id    int64
	)
	// Only the first key row is read.
	after := func(st *Statement) error {
		for row, err := range st.GeneratedKeys().All() {
			if err != nil {
				return err
			}
			v, err := resolveKey(log, key, row)
			if err != nil {
				return err
			}
			id, found = v, true
			return nil
		}
		return nil
	}
	if _, err := s.update(ctx, keySpec(key), nil, after, template, params); err != nil {
		return 0, err
	}
	if !found {
		return 0, &KeyNotRetrievableError{Template: template}
	}
	return id, nil
}

// Batch runs template once per parameter set and returns one count per set,
// in order. An empty paramsList does not touch the connection.
func (s *DBSession) Batch(ctx context.Context, template string, paramsList ...[]any) ([]int, error) {
	if err := s.ensureWritable(template); err != nil {
		return nil, err
	}
	if len(paramsList) == 0 {
		return []int{}, nil
	}
	var counts []int
	err := s.withExecutor(ctx, template, batchParams(paramsList), execSpec{}, func(ex *executor) error {
		ex.bindBatch(paramsList)
		c, err := ex.executeBatch(ctx)
		counts = c
		return err
	})
	return counts, err
}

// BatchAndReturnGeneratedKey is BatchAndReturnSpecifiedGeneratedKey with index 1.
func (s *DBSession) BatchAndReturnGeneratedKey(ctx context.Context, template string, paramsList ...[]any) ([]int64, error) {
	return s.BatchAndReturnSpecifiedGeneratedKey(ctx, template, KeyIndex(1), paramsList...)
}

// BatchAndReturnSpecifiedGeneratedKey runs a batch and returns the generated
// keys in the order the driver reports them. That order is not guaranteed to
// match paramsList.
func (s *DBSession) BatchAndReturnSpecifiedGeneratedKey(ctx context.Context, template string, key Key, paramsList ...[]any) ([]int64, error) {
	if err := s.ensureWritable(template); err != nil {
		return nil, err
	}
	if key == nil {
		return nil, fmt.Errorf("%w: nil", ErrInvalidKey)
	}
	if len(paramsList) == 0 {
		return []int64{}, nil
	}

	var keys []int64
	err := s.withExecutor(ctx, template, batchParams(paramsList), keySpec(key), func(ex *executor) error {
		ex.bindBatch(paramsList)
		if _, err := ex.executeBatch(ctx); err != nil {
			return err
		}
		keys = make([]int64, 0, len(paramsList))
		for row, err := range ex.st.GeneratedKeys().All() {
			if err != nil {
				return err
			}
			v, err := resolveKey(ex.log, key, row)
			if err != nil {
				return err
			}
			keys = append(keys, v)
		}
		return nil
	})
	return keys, err
}

// Close returns the connection. Close failures are logged and dropped;
// calling Close again is a no-op.
func (s *DBSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	settings := s.settings.Settings()
	log := s.logger(settings)
	if err := s.conn.Close(); err != nil {
		log.Debug("failed to close connection", zap.Error(err))
		return nil
	}
	if settings.ConnectionCloseLogging {
		log.Debug("connection closed")
	}
	return nil
}

func applyFilter(f StatementFilter, st *Statement) error {
	if f == nil {
		return nil
	}
	return f(st)
}

func keySpec(key Key) execSpec {
	spec := execSpec{returnKeys: true}
	if name, ok := key.(KeyName); ok {
		spec.keyName = string(name)
	}
	return spec
}

func batchParams(paramsList [][]any) []any {
	out := make([]any, len(paramsList))
	for i, p := range paramsList {
		out[i] = p
	}
	return out
}

// NoSession stands for the absence of a session. Every operation on it
// returns ErrNoSession.
type NoSession struct{}

func (NoSession) IsReadOnly() bool                { return true }
func (NoSession) Config() Config                  { return Config{} }
func (NoSession) Configure(...ConfigOption) error { return ErrNoSession }
func (NoSession) FetchSize() (int, bool)          { return 0, false }
func (NoSession) QueryTimeout() (int, bool)       { return 0, false }
func (NoSession) Tags() []string                  { return nil }
func (NoSession) Close() error                    { return nil }

func (NoSession) Execute(context.Context, string, ...any) (bool, error) {
	return false, ErrNoSession
}

func (NoSession) ExecuteWithFilters(context.Context, StatementFilter, StatementFilter, string, ...any) (bool, error) {
	return false, ErrNoSession
}

func (NoSession) Update(context.Context, string, ...any) (int, error) { return 0, ErrNoSession }

func (NoSession) ExecuteUpdate(context.Context, string, ...any) (int, error) { return 0, ErrNoSession }

func (NoSession) UpdateWithFilters(context.Context, bool, StatementFilter, StatementFilter, string, ...any) (int, error) {
	return 0, ErrNoSession
}

func (NoSession) UpdateWithAutoGeneratedKeyNameAndFilters(context.Context, bool, string, StatementFilter, StatementFilter, string, ...any) (int, error) {
	return 0, ErrNoSession
}

func (NoSession) UpdateAndReturnGeneratedKey(context.Context, string, ...any) (int64, error) {
	return 0, ErrNoSession
}

func (NoSession) UpdateAndReturnSpecifiedGeneratedKey(context.Context, string, Key, ...any) (int64, error) {
	return 0, ErrNoSession
}

func (NoSession) Batch(context.Context, string, ...[]any) ([]int, error) { return nil, ErrNoSession }

func (NoSession) BatchAndReturnGeneratedKey(context.Context, string, ...[]any) ([]int64, error) {
	return nil, ErrNoSession
}

func (NoSession) BatchAndReturnSpecifiedGeneratedKey(context.Context, string, Key, ...[]any) ([]int64, error) {
	return nil, ErrNoSession
}

func (NoSession) query(context.Context, string, []any, func(*Cursor) error) error {
	return ErrNoSession
}
