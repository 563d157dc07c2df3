package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/TechXTT/tormsql/internal/core"
	"github.com/TechXTT/tormsql/pkg/config"
	"github.com/TechXTT/tormsql/pkg/session"
)

// DB is a data source that hands out sessions over pooled connections.
type DB struct {
	Conn       *sql.DB
	Settings   session.SettingsProvider
	Attributes session.ConnectionAttributes

	// Config is applied to every new session.
	Config session.Config
}

// NewDB opens and pings a database connection for driver.
func NewDB(driver, dataSourceName string) (*DB, error) {
	conn, err := core.Connect(driver, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return Wrap(conn, core.DetectAttributes(context.Background(), conn)), nil
}

// Open connects using a loaded config and applies its session settings.
func Open(cfg *config.Config) (*DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("no DSN configured: set DATABASE_URL or a schema datasource url")
	}
	db, err := NewDB(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	db.Settings = cfg.Overrides()
	db.Config = cfg.SessionConfig()
	return db, nil
}

// Wrap uses an already opened handle. Settings default to the global ones.
func Wrap(conn *sql.DB, attrs session.ConnectionAttributes) *DB {
	return &DB{Conn: conn, Settings: session.GlobalSettings(), Attributes: attrs}
}

// Close closes the underlying pool.
func (db *DB) Close() error {
	return core.Close(db.Conn)
}

// Session borrows a connection and returns a session owning it. The caller
// must close the session.
func (db *DB) Session(ctx context.Context, readOnly bool, opts ...session.Option) (*session.DBSession, error) {
	conn, err := db.Conn.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	base := []session.Option{session.WithSettings(db.settings()), session.WithConfig(db.Config)}
	if readOnly {
		base = append(base, session.ReadOnly())
	}
	s, err := session.New(conn, db.Attributes, append(base, opts...)...)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func (db *DB) settings() session.SettingsProvider {
	if db.Settings == nil {
		return session.GlobalSettings()
	}
	return db.Settings
}

func (db *DB) logger() *zap.Logger {
	if l := db.settings().Settings().Logger; l != nil {
		return l
	}
	return zap.L()
}

// AutoCommit runs fn with a writable session where every statement commits
// on its own.
func (db *DB) AutoCommit(ctx context.Context, fn func(session.Session) error) error {
	s, err := db.Session(ctx, false)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

// ReadOnly runs fn with a session that rejects writes.
func (db *DB) ReadOnly(ctx context.Context, fn func(session.Session) error) error {
	s, err := db.Session(ctx, true)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

// LocalTx runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back otherwise.
func (db *DB) LocalTx(ctx context.Context, fn func(session.Session) error, opts ...*sql.TxOptions) error {
	conn, err := db.Conn.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	var txOpts *sql.TxOptions
	if len(opts) > 0 {
		txOpts = opts[0]
	}
	tx, err := session.BeginTx(ctx, conn, txOpts)
	if err != nil {
		conn.Close()
		return fmt.Errorf("begin transaction: %w", err)
	}
	readOnly := txOpts != nil && txOpts.ReadOnly
	sopts := []session.Option{session.WithSettings(db.settings()), session.WithConfig(db.Config), session.WithTx(tx)}
	if readOnly {
		sopts = append(sopts, session.ReadOnly())
	}
	s, err := session.New(conn, db.Attributes, sopts...)
	if err != nil {
		tx.Rollback()
		conn.Close()
		return err
	}
	defer s.Close()

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(s); err != nil {
		if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
			db.logger().Debug("rollback failed", zap.Error(rerr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Query starts a SELECT builder over s that extracts rows with extract.
func Query[T any](s session.Session, extract session.Extractor[T]) *core.QueryBuilder[T] {
	return core.NewQueryBuilder(s, extract)
}
