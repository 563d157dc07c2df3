package session

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// SQLFormatter pretty-prints SQL for log messages.
type SQLFormatter interface {
	Format(sql string) (string, error)
}

// SQLFormatterFunc adapts a function to SQLFormatter.
type SQLFormatterFunc func(sql string) (string, error)

func (f SQLFormatterFunc) Format(sql string) (string, error) { return f(sql) }

// QueryFailureListener is notified when a statement fails to prepare or execute.
type QueryFailureListener func(template string, params []any, err error)

// TaggedQueryFailureListener is a QueryFailureListener that also receives the session tags.
type TaggedQueryFailureListener func(template string, params []any, err error, tags []string)

// QueryCompletionListener is notified after every successful statement.
type QueryCompletionListener func(template string, params []any, elapsed time.Duration)

// Settings is the passive configuration a session consults on every call.
type Settings struct {
	// KeyByNameDrivers lists drivers that must be asked for generated keys by column name.
	KeyByNameDrivers []string
	// ReturningAllDrivers lists drivers that satisfy the generic generated key
	// request with RETURNING * instead of LastInsertId.
	ReturningAllDrivers []string

	SQLErrorLogging        bool
	ConnectionCloseLogging bool
	// TxManagerCompatible marks data sources whose connections are managed by
	// an outer transaction manager.
	TxManagerCompatible bool

	SQLFormatter               SQLFormatter
	QueryFailureListener       QueryFailureListener
	TaggedQueryFailureListener TaggedQueryFailureListener
	QueryCompletionListener    QueryCompletionListener

	// Logger defaults to zap.L().
	Logger *zap.Logger
}

// DefaultSettings returns the process-wide defaults.
func DefaultSettings() Settings {
	return Settings{
		KeyByNameDrivers:    []string{"postgres", "pgx"},
		ReturningAllDrivers: []string{"postgres", "pgx"},
		SQLErrorLogging:     true,
	}
}

func (s Settings) logger() *zap.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return zap.L()
}

func (s Settings) keyByName(driver string) bool {
	return containsFold(s.KeyByNameDrivers, driver)
}

func (s Settings) returningAll(driver string) bool {
	return containsFold(s.ReturningAllDrivers, driver)
}

func containsFold(names []string, name string) bool {
	return lo.ContainsBy(names, func(n string) bool {
		return strings.EqualFold(strings.TrimSpace(n), name)
	})
}

// SettingsProvider looks up the settings in effect for one call.
type SettingsProvider interface {
	Settings() Settings
}

// SettingsFunc adapts a function to SettingsProvider.
type SettingsFunc func() Settings

func (f SettingsFunc) Settings() Settings { return f() }

var global atomic.Pointer[Settings]

func init() {
	s := DefaultSettings()
	global.Store(&s)
}

// SetGlobalSettings replaces the process-wide settings. Sessions pick the new
// value up on their next call.
func SetGlobalSettings(s Settings) {
	global.Store(&s)
}

// GlobalSettings returns a provider reading the process-wide settings.
func GlobalSettings() SettingsProvider {
	return SettingsFunc(func() Settings { return *global.Load() })
}

// Overrides replaces selected global settings for one data source or session.
// Nil fields fall back to the global value.
type Overrides struct {
	KeyByNameDrivers    []string
	ReturningAllDrivers []string

	SQLErrorLogging        *bool
	ConnectionCloseLogging *bool
	TxManagerCompatible    *bool

	SQLFormatter               SQLFormatter
	QueryFailureListener       QueryFailureListener
	TaggedQueryFailureListener TaggedQueryFailureListener
	QueryCompletionListener    QueryCompletionListener
	Logger                     *zap.Logger
}

// Settings merges the overrides onto the current global settings.
func (o Overrides) Settings() Settings {
	s := *global.Load()
	if o.KeyByNameDrivers != nil {
		s.KeyByNameDrivers = o.KeyByNameDrivers
	}
	if o.ReturningAllDrivers != nil {
		s.ReturningAllDrivers = o.ReturningAllDrivers
	}
	if o.SQLErrorLogging != nil {
		s.SQLErrorLogging = *o.SQLErrorLogging
	}
	if o.ConnectionCloseLogging != nil {
		s.ConnectionCloseLogging = *o.ConnectionCloseLogging
	}
	if o.TxManagerCompatible != nil {
		s.TxManagerCompatible = *o.TxManagerCompatible
	}
	if o.SQLFormatter != nil {
		s.SQLFormatter = o.SQLFormatter
	}
	if o.QueryFailureListener != nil {
		s.QueryFailureListener = o.QueryFailureListener
	}
	if o.TaggedQueryFailureListener != nil {
		s.TaggedQueryFailureListener = o.TaggedQueryFailureListener
	}
	if o.QueryCompletionListener != nil {
		s.QueryCompletionListener = o.QueryCompletionListener
	}
	if o.Logger != nil {
		s.Logger = o.Logger
	}
	return s
}
