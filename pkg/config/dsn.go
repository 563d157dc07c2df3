package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/spf13/cast"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/TechXTT/tormsql/pkg/runtime"
	"github.com/TechXTT/tormsql/pkg/session"
)

// DefaultSchemaPath is consulted for the datasource url when DATABASE_URL is unset.
const DefaultSchemaPath = "prisma/schema.prisma"

// Config holds the connection and session settings.
type Config struct {
	Driver        string
	DSN           string
	SchemaPath    string
	MigrationsDir string

	// Nil means the global session setting is kept.
	SQLErrorLogging        *bool
	ConnectionCloseLogging *bool
	TxManagerCompatible    *bool
	KeyByNameDrivers       []string

	FetchSize    *int
	QueryTimeout *int

	LogLevel string
}

var schemaURL = regexp.MustCompile(`url\s*=\s*(?:env\("([^"]+)"\)|"([^"]+)")`)

// Load reads the given env files (or .env when none is given) and builds a
// Config from the environment. A missing default .env is not an error.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		if len(envFiles) > 0 || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env: %w", err)
		}
	}

	cfg := &Config{
		Driver:           runtime.NormalizeDriver(os.Getenv("TORM_DRIVER")),
		DSN:              os.Getenv("DATABASE_URL"),
		SchemaPath:       env("TORM_SCHEMA", DefaultSchemaPath),
		MigrationsDir:    env("TORM_MIGRATIONS_DIR", "migrations"),
		KeyByNameDrivers: list(os.Getenv("TORM_KEY_BY_NAME_DRIVERS")),
		LogLevel:         env("TORM_LOG_LEVEL", "info"),
	}

	var err error
	if cfg.SQLErrorLogging, err = boolVar("TORM_SQL_ERROR_LOGGING"); err != nil {
		return nil, err
	}
	if cfg.ConnectionCloseLogging, err = boolVar("TORM_CONNECTION_CLOSE_LOGGING"); err != nil {
		return nil, err
	}
	if cfg.TxManagerCompatible, err = boolVar("TORM_TX_MANAGER_COMPATIBLE"); err != nil {
		return nil, err
	}
	if cfg.FetchSize, err = intVar("TORM_FETCH_SIZE"); err != nil {
		return nil, err
	}
	if cfg.QueryTimeout, err = intVar("TORM_QUERY_TIMEOUT"); err != nil {
		return nil, err
	}

	if cfg.DSN == "" {
		dsn, err := dsnFromSchema(cfg.SchemaPath)
		if err != nil {
			return nil, err
		}
		cfg.DSN = dsn
	}
	return cfg, nil
}

// dsnFromSchema reads the datasource url of a Prisma schema. A missing schema
// file yields an empty DSN.
func dsnFromSchema(schemaFile string) (string, error) {
	data, err := os.ReadFile(schemaFile)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	m := schemaURL.FindStringSubmatch(string(data))
	if len(m) != 3 {
		return "", fmt.Errorf("could not parse datasource url from schema: %s", schemaFile)
	}
	if m[1] != "" {
		return os.Getenv(m[1]), nil
	}
	return m[2], nil
}

// Overrides returns the session settings this config changes.
func (c *Config) Overrides() session.Overrides {
	return session.Overrides{
		KeyByNameDrivers:       c.KeyByNameDrivers,
		SQLErrorLogging:        c.SQLErrorLogging,
		ConnectionCloseLogging: c.ConnectionCloseLogging,
		TxManagerCompatible:    c.TxManagerCompatible,
	}
}

// SessionConfig returns the per-session execution defaults.
func (c *Config) SessionConfig() session.Config {
	return session.Config{FetchSize: c.FetchSize, QueryTimeout: c.QueryTimeout}
}

// Logger builds a console logger at the configured level.
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.DisableStacktrace = true
	return zc.Build()
}

func env(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func list(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return lo.Compact(lo.Map(strings.Split(v, ","), func(s string, _ int) string {
		return strings.ToLower(strings.TrimSpace(s))
	}))
}

func boolVar(key string) (*bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return nil, nil
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return &b, nil
}

func intVar(key string) (*int, error) {
	v := os.Getenv(key)
	if v == "" {
		return nil, nil
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return &n, nil
}
