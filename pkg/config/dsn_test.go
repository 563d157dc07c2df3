package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// clearEnv unsets every variable Load reads for the duration of the test.
func clearEnv(t *testing.T) {
	for _, k := range []string{
		"TORM_DRIVER", "DATABASE_URL", "TORM_SCHEMA", "TORM_MIGRATIONS_DIR",
		"TORM_SQL_ERROR_LOGGING", "TORM_CONNECTION_CLOSE_LOGGING", "TORM_TX_MANAGER_COMPATIBLE",
		"TORM_KEY_BY_NAME_DRIVERS", "TORM_FETCH_SIZE", "TORM_QUERY_TIMEOUT", "TORM_LOG_LEVEL",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_FromEnvFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"TORM_DRIVER=sqlite3\n"+
			"DATABASE_URL=file::memory:\n"+
			"TORM_KEY_BY_NAME_DRIVERS=Postgres, sqlite,\n"+
			"TORM_CONNECTION_CLOSE_LOGGING=true\n"+
			"TORM_FETCH_SIZE=500\n"+
			"TORM_QUERY_TIMEOUT=30\n"+
			"TORM_LOG_LEVEL=debug\n"), 0o644))

	cfg, err := Load(envFile)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Driver)
	assert.Equal(t, "file::memory:", cfg.DSN)
	assert.Equal(t, []string{"postgres", "sqlite"}, cfg.KeyByNameDrivers)
	assert.Equal(t, "migrations", cfg.MigrationsDir)
	assert.Nil(t, cfg.SQLErrorLogging)

	o := cfg.Overrides()
	require.NotNil(t, o.ConnectionCloseLogging)
	assert.True(t, *o.ConnectionCloseLogging)
	assert.Equal(t, []string{"postgres", "sqlite"}, o.KeyByNameDrivers)

	sc := cfg.SessionConfig()
	require.NotNil(t, sc.FetchSize)
	require.NotNil(t, sc.QueryTimeout)
	assert.Equal(t, 500, *sc.FetchSize)
	assert.Equal(t, 30, *sc.QueryTimeout)

	log, err := cfg.Logger()
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestLoad_DSNFromSchema(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	schema := filepath.Join(dir, "schema.prisma")
	require.NoError(t, os.WriteFile(schema, []byte(`datasource db {
  provider = "postgresql"
  url      = env("APP_DB_URL")
}`), 0o644))
	t.Setenv("TORM_SCHEMA", schema)
	t.Setenv("APP_DB_URL", "postgres://u@localhost/app")

	cfg, err := Load(filepath.Join(dir, "missing.env"))
	require.Error(t, err)
	assert.Nil(t, cfg)

	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Driver)
	assert.Equal(t, "postgres://u@localhost/app", cfg.DSN)
}

func TestLoad_InvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("TORM_FETCH_SIZE", "lots")
	_, err := Load()
	require.Error(t, err)

	clearEnv(t)
	t.Setenv("TORM_SQL_ERROR_LOGGING", "maybe")
	_, err = Load()
	require.Error(t, err)
}

func TestDSNFromSchema_Literal(t *testing.T) {
	schema := filepath.Join(t.TempDir(), "schema.prisma")
	require.NoError(t, os.WriteFile(schema, []byte(`url = "mysql://root@/app"`), 0o644))

	dsn, err := dsnFromSchema(schema)
	require.NoError(t, err)
	assert.Equal(t, "mysql://root@/app", dsn)

	dsn, err = dsnFromSchema(filepath.Join(t.TempDir(), "none.prisma"))
	require.NoError(t, err)
	assert.Empty(t, dsn)
}
