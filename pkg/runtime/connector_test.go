package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect_EmptyDSN(t *testing.T) {
	_, err := Connect("postgres", "")
	require.Error(t, err)
}

func TestConnect_UnknownDriver(t *testing.T) {
	_, err := Connect("oracle", "whatever")
	require.Error(t, err)
}

func TestConnect_SQLite(t *testing.T) {
	db, err := Connect("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Ping())
}

func TestWithSSLMode(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"postgres://u@h/db", "postgres://u@h/db?sslmode=disable"},
		{"postgres://u@h/db?x=1", "postgres://u@h/db?x=1&sslmode=disable"},
		{"postgres://u@h/db?sslmode=require", "postgres://u@h/db?sslmode=require"},
		{"host=h dbname=db", "host=h dbname=db"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, withSSLMode(tt.in))
	}
}

func TestNormalizeDriver(t *testing.T) {
	assert.Equal(t, "postgres", NormalizeDriver(""))
	assert.Equal(t, "postgres", NormalizeDriver("PostgreSQL"))
	assert.Equal(t, "sqlite", NormalizeDriver("sqlite3"))
	assert.Equal(t, "mysql", NormalizeDriver("mysql"))
}
