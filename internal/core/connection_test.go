package core

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectAttributes_SQLite(t *testing.T) {
	db, err := Connect("sqlite", ":memory:")
	require.NoError(t, err)
	defer Close(db)

	attrs := DetectAttributes(context.Background(), db)
	assert.Equal(t, "sqlite", attrs.DriverName)
	assert.Equal(t, "SQLite", attrs.ProductName)
	assert.NotEmpty(t, attrs.ProductVersion)
}

func TestDetectAttributes_UnknownDriver(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	attrs := DetectAttributes(context.Background(), db)
	assert.Contains(t, attrs.DriverName, "sqlmock")
	assert.Empty(t, attrs.ProductVersion)
}
