package runtime

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// DefaultDriver is used when no driver name is given.
const DefaultDriver = "postgres"

// Connect opens a database handle for driver using the given DSN. It does not
// ping; callers that need a live connection should do so themselves.
func Connect(driver, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DSN is empty")
	}
	driver = NormalizeDriver(driver)
	if driver == "postgres" {
		dsn = withSSLMode(dsn)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	return db, nil
}

// NormalizeDriver maps common aliases onto registered driver names.
func NormalizeDriver(driver string) string {
	switch d := strings.ToLower(strings.TrimSpace(driver)); d {
	case "", "postgresql", "pg":
		return DefaultDriver
	case "sqlite3":
		return "sqlite"
	default:
		return d
	}
}

// withSSLMode disables SSL for postgres URLs that do not say otherwise.
func withSSLMode(dsn string) string {
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return dsn
	}
	if strings.Contains(dsn, "sslmode=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "sslmode=disable"
}
