// File: internal/core/connection.go
package core

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"modernc.org/sqlite"

	"github.com/TechXTT/tormsql/pkg/runtime"
	"github.com/TechXTT/tormsql/pkg/session"
)

func Connect(driver, dsn string) (*sql.DB, error) {
	return runtime.Connect(driver, dsn)
}

func Close(db *sql.DB) error {
	return db.Close()
}

// DetectAttributes identifies the driver behind db. The product version is
// looked up for known drivers and left empty when the query fails.
func DetectAttributes(ctx context.Context, db *sql.DB) session.ConnectionAttributes {
	var attrs session.ConnectionAttributes
	var versionQuery string
	switch db.Driver().(type) {
	case *pq.Driver:
		attrs = session.ConnectionAttributes{DriverName: "postgres", ProductName: "PostgreSQL"}
		versionQuery = "SHOW server_version"
	case *mysql.MySQLDriver:
		attrs = session.ConnectionAttributes{DriverName: "mysql", ProductName: "MySQL"}
		versionQuery = "SELECT VERSION()"
	case *sqlite.Driver:
		attrs = session.ConnectionAttributes{DriverName: "sqlite", ProductName: "SQLite"}
		versionQuery = "SELECT sqlite_version()"
	default:
		name := strings.TrimPrefix(fmt.Sprintf("%T", db.Driver()), "*")
		return session.ConnectionAttributes{DriverName: name, ProductName: name}
	}

	var version string
	if err := db.QueryRowContext(ctx, versionQuery).Scan(&version); err == nil {
		attrs.ProductVersion = version
	}
	return attrs
}
