package database

import (
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 5 * time.Minute
	defaultConnMaxIdleTime = 1 * time.Minute

	sqliteDefaultParams = "_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"
)

// DB is a connection pool together with the SQL dialect it speaks.
// Queries are written with PostgreSQL placeholders ($1, $2, ...).
type DB struct {
	*sql.DB
	driver string
}

// Open creates a connection for the given driver and pings it to ensure connectivity.
func Open(driver, dataSourceName string) (*DB, error) {
	switch driver {
	case DriverPostgres:
	case DriverSQLite:
		if !strings.Contains(dataSourceName, "?") {
			dataSourceName += "?" + sqliteDefaultParams
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if driver == DriverSQLite {
		// SQLite allows a single writer; one connection keeps writes serialized.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(defaultMaxOpenConns)
		db.SetMaxIdleConns(defaultMaxIdleConns)
		db.SetConnMaxLifetime(defaultConnMaxLifetime)
		db.SetConnMaxIdleTime(defaultConnMaxIdleTime)
	}

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db, driver: driver}, nil
}

// Driver returns the driver name the pool was opened with.
func (db *DB) Driver() string {
	return db.driver
}

var placeholderRe = regexp.MustCompile(`\$(\d+)`)

// rebind rewrites $N placeholders into the form the driver understands.
func (db *DB) rebind(query string) string {
	if db.driver == DriverSQLite {
		return placeholderRe.ReplaceAllString(query, "?$1")
	}
	return query
}
