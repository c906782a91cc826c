package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// DB carries the driver alongside the pool so repositories can adapt
// placeholders and locking to the dialect.
type DB struct {
	*sql.DB
	Driver Driver
}

func ParseDriver(value string) (Driver, error) {
	switch Driver(strings.ToLower(strings.TrimSpace(value))) {
	case DriverSQLite, "sqlite3", "":
		return DriverSQLite, nil
	case DriverPostgres, "postgresql":
		return DriverPostgres, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", value)
}

func Open(driver Driver, dsn string) (*DB, error) {
	switch driver {
	case DriverSQLite:
		return openSQLite(dsn)
	case DriverPostgres:
		return openPostgres(dsn)
	}
	return nil, fmt.Errorf("unsupported database driver %q", driver)
}

func openSQLite(databasePath string) (*DB, error) {
	if databasePath != ":memory:" {
		directory := filepath.Dir(databasePath)
		if err := os.MkdirAll(directory, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	database, err := sql.Open("sqlite", databasePath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One connection serializes writers, which makes check-then-insert
	// transactions atomic and keeps an in-memory database alive.
	database.SetMaxOpenConns(1)

	if databasePath != ":memory:" {
		if _, err := database.Exec("PRAGMA journal_mode=WAL"); err != nil {
			database.Close()
			return nil, fmt.Errorf("setting WAL mode: %w", err)
		}
	}
	if _, err := database.Exec("PRAGMA foreign_keys=ON"); err != nil {
		database.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if err := database.Ping(); err != nil {
		database.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &DB{DB: database, Driver: DriverSQLite}, nil
}

func openPostgres(connStr string) (*DB, error) {
	database, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	database.SetMaxOpenConns(25)
	database.SetMaxIdleConns(25)
	database.SetConnMaxLifetime(5 * time.Minute)

	if err := database.Ping(); err != nil {
		database.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &DB{DB: database, Driver: DriverPostgres}, nil
}

// Rebind rewrites '?' placeholders into the driver's native form.
func (db *DB) Rebind(query string) string {
	if db.Driver != DriverPostgres {
		return query
	}

	var builder strings.Builder
	builder.Grow(len(query) + 8)
	position := 0
	inString := false
	for _, char := range query {
		switch {
		case char == '\'':
			inString = !inString
			builder.WriteRune(char)
		case char == '?' && !inString:
			position++
			builder.WriteByte('$')
			builder.WriteString(strconv.Itoa(position))
		default:
			builder.WriteRune(char)
		}
	}
	return builder.String()
}
