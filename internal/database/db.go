package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// Dialect names the SQL backend a handle talks to.
type Dialect string

const (
	MySQL  Dialect = "mysql"
	SQLite Dialect = "sqlite"
)

// Open connects to MySQL and verifies the connection.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	// Timestamps are BIGINT microseconds; loc=UTC pins the session zone anyway.
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, host, port, name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := ping(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// OpenSQLite opens an embedded SQLite database at path (":memory:" for an
// ephemeral one).  SQLite serializes writers anyway, and an in-memory
// database exists per connection, so the pool is pinned to one connection.
func OpenSQLite(path string) (*sql.DB, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := ping(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func ping(db *sql.DB) error {
	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// Migrate creates the shelters table if it does not exist.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	var ddl string
	switch d {
	case MySQL:
		ddl = `CREATE TABLE IF NOT EXISTS shelters (
			id                VARCHAR(64)  NOT NULL PRIMARY KEY,
			name              VARCHAR(255) NOT NULL,
			address           VARCHAR(512) NOT NULL DEFAULT '',
			latitude          DOUBLE       NOT NULL DEFAULT 0,
			longitude         DOUBLE       NOT NULL DEFAULT 0,
			total_beds        INT          NOT NULL,
			available_beds    INT          NOT NULL,
			allows_pets       TINYINT(1)   NOT NULL DEFAULT 0,
			requires_sobriety TINYINT(1)   NOT NULL DEFAULT 0,
			accepts_families  TINYINT(1)   NOT NULL DEFAULT 0,
			contact_phone     VARCHAR(64)  NOT NULL DEFAULT '',
			contact_email     VARCHAR(255) NOT NULL DEFAULT '',
			last_updated_us   BIGINT       NOT NULL,
			updated_by        VARCHAR(255) NOT NULL DEFAULT '',
			created_at_us     BIGINT       NOT NULL,
			revision          BIGINT       NOT NULL DEFAULT 0,
			CHECK (available_beds >= 0 AND available_beds <= total_beds),
			KEY idx_shelters_name (name)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`
	case SQLite:
		ddl = `CREATE TABLE IF NOT EXISTS shelters (
			id                TEXT    NOT NULL PRIMARY KEY,
			name              TEXT    NOT NULL,
			address           TEXT    NOT NULL DEFAULT '',
			latitude          REAL    NOT NULL DEFAULT 0,
			longitude         REAL    NOT NULL DEFAULT 0,
			total_beds        INTEGER NOT NULL,
			available_beds    INTEGER NOT NULL,
			allows_pets       INTEGER NOT NULL DEFAULT 0,
			requires_sobriety INTEGER NOT NULL DEFAULT 0,
			accepts_families  INTEGER NOT NULL DEFAULT 0,
			contact_phone     TEXT    NOT NULL DEFAULT '',
			contact_email     TEXT    NOT NULL DEFAULT '',
			last_updated_us   INTEGER NOT NULL,
			updated_by        TEXT    NOT NULL DEFAULT '',
			created_at_us     INTEGER NOT NULL,
			revision          INTEGER NOT NULL DEFAULT 0,
			CHECK (available_beds >= 0 AND available_beds <= total_beds)
		)`
	default:
		return fmt.Errorf("migrate: unknown dialect %q", d)
	}
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("migrate %s: %w", d, err)
	}
	if d == SQLite {
		if _, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_shelters_name ON shelters(name)`); err != nil {
			return fmt.Errorf("migrate %s: %w", d, err)
		}
	}
	return nil
}
