package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"  // postgres driver
	_ "modernc.org/sqlite" // sqlite driver
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// dialect captures the SQL differences between the supported drivers.
type dialect struct {
	name     string
	serialPK string
	float    string
	least    string
	greatest string
	numbered bool // $1, $2 placeholders
	// onConnect runs once per physical connection.
	onConnect func(ctx context.Context, conn *sql.Conn) error
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case DriverSQLite:
		return dialect{
			name:      DriverSQLite,
			serialPK:  "INTEGER PRIMARY KEY AUTOINCREMENT",
			float:     "REAL",
			least:     "min",
			greatest:  "max",
			onConnect: sqlitePragmas,
		}, nil
	case DriverPostgres:
		return dialect{
			name:     DriverPostgres,
			serialPK: "BIGSERIAL PRIMARY KEY",
			float:    "DOUBLE PRECISION",
			least:    "LEAST",
			greatest: "GREATEST",
			numbered: true,
		}, nil
	default:
		return dialect{}, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
}

// sqlitePragmas enforces WAL, a 5s busy timeout and foreign keys on each
// connection. journal_mode is persistent, the others are per connection.
func sqlitePragmas(ctx context.Context, conn *sql.Conn) error {
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders for drivers that number them. Queries in
// this package never carry a literal '?'.
func (d dialect) rebind(query string) string {
	if !d.numbered || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
