package querysql

import (
	"fmt"
	"strconv"
)

// Dialect captures the SQL differences between supported backing stores.
type Dialect struct {
	// Name is the database/sql driver name.
	Name string

	// MaxParams is the largest number of bound parameters one statement may
	// carry. Batch sizes are clamped so no statement exceeds it.
	MaxParams int

	numbered bool // $1, $2, ... instead of ?
}

var (
	// SQLite uses ? placeholders. SQLITE_MAX_VARIABLE_NUMBER defaults to
	// 32766 since 3.32; older builds allow only 999.
	SQLite = Dialect{Name: "sqlite3", MaxParams: 32766}

	// Postgres uses numbered placeholders and a 16-bit parameter count.
	Postgres = Dialect{Name: "pgx", MaxParams: 65535, numbered: true}
)

// DialectFor returns the dialect registered for a database/sql driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "sqlite3", "sqlite":
		return SQLite, nil
	case "pgx", "postgres", "postgresql":
		return Postgres, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported driver %q", driver)
	}
}

func (d Dialect) placeholder(n int) string {
	if d.numbered {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// MaxRows returns how many rows of width columns fit in one statement.
func (d Dialect) MaxRows(columns int) int {
	if columns <= 0 {
		return 0
	}
	return d.MaxParams / columns
}
