package store

import (
	_ "embed"
	"strconv"
	"strings"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

//go:embed schema_postgres.sql
var postgresSchema string

// dialect captures the few places where SQLite and PostgreSQL differ.
// Queries are written once with ? placeholders and rebound per dialect.
type dialect struct {
	name string

	// driver is the database/sql driver name.
	driver string

	// schema is applied on open.
	schema string

	// lockCurrent is appended to the current-row lookup. SQLite serializes
	// writers with BEGIN IMMEDIATE, so it needs no row lock.
	lockCurrent string

	// numbered placeholders ($1, $2, ...) instead of ?
	numbered bool
}

var (
	sqliteDialect = dialect{
		name:   "sqlite",
		driver: "sqlite3",
		schema: sqliteSchema,
	}
	postgresDialect = dialect{
		name:        "postgres",
		driver:      "pgx",
		schema:      postgresSchema,
		lockCurrent: " FOR UPDATE",
		numbered:    true,
	}
)

// rebind rewrites ? placeholders for the dialect.
// Queries in this package never contain a literal question mark.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
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

// statements splits the schema into individual statements so that both
// drivers can run them one Exec at a time. Comment lines are dropped first
// so that a ';' inside a comment cannot split a statement.
func (d dialect) statements() []string {
	var out []string
	for _, stmt := range strings.Split(stripSQLComments(d.schema), ";") {
		if isBlankSQL(stmt) {
			continue
		}
		out = append(out, strings.TrimSpace(stmt))
	}
	return out
}

// stripSQLComments removes whole-line "--" comments.
func stripSQLComments(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func isBlankSQL(s string) bool {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "--") {
			return false
		}
	}
	return true
}

// sqliteDSN adds the connection parameters the store relies on.
// BEGIN IMMEDIATE takes the write lock up front so concurrent batches queue
// on busy_timeout instead of failing on lock upgrade.
func sqliteDSN(path string) string {
	params := "_txlock=immediate&_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL&_synchronous=NORMAL"
	if strings.Contains(path, "?") {
		return path + "&" + params
	}
	return "file:" + path + "?" + params
}
