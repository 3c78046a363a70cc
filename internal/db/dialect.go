package db

import (
	"strings"

	"gorm.io/gorm"
)

// Dialect names as reported by gorm.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// DialectName returns the gorm dialector name, or "" for a nil connection.
func DialectName(conn *gorm.DB) string {
	if conn == nil || conn.Dialector == nil {
		return ""
	}
	return conn.Dialector.Name()
}

// ContainsPattern builds a LIKE pattern matching term anywhere, escaping wildcards.
func ContainsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

// ContainsFold returns a WHERE clause and its argument matching rows whose
// column contains term, ignoring case. SQLite has no ILIKE, so both sides are
// lowered there.
func ContainsFold(conn *gorm.DB, column, term string) (string, string) {
	pattern := ContainsPattern(term)
	if DialectName(conn) == DialectSQLite {
		return "LOWER(" + column + `) LIKE ? ESCAPE '\'`, strings.ToLower(pattern)
	}
	return column + ` ILIKE ? ESCAPE '\'`, pattern
}
