package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// researcherColumns are the person-level columns, in insert order.
var researcherColumns = []string{
	"id", "email", "first_name", "last_name", "date_of_birth", "nationality", "phone",
	"current_position", "institution", "department", "research_interests",
	"source_name", "content_hash", "created_at",
}

const researchersDDL = `CREATE TABLE IF NOT EXISTS researchers (
	id TEXT PRIMARY KEY,
	email TEXT UNIQUE,
	first_name TEXT,
	last_name TEXT,
	date_of_birth TEXT,
	nationality TEXT,
	phone TEXT,
	current_position TEXT,
	institution TEXT,
	department TEXT,
	research_interests TEXT,
	source_name TEXT NOT NULL,
	content_hash TEXT,
	created_at BIGINT NOT NULL
)`

// childDDL builds the table for one child collection. Every column besides the keys is nullable.
func childDDL(c child) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", c.table)
	b.WriteString("\tid TEXT PRIMARY KEY,\n")
	b.WriteString("\tresearcher_id TEXT NOT NULL REFERENCES researchers(id) ON DELETE CASCADE,\n")
	b.WriteString("\tseq INTEGER NOT NULL")
	for _, col := range c.columns {
		fmt.Fprintf(&b, ",\n\t%s %s", col.name, col.sqlType)
	}
	b.WriteString("\n)")
	return b.String()
}

// Migrate creates the tables and indexes if they do not exist. The DDL is portable
// between Postgres and SQLite.
func Migrate(ctx context.Context, db *DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()
	stmts := []string{
		researchersDDL,
		`CREATE INDEX IF NOT EXISTS researchers_created_at_idx ON researchers (created_at)`,
		`CREATE INDEX IF NOT EXISTS researchers_last_name_idx ON researchers (last_name)`,
	}
	for _, c := range children {
		stmts = append(stmts,
			childDDL(c),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_researcher_idx ON %s (researcher_id)", c.table, c.table),
		)
	}
	for _, s := range stmts {
		if _, err := db.SQL().ExecContext(ctx, s); err != nil {
			logger.Error("repo.migrate.failed", "error", err, "stmt", firstLine(s))
			return dbErr("migrate", err)
		}
	}
	logger.Info("repo.migrate.ok", "tables", 1+len(children), "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
