// Package migrations holds the embedded SQL schema of both databases and
// applies it statement by statement.
package migrations

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

//go:embed postgres/*.sql clickhouse/*.sql
var schema embed.FS

// Schema directories.
const (
	DirPostgres   = "postgres"
	DirClickhouse = "clickhouse"
)

// ErrQuotedSemicolon is returned for a migration with a ';' inside a string
// literal, which the statement splitter cannot handle.
var ErrQuotedSemicolon = errors.New("semicolon inside string literal")

// Migration is one embedded SQL file split into statements.
type Migration struct {
	Name       string // file name, e.g. 001_backtest_runs.sql
	Statements []string
}

// Load returns the migrations of dir ordered by file name.
func Load(dir string) ([]Migration, error) {
	return load(schema, dir)
}

func load(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read %s migrations: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out := make([]Migration, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		stmts, err := split(string(data))
		if err != nil {
			return nil, fmt.Errorf("migration %s: %w", name, err)
		}
		if len(stmts) == 0 {
			continue
		}
		out = append(out, Migration{Name: name, Statements: stmts})
	}
	return out, nil
}

// split breaks SQL into statements on ';'. Lines starting with "--" are
// dropped first. Quoted semicolons are rejected, not parsed.
func split(sql string) ([]string, error) {
	inString := false
	for i := 0; i < len(sql); i++ {
		switch {
		case sql[i] == '\'' && i+1 < len(sql) && sql[i+1] == '\'':
			i++ // escaped quote
		case sql[i] == '\'':
			inString = !inString
		case sql[i] == ';' && inString:
			return nil, ErrQuotedSemicolon
		}
	}

	var kept []string
	for _, line := range strings.Split(sql, "\n") {
		if t := strings.TrimSpace(line); t != "" && !strings.HasPrefix(t, "--") {
			kept = append(kept, line)
		}
	}

	var stmts []string
	for _, part := range strings.Split(strings.Join(kept, "\n"), ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts, nil
}
