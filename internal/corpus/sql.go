package corpus

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	_ "github.com/mattn/go-sqlite3"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// SQLSource reads documents from a table with a name column and a content
// column, ordered by name so document ids are reproducible.
type SQLSource struct {
	db            *sql.DB
	table         string
	nameColumn    string
	contentColumn string
}

func NewSQLSource(db *sql.DB, table, nameColumn, contentColumn string) (*SQLSource, error) {
	for _, id := range []string{table, nameColumn, contentColumn} {
		if !identifier.MatchString(id) {
			return nil, fmt.Errorf("invalid SQL identifier %q", id)
		}
	}
	return &SQLSource{
		db:            db,
		table:         table,
		nameColumn:    nameColumn,
		contentColumn: contentColumn,
	}, nil
}

// OpenSQLite opens a SQLite database file read-only.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, fmt.Errorf("opening sqlite corpus %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite corpus %s: %w", path, err)
	}
	return db, nil
}

func (s *SQLSource) Each(ctx context.Context, fn func(Document) error) error {
	stmt := fmt.Sprintf("SELECT %s, %s FROM %s ORDER BY %s",
		s.nameColumn, s.contentColumn, s.table, s.nameColumn)
	rows, err := s.db.QueryContext(ctx, stmt)
	if err != nil {
		return fmt.Errorf("querying corpus table %s: %w", s.table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var doc Document
		var content sql.NullString
		if err := rows.Scan(&doc.Name, &content); err != nil {
			return fmt.Errorf("scanning corpus row: %w", err)
		}
		doc.Content = content.String
		if err := fn(doc); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating corpus table %s: %w", s.table, err)
	}
	return nil
}
