package costcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteJournal stores sections as rows keyed by sequence index.
type SQLiteJournal struct {
	db *sql.DB
}

// OpenSQLiteJournal opens the database at dbPath and creates the table.
func OpenSQLiteJournal(dbPath string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer; sqlite serializes anyway
	db.SetMaxOpenConns(1)

	j := &SQLiteJournal{db: db}
	if err := j.createTable(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	return j, nil
}

func (j *SQLiteJournal) createTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS sections (
		idx INTEGER PRIMARY KEY,
		sequence TEXT NOT NULL,
		mode TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		entries TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := j.db.Exec(query)
	return err
}

func (j *SQLiteJournal) Load(ctx context.Context) ([]Section, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT idx, sequence, mode, fingerprint, entries FROM sections ORDER BY idx`)
	if err != nil {
		return nil, fmt.Errorf("query sections: %w", err)
	}
	defer rows.Close()

	var sections []Section
	for rows.Next() {
		var (
			s       Section
			mode    string
			entries string
		)
		if err := rows.Scan(&s.Index, &s.Sequence, &mode, &s.Fingerprint, &entries); err != nil {
			return nil, fmt.Errorf("scan section: %w", err)
		}
		if err := s.Mode.UnmarshalText([]byte(mode)); err != nil {
			return nil, fmt.Errorf("%w: section %d: %v", ErrStaleJournal, s.Index, err)
		}
		if err := json.Unmarshal([]byte(entries), &s.Entries); err != nil {
			return nil, fmt.Errorf("%w: section %d: %v", ErrStaleJournal, s.Index, err)
		}
		sections = append(sections, s)
	}
	return sections, rows.Err()
}

func (j *SQLiteJournal) Append(ctx context.Context, s Section) error {
	entries, err := json.Marshal(s.Entries)
	if err != nil {
		return fmt.Errorf("encode section %d: %w", s.Index, err)
	}
	_, err = j.db.ExecContext(ctx,
		`INSERT INTO sections (idx, sequence, mode, fingerprint, entries) VALUES (?, ?, ?, ?, ?)`,
		s.Index, s.Sequence, s.Mode.String(), s.Fingerprint, string(entries))
	if err != nil {
		return fmt.Errorf("insert section %d: %w", s.Index, err)
	}
	return nil
}

func (j *SQLiteJournal) Reset(ctx context.Context) error {
	_, err := j.db.ExecContext(ctx, `DELETE FROM sections`)
	return err
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
