package memory

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/irisworks/iris/internal/errors"
)

// currentSchemaVersion is the latest index schema version. Bump when
// adding migrations.
const currentSchemaVersion = 1

// openIndex opens (and migrates) the memory index at
// <root>/.iris/memory/meta.sqlite. The index is single-writer: the pool
// is capped at maxConns connections and WAL mode permits concurrent reads.
func openIndex(root string, maxConns int) (*sql.DB, error) {
	dbPath := filepath.Join(root, ".iris", "memory", "meta.sqlite")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create memory directory: %w", err)
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open memory index: %w", err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
		db.SetMaxIdleConns(maxConns)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := getUserVersion(db)
	if err != nil {
		return err
	}

	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS memories (
			memory_id   TEXT PRIMARY KEY,
			type        TEXT NOT NULL,
			subtype     TEXT,
			mime        TEXT NOT NULL,
			bytes       INTEGER NOT NULL,
			compression TEXT NOT NULL,
			path        TEXT NOT NULL,
			sha256      TEXT NOT NULL,
			title       TEXT NOT NULL,
			tags        TEXT NOT NULL DEFAULT '[]',
			created_at  TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_memories_type_created
		ON memories(type, created_at);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := setUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Future migrations go here.

	return nil
}

func getUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("get user_version: %w", err)
	}
	return version, nil
}

func setUserVersion(db *sql.DB, version int) error {
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// insertMeta stores one index row. Duplicate memory_ids are reported as a
// unique-constraint error so callers can treat the put as a dedup hit.
func insertMeta(db *sql.DB, m *Meta) error {
	tagsJSON, err := json.Marshal(m.Tags)
	if err != nil {
		return errors.NewInternal(err)
	}
	if m.Tags == nil {
		tagsJSON = []byte("[]")
	}

	query := `
		INSERT INTO memories (
			memory_id, type, subtype, mime, bytes,
			compression, path, sha256, title, tags, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = db.Exec(query,
		m.MemoryID, m.Type, nullable(m.Subtype), m.MIME, m.Bytes,
		m.Compression, m.Path, m.SHA256, m.Title, string(tagsJSON), m.CreatedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return errDuplicateRow
		}
		return errors.NewInternal(err)
	}
	return nil
}

// errDuplicateRow signals a concurrent put of identical content. Callers
// resolve it by reading the winning row.
var errDuplicateRow = &errors.IrisError{
	Code:    "UNIQUE_CONSTRAINT",
	Message: "memory row already exists",
}

// getMeta loads one index row, or NOT_FOUND.
func getMeta(db *sql.DB, memoryID string) (*Meta, error) {
	query := `
		SELECT memory_id, type, subtype, mime, bytes,
		       compression, path, sha256, title, tags, created_at
		FROM memories WHERE memory_id = ?
	`
	row := db.QueryRow(query, memoryID)

	var m Meta
	var subtype sql.NullString
	var tagsJSON string
	err := row.Scan(&m.MemoryID, &m.Type, &subtype, &m.MIME, &m.Bytes,
		&m.Compression, &m.Path, &m.SHA256, &m.Title, &tagsJSON, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(memoryID)
	}
	if err != nil {
		return nil, errors.NewIndexCorrupt(err)
	}
	m.Subtype = subtype.String
	if err := json.Unmarshal([]byte(tagsJSON), &m.Tags); err != nil {
		return nil, errors.NewIndexCorrupt(fmt.Errorf("tags for %s: %w", memoryID, err))
	}
	return &m, nil
}

// listMeta returns up to limit rows, newest first, optionally filtered by
// type.
func listMeta(db *sql.DB, typeFilter string, limit int) ([]Meta, error) {
	query := `
		SELECT memory_id, type, subtype, mime, bytes,
		       compression, path, sha256, title, tags, created_at
		FROM memories
	`
	args := []any{}
	if typeFilter != "" {
		query += " WHERE type = ?"
		args = append(args, typeFilter)
	}
	query += " ORDER BY created_at DESC, memory_id LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, errors.NewIndexCorrupt(err)
	}
	defer rows.Close()

	var out []Meta
	for rows.Next() {
		var m Meta
		var subtype sql.NullString
		var tagsJSON string
		if err := rows.Scan(&m.MemoryID, &m.Type, &subtype, &m.MIME, &m.Bytes,
			&m.Compression, &m.Path, &m.SHA256, &m.Title, &tagsJSON, &m.CreatedAt); err != nil {
			return nil, errors.NewIndexCorrupt(err)
		}
		m.Subtype = subtype.String
		if err := json.Unmarshal([]byte(tagsJSON), &m.Tags); err != nil {
			return nil, errors.NewIndexCorrupt(err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func nullable(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "constraint failed")
}
