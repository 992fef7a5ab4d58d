package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/qanoon-search/qanoon/internal/access"
)

// SQLiteStore is the chunk metadata store. It resolves fused candidate
// IDs to full chunks for filtering and presentation, and records build
// state (embedder model, width) so query time can detect mismatched
// artifacts.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

const metadataSchema = `
CREATE TABLE IF NOT EXISTS chunks (
	id             TEXT PRIMARY KEY,
	doc_name       TEXT NOT NULL,
	article_ref    TEXT NOT NULL DEFAULT '',
	pages          TEXT NOT NULL DEFAULT '[]',
	text           TEXT NOT NULL,
	norm_text      TEXT NOT NULL,
	required_roles TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_doc_name ON chunks(doc_name);

CREATE TABLE IF NOT EXISTS state (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// NewSQLiteStore opens (or creates) the metadata database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata db: %w", err)
	}

	if _, err := db.Exec(metadataSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// SaveChunks upserts chunks in one transaction.
func (s *SQLiteStore) SaveChunks(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, doc_name, article_ref, pages, text, norm_text, required_roles)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			doc_name = excluded.doc_name,
			article_ref = excluded.article_ref,
			pages = excluded.pages,
			text = excluded.text,
			norm_text = excluded.norm_text,
			required_roles = excluded.required_roles`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		pages, err := json.Marshal(c.Pages)
		if err != nil {
			return fmt.Errorf("failed to marshal pages for %s: %w", c.ID, err)
		}
		roles, err := json.Marshal(c.RequiredRoles)
		if err != nil {
			return fmt.Errorf("failed to marshal roles for %s: %w", c.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.DocName, c.ArticleRef, string(pages), c.Text, c.NormText, string(roles)); err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// GetChunks resolves IDs to chunks. Missing IDs are silently absent
// from the result map.
func (s *SQLiteStore) GetChunks(ctx context.Context, ids []string) (map[string]*Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	out := make(map[string]*Chunk, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	// Chunked IN queries keep us under SQLite's parameter limit.
	const batchSize = 500
	for start := 0; start < len(ids); start += batchSize {
		end := start + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		placeholders := strings.Repeat("?,", len(batch)-1) + "?"
		args := make([]any, len(batch))
		for i, id := range batch {
			args[i] = id
		}

		rows, err := s.db.QueryContext(ctx,
			`SELECT id, doc_name, article_ref, pages, text, norm_text, required_roles
			 FROM chunks WHERE id IN (`+placeholders+`)`, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to query chunks: %w", err)
		}

		if err := scanChunks(rows, out); err != nil {
			rows.Close()
			return nil, err
		}
		if err := rows.Close(); err != nil {
			return nil, fmt.Errorf("failed to close rows: %w", err)
		}
	}

	return out, nil
}

func scanChunks(rows *sql.Rows, out map[string]*Chunk) error {
	for rows.Next() {
		var c Chunk
		var pagesJSON, rolesJSON string
		if err := rows.Scan(&c.ID, &c.DocName, &c.ArticleRef, &pagesJSON, &c.Text, &c.NormText, &rolesJSON); err != nil {
			return fmt.Errorf("failed to scan chunk: %w", err)
		}
		if err := json.Unmarshal([]byte(pagesJSON), &c.Pages); err != nil {
			return fmt.Errorf("failed to unmarshal pages for %s: %w", c.ID, err)
		}
		var roles []access.Role
		if err := json.Unmarshal([]byte(rolesJSON), &roles); err != nil {
			return fmt.Errorf("failed to unmarshal roles for %s: %w", c.ID, err)
		}
		c.RequiredRoles = roles
		out[c.ID] = &c
	}
	return rows.Err()
}

// Counts returns the number of chunks and distinct source documents.
func (s *SQLiteStore) Counts(ctx context.Context) (chunks, documents int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, 0, fmt.Errorf("store is closed")
	}

	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*), COUNT(DISTINCT doc_name) FROM chunks`)
	if err := row.Scan(&chunks, &documents); err != nil {
		return 0, 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return chunks, documents, nil
}

// GetState reads a build-state value. A missing key returns an empty
// string without error.
func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", fmt.Errorf("store is closed")
	}

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read state %s: %w", key, err)
	}
	return value, nil
}

// SetState upserts a build-state value.
func (s *SQLiteStore) SetState(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO state (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set state %s: %w", key, err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

var _ MetadataStore = (*SQLiteStore)(nil)
