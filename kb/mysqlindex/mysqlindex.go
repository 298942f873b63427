// Package mysqlindex is the Knowledge Base's optional secondary search
// index: it mirrors written records into MySQL so search_experiences can
// narrow its candidate set with an indexed query on type instead of
// scanning the whole archive directory. The file directory remains
// authoritative; this index is rebuildable from it at any time.
package mysqlindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Record mirrors kb.Record in a package with no dependency on kb, avoiding
// an import cycle between kb and its own secondary index.
type Record struct {
	ID        string
	Title     string
	Content   string
	Type      string
	Tags      []string
	CreatedAt time.Time
	Metadata  map[string]interface{}
	Embedding []float64
}

// Index is a MySQL-backed mirror of the Knowledge Base archive.
type Index struct {
	db *sql.DB
}

// Open connects to dsn, tunes the connection pool the way the runtime's
// other SQL-backed stores do, and ensures the kb_records table exists.
func Open(dsn string) (*Index, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("mysqlindex: open: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("mysqlindex: ping: %w", err)
	}

	idx := &Index{db: db}
	if err := idx.createTables(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

func (idx *Index) createTables(ctx context.Context) error {
	_, err := idx.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS kb_records (
			id         VARCHAR(64) PRIMARY KEY,
			title      TEXT NOT NULL,
			content    LONGTEXT NOT NULL,
			type       VARCHAR(32) NOT NULL,
			tags       JSON,
			created_at DATETIME(6) NOT NULL,
			metadata   JSON,
			embedding  JSON,
			INDEX idx_kb_records_type (type)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4
	`)
	if err != nil {
		return fmt.Errorf("mysqlindex: create tables: %w", err)
	}
	return nil
}

// Write upserts rec, mirroring a Knowledge Base write into the index.
func (idx *Index) Write(ctx context.Context, rec Record) error {
	tags, err := json.Marshal(rec.Tags)
	if err != nil {
		return fmt.Errorf("mysqlindex: marshal tags: %w", err)
	}
	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("mysqlindex: marshal metadata: %w", err)
	}
	var embedding []byte
	if rec.Embedding != nil {
		embedding, err = json.Marshal(rec.Embedding)
		if err != nil {
			return fmt.Errorf("mysqlindex: marshal embedding: %w", err)
		}
	}

	_, err = idx.db.ExecContext(ctx, `
		INSERT INTO kb_records (id, title, content, type, tags, created_at, metadata, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			title = VALUES(title), content = VALUES(content), type = VALUES(type),
			tags = VALUES(tags), metadata = VALUES(metadata), embedding = VALUES(embedding)
	`, rec.ID, rec.Title, rec.Content, rec.Type, tags, rec.CreatedAt, metadata, embedding)
	if err != nil {
		return fmt.Errorf("mysqlindex: write: %w", err)
	}
	return nil
}

// SearchByType returns every indexed record of typeFilter (or every record,
// if typeFilter is empty), most recent first, up to limit. Distance ranking
// against a query embedding happens in the caller, since MySQL has no
// native vector-similarity operator here; the index's job is narrowing the
// candidate set before that ranking runs.
func (idx *Index) SearchByType(ctx context.Context, typeFilter string, limit int) ([]Record, error) {
	query := `SELECT id, title, content, type, tags, created_at, metadata, embedding FROM kb_records`
	args := []interface{}{}
	if typeFilter != "" {
		query += ` WHERE type = ?`
		args = append(args, typeFilter)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := idx.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("mysqlindex: search: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var tags, metadata, embedding []byte
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.Content, &rec.Type, &tags, &rec.CreatedAt, &metadata, &embedding); err != nil {
			return nil, fmt.Errorf("mysqlindex: scan: %w", err)
		}
		if len(tags) > 0 {
			_ = json.Unmarshal(tags, &rec.Tags)
		}
		if len(metadata) > 0 {
			_ = json.Unmarshal(metadata, &rec.Metadata)
		}
		if len(embedding) > 0 {
			_ = json.Unmarshal(embedding, &rec.Embedding)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close releases the underlying connection pool.
func (idx *Index) Close() error {
	return idx.db.Close()
}
