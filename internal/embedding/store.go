package embedding

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Metadata is denormalized alongside each vector so similarity hits can be
// returned without touching the main index.
type Metadata struct {
	SessionID string
	EventType string
	Content   string
	Timestamp string
}

// Store persists embedding vectors keyed by event id.
type Store struct {
	db        *sql.DB
	dimension int
	native    bool
}

// Open creates or opens the vector store. It attempts to create a native
// vector table first; when the build's SQLite lacks the capability, vectors
// are stored as float32 blobs and searched by linear scan.
func Open(path string, dimension int) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open embeddings db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to embeddings db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %q: %w", pragma, err)
		}
	}

	s := &Store{db: db, dimension: dimension}

	_, err = db.Exec(fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS embeddings USING vec0(
			event_id TEXT PRIMARY KEY,
			embedding FLOAT[%d]
		)
	`, dimension))
	if err == nil {
		s.native = true
	} else {
		_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS embeddings (
				event_id TEXT PRIMARY KEY,
				embedding BLOB NOT NULL
			)
		`)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("create embeddings table: %w", err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS embedding_metadata (
			event_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			content TEXT,
			timestamp TEXT
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create metadata table: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Native reports whether a native similarity index is in use.
func (s *Store) Native() bool {
	return s.native
}

// Dimension returns the fixed vector dimension of this deployment.
func (s *Store) Dimension() int {
	return s.dimension
}

// Upsert stores a vector and its metadata, replacing any prior entry for
// the event.
func (s *Store) Upsert(ctx context.Context, eventID string, vector []float32, meta Metadata) error {
	if len(vector) != s.dimension {
		return fmt.Errorf("upsert embedding: vector has %d dimensions, store expects %d", len(vector), s.dimension)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("upsert embedding: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO embeddings (event_id, embedding) VALUES (?, ?)`,
		eventID, encodeVector(vector),
	)
	if err != nil {
		return fmt.Errorf("upsert embedding: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO embedding_metadata
		(event_id, session_id, event_type, content, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, eventID, meta.SessionID, meta.EventType, meta.Content, meta.Timestamp)
	if err != nil {
		return fmt.Errorf("upsert embedding metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("upsert embedding: commit: %w", err)
	}
	return nil
}

// Has reports whether a vector is stored for the event.
func (s *Store) Has(ctx context.Context, eventID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM embeddings WHERE event_id = ?`, eventID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check embedding: %w", err)
	}
	return count > 0, nil
}

// Count returns the number of stored vectors.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return count, nil
}

// encodeVector packs float32s little-endian, 4 bytes each.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
