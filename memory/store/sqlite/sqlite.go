// Package sqlite persists user memories in SQLite and answers similarity
// searches over them.
package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/becomeliminal/nim-recall/core"
	"github.com/becomeliminal/nim-recall/memory"
)

const sourceName = "memory"

// Store implements memory.Store on SQLite. (owner_id, key) carries a unique
// index and writes go through a single INSERT ... ON CONFLICT statement, so
// concurrent stores of the same key cannot create duplicates.
type Store struct {
	db *sql.DB
}

// Options configures Open.
type Options struct {
	// SkipMigrations leaves the schema alone. Use it when migrations are
	// run by a separate deploy step; until then searches report the source
	// as not provisioned.
	SkipMigrations bool
}

// Open creates or opens the memory database at path. Use ":memory:" for a
// private in-memory database.
func Open(path string, opts Options) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("create memory db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One shared connection: avoids writer lock contention and keeps a
	// ":memory:" database alive across calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.init(opts); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(opts Options) error {
	stmts := []string{
		`PRAGMA busy_timeout=5000;`,
		`PRAGMA synchronous=NORMAL;`,
	}
	if !opts.SkipMigrations {
		stmts = append(stmts,
			`CREATE TABLE IF NOT EXISTS memories (
				id TEXT PRIMARY KEY,
				owner_id TEXT NOT NULL,
				mem_key TEXT NOT NULL,
				value TEXT NOT NULL,
				category TEXT NOT NULL,
				embedding BLOB,
				created_at_ms INTEGER NOT NULL,
				updated_at_ms INTEGER NOT NULL
			);`,
			`CREATE UNIQUE INDEX IF NOT EXISTS memories_owner_key ON memories(owner_id, mem_key);`,
			`CREATE INDEX IF NOT EXISTS memories_owner_updated ON memories(owner_id, updated_at_ms DESC);`,
		)
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init memory schema: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Upsert inserts mem, or updates value, category, embedding and updated_at
// of the existing (owner_id, key) row. The returned Memory carries the
// row's persistent id and created_at.
func (s *Store) Upsert(ctx context.Context, mem memory.Memory) (*memory.Memory, error) {
	blob, err := encodeVector(mem.Embedding)
	if err != nil {
		return nil, err
	}

	const q = `INSERT INTO memories (id, owner_id, mem_key, value, category, embedding, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(owner_id, mem_key) DO UPDATE SET
	value = excluded.value,
	category = excluded.category,
	embedding = excluded.embedding,
	updated_at_ms = excluded.updated_at_ms
RETURNING id, created_at_ms, updated_at_ms`

	var id string
	var createdMs, updatedMs int64
	err = s.db.QueryRowContext(ctx, q,
		mem.ID, mem.OwnerID, mem.Key, mem.Value, string(mem.Category), blob,
		mem.CreatedAt.UnixMilli(), mem.UpdatedAt.UnixMilli(),
	).Scan(&id, &createdMs, &updatedMs)
	if err != nil {
		return nil, fmt.Errorf("upsert memory: %w", err)
	}

	out := mem
	out.ID = id
	out.CreatedAt = time.UnixMilli(createdMs).UTC()
	out.UpdatedAt = time.UnixMilli(updatedMs).UTC()
	return &out, nil
}

// Get returns one memory owned by ownerID.
func (s *Store) Get(ctx context.Context, ownerID, id string) (*memory.Memory, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, owner_id, mem_key, value, category, embedding, created_at_ms, updated_at_ms
FROM memories WHERE id = ? AND owner_id = ?`, id, ownerID)
	mem, err := scanMemory(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &core.Error{Kind: core.ErrNotFound, Op: "get memory", Err: fmt.Errorf("memory %s", id)}
		}
		return nil, classify(err)
	}
	return mem, nil
}

// List returns the owner's memories, most recently updated first.
func (s *Store) List(ctx context.Context, ownerID string) ([]memory.Memory, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, owner_id, mem_key, value, category, embedding, created_at_ms, updated_at_ms
FROM memories WHERE owner_id = ? ORDER BY updated_at_ms DESC, rowid DESC`, ownerID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []memory.Memory
	for rows.Next() {
		mem, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *mem)
	}
	return out, rows.Err()
}

// Delete removes the memory if ownerID owns it. Unknown and foreign ids are
// not an error.
func (s *Store) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ? AND owner_id = ?`, id, ownerID); err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}
	return nil
}

// Search scores every memory of ownerID against vector and returns those
// at or above threshold, best first.
func (s *Store) Search(ctx context.Context, ownerID string, vector []float32, threshold float64, limit int) ([]memory.Match, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, owner_id, mem_key, value, category, embedding, created_at_ms, updated_at_ms
FROM memories WHERE owner_id = ?`, ownerID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var matches []memory.Match
	for rows.Next() {
		mem, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		score := float64(cosineSimilarity(vector, mem.Embedding))
		if score < threshold {
			continue
		}
		matches = append(matches, memory.Match{Memory: *mem, Similarity: core.ClampSimilarity(score)})
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}

	sortMatches(matches)
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMemory(row scanner) (*memory.Memory, error) {
	var (
		mem                  memory.Memory
		category             string
		blob                 []byte
		createdMs, updatedMs int64
	)
	if err := row.Scan(&mem.ID, &mem.OwnerID, &mem.Key, &mem.Value, &category, &blob, &createdMs, &updatedMs); err != nil {
		return nil, err
	}
	vec, err := decodeVector(blob)
	if err != nil {
		return nil, fmt.Errorf("memory %s: %w", mem.ID, err)
	}
	mem.Category = memory.Category(category)
	mem.Embedding = vec
	mem.CreatedAt = time.UnixMilli(createdMs).UTC()
	mem.UpdatedAt = time.UnixMilli(updatedMs).UTC()
	return &mem, nil
}

// classify maps a missing schema to core.ErrSourceNotProvisioned.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "no such table") {
		return core.NotProvisioned(sourceName, err)
	}
	return err
}

func encodeVector(vec []float32) ([]byte, error) {
	if len(vec) == 0 {
		return nil, nil
	}
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, vec); err != nil {
		return nil, fmt.Errorf("encode vector: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeVector(blob []byte) ([]float32, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("decode vector: %d bytes is not a float32 vector", len(blob))
	}
	vec := make([]float32, len(blob)/4)
	if err := binary.Read(bytes.NewReader(blob), binary.LittleEndian, vec); err != nil {
		return nil, fmt.Errorf("decode vector: %w", err)
	}
	return vec, nil
}
