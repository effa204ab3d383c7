// Package sqlite persists the operation registry to an embedded SQLite file.
// Transactions run against the in-memory registry; every committed write is
// then written through to the operations table.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"routingcore/internal/infra/persistence/memory"
	"routingcore/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const defaultPath = "routingcore.db"

// Store persists registry records to a single SQLite table, one JSON payload
// per operation code, ordered by registry position.
type Store struct {
	*memory.Store
	db        *sql.DB
	mu        sync.Mutex
	path      string
	persisted map[string]struct{}
}

// NewStore opens (creating when needed) the SQLite file at path and hydrates
// the registry from it.
func NewStore(path string, engine *domain.RulesEngine) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS operations (
		code TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create operations table: %w", err)
	}
	s := &Store{Store: memory.NewStore(engine), db: db, path: path, persisted: map[string]struct{}{}}
	if err := s.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT code, payload FROM operations ORDER BY position`)
	if err != nil {
		return fmt.Errorf("select operations: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var snapshot memory.Snapshot
	for rows.Next() {
		var (
			code    string
			payload []byte
		)
		if err := rows.Scan(&code, &payload); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		var op domain.Operation
		if err := json.Unmarshal(payload, &op); err != nil {
			return fmt.Errorf("decode %s: %w", code, err)
		}
		snapshot.Operations = append(snapshot.Operations, op)
		s.persisted[code] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate operations: %w", err)
	}
	s.ImportState(snapshot)
	return nil
}

func (s *Store) persist(ctx context.Context) (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.ExportState()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	current := make(map[string]struct{}, len(snapshot.Operations))
	for i, op := range snapshot.Operations {
		data, err := json.Marshal(op)
		if err != nil {
			return fmt.Errorf("encode %s: %w", op.OperationCode, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO operations(code,position,payload) VALUES(?,?,?)
			ON CONFLICT(code) DO UPDATE SET position=excluded.position, payload=excluded.payload`,
			op.OperationCode, i, data); err != nil {
			return fmt.Errorf("upsert %s: %w", op.OperationCode, err)
		}
		current[op.OperationCode] = struct{}{}
	}
	for code := range s.persisted {
		if _, ok := current[code]; ok {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM operations WHERE code = ?`, code); err != nil {
			return fmt.Errorf("delete %s: %w", code, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.persisted = current
	return nil
}

// RunInTransaction applies the provided function within a transaction, then writes the registry to SQLite if successful.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Transaction) error) (domain.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	if pErr := s.persist(ctx); pErr != nil {
		return res, pErr
	}
	return res, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
