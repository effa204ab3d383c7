// Package postgres provides a Postgres-backed persistent store that mirrors the
// in-memory semantics while keeping one JSONB row per operation.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"routingcore/internal/infra/persistence/memory"
	"routingcore/pkg/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	// Default DSN keeps parity with OpenPersistentStore defaults while allowing overrides via env.
	defaultDSN = "postgres://localhost/routingcore?sslmode=disable"
)

const (
	createOperationsTable = `CREATE TABLE IF NOT EXISTS operations (
		code TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		payload JSONB NOT NULL
	)`
	selectOperations = `SELECT code, position, payload FROM operations ORDER BY position`
	upsertOperation  = `INSERT INTO operations(code,position,payload) VALUES($1,$2,$3) ON CONFLICT(code) DO UPDATE SET position=EXCLUDED.position, payload=EXCLUDED.payload`
	deleteOperation  = `DELETE FROM operations WHERE code=$1`
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store persists state to Postgres while reusing the in-memory implementation for transactions.
type Store struct {
	*memory.Store
	db        *sql.DB
	mu        sync.Mutex
	persisted map[string]struct{}
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back to defaultDSN).
// It ensures the operations table exists and hydrates the in-memory registry from it.
func NewStore(dsn string, engine *domain.RulesEngine) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, createOperationsTable); err != nil {
		return nil, fmt.Errorf("ensure operations table: %w", err)
	}
	snapshot, codes, err := loadSnapshot(ctx, db)
	if err != nil {
		return nil, err
	}
	mem := memory.NewStore(engine)
	mem.ImportState(snapshot)
	return &Store{Store: mem, db: db, persisted: codes}, nil
}

// RunInTransaction applies the provided function within a transaction, then writes changed rows to Postgres if successful.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	if err := s.persist(ctx); err != nil {
		return res, err
	}
	return res, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

func loadSnapshot(ctx context.Context, db *sql.DB) (memory.Snapshot, map[string]struct{}, error) {
	rows, err := db.QueryContext(ctx, selectOperations)
	if err != nil {
		return memory.Snapshot{}, nil, fmt.Errorf("select operations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snapshot memory.Snapshot
	codes := map[string]struct{}{}
	for rows.Next() {
		var (
			code     string
			position int64
			payload  []byte
		)
		if err := rows.Scan(&code, &position, &payload); err != nil {
			return memory.Snapshot{}, nil, fmt.Errorf("scan operations: %w", err)
		}
		if len(payload) == 0 {
			continue
		}
		var op domain.Operation
		if err := json.Unmarshal(payload, &op); err != nil {
			return memory.Snapshot{}, nil, fmt.Errorf("decode %s: %w", code, err)
		}
		snapshot.Operations = append(snapshot.Operations, op)
		codes[code] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return memory.Snapshot{}, nil, fmt.Errorf("iterate operations: %w", err)
	}
	return snapshot, codes, nil
}

func (s *Store) persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.ExportState()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	current := make(map[string]struct{}, len(snapshot.Operations))
	for i, op := range snapshot.Operations {
		data, err := json.Marshal(op)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, upsertOperation, op.OperationCode, int64(i), data); err != nil {
			return fmt.Errorf("upsert %s: %w", op.OperationCode, err)
		}
		current[op.OperationCode] = struct{}{}
	}
	for code := range s.persisted {
		if _, ok := current[code]; ok {
			continue
		}
		if _, err := tx.ExecContext(ctx, deleteOperation, code); err != nil {
			return fmt.Errorf("delete %s: %w", code, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	s.persisted = current
	return nil
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
