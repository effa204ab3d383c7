package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"

	"routingcore/internal/infra/persistence/postgres/testutil"
	"routingcore/pkg/domain"
)

func operation(code string, succ ...string) domain.Operation {
	return domain.Operation{
		OperationCode:        code,
		OperationName:        "Operation " + code,
		OperationType:        domain.TypeAssembly,
		Category:             domain.CategoryAssembly,
		RiskLevel:            domain.RiskLow,
		CycleTime:            3,
		SucceedingOperations: succ,
		IsActive:             true,
	}
}

func openStub(t *testing.T) (*Store, *testutil.StubConn) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	t.Cleanup(restore)
	store, err := NewStore("", domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store, conn
}

func putAll(t *testing.T, store *Store, ops ...domain.Operation) error {
	t.Helper()
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		for _, op := range ops {
			if _, err := tx.PutOperation(op); err != nil {
				return err
			}
		}
		return nil
	})
	return err
}

func TestNewStoreCreatesTableAndLoadsRows(t *testing.T) {
	db, conn := testutil.NewStubDB()
	for i, op := range []domain.Operation{operation("OP-B"), operation("OP-A", "OP-B")} {
		payload, err := json.Marshal(op)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		// stored out of order on purpose; position decides registry order
		conn.Operations = append([]testutil.Row{{Code: op.OperationCode, Position: int64(i), Payload: payload}}, conn.Operations...)
	}
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	store, err := NewStore("", domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	ops := store.ListOperations()
	if len(ops) != 2 || ops[0].OperationCode != "OP-B" || ops[1].OperationCode != "OP-A" {
		t.Fatalf("expected rows loaded in position order, got %+v", ops)
	}
	var sawDDL bool
	for _, stmt := range conn.Execs {
		if strings.Contains(strings.ToUpper(stmt), "CREATE TABLE IF NOT EXISTS OPERATIONS") {
			sawDDL = true
			break
		}
	}
	if !sawDDL {
		t.Fatalf("expected operations DDL to be applied, got execs: %v", conn.Execs)
	}
}

func TestRunInTransactionPersistsRows(t *testing.T) {
	store, conn := openStub(t)
	if err := putAll(t, store, operation("OP-B"), operation("OP-A", "OP-B")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if len(conn.Operations) != 2 {
		t.Fatalf("expected two persisted rows, got %d", len(conn.Operations))
	}
	row, ok := conn.Find("OP-A")
	if !ok || row.Position != 1 {
		t.Fatalf("expected OP-A at position 1, got %+v", row)
	}
	var decoded domain.Operation
	if err := json.Unmarshal(row.Payload, &decoded); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if decoded.ID == "" || len(decoded.SucceedingOperations) != 1 {
		t.Fatalf("unexpected persisted payload %+v", decoded)
	}
	if conn.Commits == 0 {
		t.Fatalf("expected a committed transaction")
	}
}

func TestRunInTransactionUpdatesInPlace(t *testing.T) {
	store, conn := openStub(t)
	if err := putAll(t, store, operation("OP-A")); err != nil {
		t.Fatalf("put: %v", err)
	}
	changed := operation("OP-A")
	changed.CycleTime = 9
	if err := putAll(t, store, changed); err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(conn.Operations) != 1 {
		t.Fatalf("expected upsert to keep a single row, got %d", len(conn.Operations))
	}
	var op domain.Operation
	if err := json.Unmarshal(conn.Operations[0].Payload, &op); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if op.CycleTime != 9 {
		t.Fatalf("expected updated cycle time, got %v", op.CycleTime)
	}
}

func TestRunInTransactionDeletesRowsMissingFromRegistry(t *testing.T) {
	store, conn := openStub(t)
	if err := putAll(t, store, operation("OP-A"), operation("OP-B")); err != nil {
		t.Fatalf("put: %v", err)
	}
	snapshot := store.ExportState()
	snapshot.Operations = snapshot.Operations[1:]
	store.ImportState(snapshot)
	if err := putAll(t, store, operation("OP-C")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, ok := conn.Find("OP-A"); ok {
		t.Fatalf("expected OP-A row deleted")
	}
	if len(conn.Operations) != 2 {
		t.Fatalf("expected two rows, got %+v", conn.Operations)
	}
	if !slices.ContainsFunc(conn.Execs, func(stmt string) bool { return strings.HasPrefix(stmt, "DELETE") }) {
		t.Fatalf("expected a delete statement, got %v", conn.Execs)
	}
}

func TestRunInTransactionStopsOnUserError(t *testing.T) {
	store, conn := openStub(t)
	userErr := fmt.Errorf("user fail")
	if _, err := store.RunInTransaction(context.Background(), func(domain.Transaction) error { return userErr }); !errors.Is(err, userErr) {
		t.Fatalf("expected user error to propagate, got %v", err)
	}
	if len(conn.Operations) != 0 || conn.Commits != 0 {
		t.Fatalf("expected no persistence when user fn errors")
	}
}

func TestRunInTransactionValidationBlocksPersistence(t *testing.T) {
	store, conn := openStub(t)
	bad := operation("OP-A")
	bad.SetupTime = -5
	if err := putAll(t, store, bad); !errors.Is(err, domain.ErrNegativeValue) {
		t.Fatalf("expected negative value error, got %v", err)
	}
	if len(conn.Operations) != 0 {
		t.Fatalf("expected nothing persisted")
	}
}

func TestPersistFailures(t *testing.T) {
	cases := []struct {
		name string
		arm  func(*testutil.StubConn)
		want string
	}{
		{"exec", func(c *testutil.StubConn) { c.FailExec = true }, "upsert"},
		{"begin", func(c *testutil.StubConn) { c.FailBegin = true }, "begin"},
		{"commit", func(c *testutil.StubConn) { c.FailCommit = true }, "commit"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store, conn := openStub(t)
			tc.arm(conn)
			err := putAll(t, store, operation("OP-A"))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %s error, got %v", tc.want, err)
			}
		})
	}
}

func TestFailedWriteRollsBack(t *testing.T) {
	store, conn := openStub(t)
	conn.FailExec = true
	if err := putAll(t, store, operation("OP-A")); err == nil {
		t.Fatalf("expected write failure")
	}
	if conn.Rollbacks != 1 || conn.Commits != 0 {
		t.Fatalf("expected a single rollback, got commits=%d rollbacks=%d", conn.Commits, conn.Rollbacks)
	}
}

func TestNewStoreErrors(t *testing.T) {
	t.Run("open", func(t *testing.T) {
		restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return nil, errors.New("boom") })
		defer restore()
		if _, err := NewStore("ignored", domain.NewRulesEngine()); err == nil || !strings.Contains(err.Error(), "open postgres") {
			t.Fatalf("expected open error, got %v", err)
		}
	})
	t.Run("ping", func(t *testing.T) {
		db, conn := testutil.NewStubDB()
		conn.FailPing = true
		restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
		defer restore()
		if _, err := NewStore("ignored", domain.NewRulesEngine()); err == nil || !strings.Contains(err.Error(), "ping") {
			t.Fatalf("expected ping error, got %v", err)
		}
	})
	t.Run("select", func(t *testing.T) {
		db, conn := testutil.NewStubDB()
		conn.FailQuery = true
		restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
		defer restore()
		if _, err := NewStore("ignored", domain.NewRulesEngine()); err == nil || !strings.Contains(err.Error(), "select operations") {
			t.Fatalf("expected select error, got %v", err)
		}
	})
	t.Run("decode", func(t *testing.T) {
		db, conn := testutil.NewStubDB()
		conn.Operations = []testutil.Row{{Code: "OP-A", Payload: []byte("{not json")}}
		restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
		defer restore()
		if _, err := NewStore("ignored", domain.NewRulesEngine()); err == nil || !strings.Contains(err.Error(), "decode OP-A") {
			t.Fatalf("expected decode error, got %v", err)
		}
	})
}

func TestStoreDBExposesHandle(t *testing.T) {
	store, _ := openStub(t)
	if store.DB() == nil {
		t.Fatalf("expected DB handle")
	}
}
