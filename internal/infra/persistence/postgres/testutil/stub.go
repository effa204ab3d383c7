// Package testutil provides an in-memory stand-in for the operations table
// used by the postgres store tests.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
)

// Row is one stored operations row.
type Row struct {
	Code     string
	Position int64
	Payload  []byte
}

// StubConn holds the operations table and records every executed statement.
// It accepts only the statements the postgres store issues; anything else
// is an error so a drifting query shows up in tests.
type StubConn struct {
	Execs      []string
	Operations []Row

	FailExec   bool
	FailPing   bool
	FailBegin  bool
	FailQuery  bool
	FailCommit bool

	Commits   int
	Rollbacks int
}

// NewStubDB returns a sql.DB whose single connection is the returned stub.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{}
	return sql.OpenDB(stubConnector{conn: conn}), conn
}

// Find returns the row stored under code.
func (c *StubConn) Find(code string) (Row, bool) {
	i := slices.IndexFunc(c.Operations, func(r Row) bool { return r.Code == code })
	if i < 0 {
		return Row{}, false
	}
	return c.Operations[i], true
}

type stubConnector struct{ conn *StubConn }

func (s stubConnector) Connect(context.Context) (driver.Conn, error) { return s.conn, nil }
func (s stubConnector) Driver() driver.Driver                        { return stubDriver{conn: s.conn} }

type stubDriver struct{ conn *StubConn }

func (d stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

// Prepare implements driver.Conn; statements go through ExecContext and QueryContext instead.
func (c *StubConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("prepare not supported") }

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// BeginTx implements driver.ConnBeginTx.
func (c *StubConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	if c.FailBegin {
		return nil, errors.New("begin fail")
	}
	return stubTx{conn: c}, nil
}

// Ping implements driver.Pinger.
func (c *StubConn) Ping(context.Context) error {
	if c.FailPing {
		return errors.New("ping fail")
	}
	return nil
}

// ExecContext implements driver.ExecerContext.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.Execs = append(c.Execs, query)
	if c.FailExec {
		return nil, errors.New("exec fail")
	}
	switch keyword(query) {
	case "CREATE":
		return driver.RowsAffected(0), nil
	case "INSERT":
		if len(args) != 3 {
			return nil, fmt.Errorf("upsert wants code, position, payload; got %d args", len(args))
		}
		row, err := rowFromArgs(args)
		if err != nil {
			return nil, err
		}
		if i := slices.IndexFunc(c.Operations, func(r Row) bool { return r.Code == row.Code }); i >= 0 {
			c.Operations[i] = row
		} else {
			c.Operations = append(c.Operations, row)
		}
		return driver.RowsAffected(1), nil
	case "DELETE":
		if len(args) != 1 {
			return nil, fmt.Errorf("delete wants a code; got %d args", len(args))
		}
		before := len(c.Operations)
		c.Operations = slices.DeleteFunc(c.Operations, func(r Row) bool { return r.Code == args[0].Value })
		return driver.RowsAffected(int64(before - len(c.Operations))), nil
	}
	return nil, fmt.Errorf("unsupported statement: %s", query)
}

// QueryContext implements driver.QueryerContext. The only query is the
// full table scan ordered by position.
func (c *StubConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	if keyword(query) != "SELECT" {
		return nil, fmt.Errorf("unsupported query: %s", query)
	}
	if c.FailQuery {
		return nil, errors.New("query fail")
	}
	rows := slices.Clone(c.Operations)
	slices.SortStableFunc(rows, func(a, b Row) int { return int(a.Position - b.Position) })
	return &stubRows{rows: rows}, nil
}

func keyword(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

func rowFromArgs(args []driver.NamedValue) (Row, error) {
	code, ok := args[0].Value.(string)
	if !ok {
		return Row{}, fmt.Errorf("code must be text, got %T", args[0].Value)
	}
	position, ok := args[1].Value.(int64)
	if !ok {
		return Row{}, fmt.Errorf("position must be an integer, got %T", args[1].Value)
	}
	payload, ok := args[2].Value.([]byte)
	if !ok {
		return Row{}, fmt.Errorf("payload must be bytes, got %T", args[2].Value)
	}
	return Row{Code: code, Position: position, Payload: slices.Clone(payload)}, nil
}

type stubTx struct{ conn *StubConn }

func (t stubTx) Commit() error {
	if t.conn.FailCommit {
		return errors.New("commit fail")
	}
	t.conn.Commits++
	return nil
}

func (t stubTx) Rollback() error {
	t.conn.Rollbacks++
	return nil
}

type stubRows struct {
	rows []Row
	idx  int
}

func (r *stubRows) Columns() []string { return []string{"code", "position", "payload"} }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		return io.EOF
	}
	row := r.rows[r.idx]
	dest[0], dest[1], dest[2] = row.Code, row.Position, row.Payload
	r.idx++
	return nil
}
