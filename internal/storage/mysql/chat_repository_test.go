package mysql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestMemoryChatRepositorySaveAndList(t *testing.T) {
	t.Parallel()

	repo, err := NewMemoryChatRepository(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create memory repo: %v", err)
	}

	ctx := context.Background()
	now := time.Now().Unix()
	for i := 0; i < 3; i++ {
		record := ChatRecord{
			SessionID:     "sess-a",
			TurnID:        fmt.Sprintf("turn-%d", i),
			UserMessage:   fmt.Sprintf("message %d", i),
			Reply:         "reply",
			Widget:        "idle",
			FunctionCalls: "[]",
			CreatedAt:     now + int64(i),
		}
		if err := repo.Save(ctx, record); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}
	if err := repo.Save(ctx, ChatRecord{SessionID: "sess-b", TurnID: "other", FunctionCalls: "[]", CreatedAt: now}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	list, err := repo.ListBySession(ctx, "sess-a", 2)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 records, got %d", len(list))
	}
	if list[0].TurnID != "turn-2" {
		t.Fatalf("records not in reverse insert order: %+v", list)
	}
	if list[0].SessionID != "sess-a" || list[1].SessionID != "sess-a" {
		t.Fatalf("records from other sessions leaked: %+v", list)
	}
}

func TestMemoryChatRepositoryRestoresFromDisk(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	repo, err := NewMemoryChatRepository(dir)
	if err != nil {
		t.Fatalf("failed to create memory repo: %v", err)
	}

	ctx := context.Background()
	if err := repo.Save(ctx, ChatRecord{SessionID: "sess", TurnID: "t1", UserMessage: "hi", Reply: "hello", FunctionCalls: "[]", CreatedAt: 1}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	reloaded, err := NewMemoryChatRepository(dir)
	if err != nil {
		t.Fatalf("failed to reload memory repo: %v", err)
	}
	list, err := reloaded.ListBySession(ctx, "sess", 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 1 || list[0].Reply != "hello" {
		t.Fatalf("unexpected restored records: %+v", list)
	}
}

func TestSQLChatRepositorySave(t *testing.T) {
	t.Parallel()

	db, drv := newMockDB(t, []mockOperation{
		execOp(insertChatSQL(), mockResult{lastInsertID: 1, rowsAffected: 1}),
	})
	defer drv.assertConsumed(t)
	defer db.Close()

	repo := &SQLChatRepository{db: db}
	record := ChatRecord{SessionID: "sess", TurnID: "turn", UserMessage: "msg", Reply: "reply", Widget: "idle", FunctionCalls: "[]", CreatedAt: 1}
	if err := repo.Save(context.Background(), record); err != nil {
		t.Fatalf("save failed: %v", err)
	}
}

func TestSQLChatRepositoryListBySession(t *testing.T) {
	t.Parallel()

	rows := mockRowsData{
		columns: []string{"session_id", "turn_id", "user_message", "reply", "widget", "function_calls", "created_at"},
		values: [][]driver.Value{
			{"sess", "t2", "m2", "r2", "justlend-list", "[]", int64(20)},
			{"sess", "t1", "m1", "r1", "idle", "[]", int64(10)},
		},
	}

	db, drv := newMockDB(t, []mockOperation{
		queryOp(`SELECT session_id, turn_id, user_message, reply, widget, function_calls, created_at
        FROM chat_turns WHERE session_id = ? ORDER BY id DESC LIMIT ?`, rows),
	})
	defer drv.assertConsumed(t)
	defer db.Close()

	repo := &SQLChatRepository{db: db}
	list, err := repo.ListBySession(context.Background(), "sess", 2)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 2 || list[0].TurnID != "t2" {
		t.Fatalf("unexpected list: %+v", list)
	}
}

type operationType int

const (
	opExec operationType = iota
	opQuery
)

type mockOperation struct {
	typ    operationType
	query  string
	result mockResult
	rows   mockRowsData
	err    error
}

type mockResult struct {
	lastInsertID int64
	rowsAffected int64
}

func (r mockResult) LastInsertId() (int64, error) { return r.lastInsertID, nil }
func (r mockResult) RowsAffected() (int64, error) { return r.rowsAffected, nil }

type mockRowsData struct {
	columns []string
	values  [][]driver.Value
}

type queueDriver struct {
	ops []mockOperation
	idx int32
}

var driverSeq atomic.Int32

func newMockDB(t *testing.T, ops []mockOperation) (*sql.DB, *queueDriver) {
	t.Helper()

	drv := &queueDriver{ops: ops}
	name := fmt.Sprintf("mock-mysql-%d", driverSeq.Add(1))
	sql.Register(name, drv)

	db, err := sql.Open(name, "")
	if err != nil {
		t.Fatalf("open mock db failed: %v", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return db, drv
}

func execOp(query string, result mockResult) mockOperation {
	return mockOperation{typ: opExec, query: query, result: result}
}

func queryOp(query string, rows mockRowsData) mockOperation {
	return mockOperation{typ: opQuery, query: query, rows: rows}
}

func insertChatSQL() string {
	return `INSERT INTO chat_turns
        (session_id, turn_id, user_message, reply, widget, function_calls, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`
}

func (d *queueDriver) assertConsumed(t *testing.T) {
	t.Helper()

	if int(atomic.LoadInt32(&d.idx)) != len(d.ops) {
		t.Fatalf("not all operations consumed: %d/%d", atomic.LoadInt32(&d.idx), len(d.ops))
	}
}

func (d *queueDriver) Open(name string) (driver.Conn, error) {
	return &mockConn{driver: d}, nil
}

type mockConn struct {
	driver *queueDriver
}

func (c *mockConn) Prepare(query string) (driver.Stmt, error) {
	return nil, fmt.Errorf("prepare not supported: %s", query)
}

func (c *mockConn) Close() error { return nil }

func (c *mockConn) Begin() (driver.Tx, error) {
	return nil, fmt.Errorf("transactions not supported")
}

func (c *mockConn) Exec(query string, args []driver.Value) (driver.Result, error) {
	return c.ExecContext(context.Background(), query, named(args))
}

func (c *mockConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	op, err := c.next(opExec, query)
	if err != nil {
		return nil, err
	}
	if op.err != nil {
		return nil, op.err
	}
	return op.result, nil
}

func (c *mockConn) Query(query string, args []driver.Value) (driver.Rows, error) {
	return c.QueryContext(context.Background(), query, named(args))
}

func (c *mockConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	op, err := c.next(opQuery, query)
	if err != nil {
		return nil, err
	}
	if op.err != nil {
		return nil, op.err
	}
	return &mockRows{columns: op.rows.columns, values: op.rows.values}, nil
}

func (c *mockConn) Ping(ctx context.Context) error { return nil }

func (c *mockConn) next(expected operationType, query string) (*mockOperation, error) {
	idx := int(atomic.LoadInt32(&c.driver.idx))
	if idx >= len(c.driver.ops) {
		return nil, fmt.Errorf("unexpected operation: %v", expected)
	}
	op := &c.driver.ops[idx]
	if op.typ != expected {
		return nil, fmt.Errorf("expected operation %v, got %v", expected, op.typ)
	}
	atomic.AddInt32(&c.driver.idx, 1)
	if op.query != "" {
		expectedSQL := normalizeSQL(op.query)
		actualSQL := normalizeSQL(query)
		if expectedSQL != actualSQL {
			return nil, fmt.Errorf("unexpected query. want %q got %q", expectedSQL, actualSQL)
		}
	}
	return op, nil
}

type mockRows struct {
	columns []string
	values  [][]driver.Value
	idx     int
}

func (r *mockRows) Columns() []string { return r.columns }
func (r *mockRows) Close() error      { return nil }

func (r *mockRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.values) {
		return io.EOF
	}
	copy(dest, r.values[r.idx])
	r.idx++
	return nil
}

func named(args []driver.Value) []driver.NamedValue {
	namedArgs := make([]driver.NamedValue, len(args))
	for i, arg := range args {
		namedArgs[i] = driver.NamedValue{Ordinal: i + 1, Value: arg}
	}
	return namedArgs
}

func normalizeSQL(query string) string {
	fields := strings.Fields(query)
	return strings.Join(fields, " ")
}
