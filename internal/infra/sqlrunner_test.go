package infra

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type recordingExecutor struct {
	query string
	args  []any
}

func (r *recordingExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	r.query = query
	r.args = args
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (r *recordingExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	r.query = query
	return errorRow{err: pgx.ErrNoRows}
}

func (r *recordingExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	r.query = query
	return nil, errors.New("not implemented")
}

func TestSQLRunnerStripsMarker(t *testing.T) {
	exec := &recordingExecutor{}
	runner := NewSQLRunner(exec, nil)

	query := "--sql 0b5d6c1e-2f1a-4c55-9a1e-3c1c9f0c2d11\ninsert into t values ($1);"
	if _, err := runner.Exec(context.Background(), query, 1); err != nil {
		t.Fatalf("Exec returned error: %v", err)
	}
	if strings.Contains(exec.query, "--sql") {
		t.Fatalf("marker forwarded to database: %q", exec.query)
	}
	if strings.TrimSpace(exec.query) != "insert into t values ($1);" {
		t.Fatalf("unexpected query body %q", exec.query)
	}
	if len(exec.args) != 1 {
		t.Fatalf("args = %#v", exec.args)
	}
}

func TestSQLRunnerRejectsMissingMarker(t *testing.T) {
	exec := &recordingExecutor{}
	runner := NewSQLRunner(exec, nil)

	if _, err := runner.Exec(context.Background(), "select 1;"); err == nil {
		t.Fatal("expected error for query without marker")
	}
	if exec.query != "" {
		t.Fatalf("query should not reach the database, got %q", exec.query)
	}
	if err := runner.QueryRow(context.Background(), "select 1;").Scan(); err == nil {
		t.Fatal("expected QueryRow error for query without marker")
	}
}

func TestSQLRunnerPassesNoRowsThrough(t *testing.T) {
	runner := NewSQLRunner(&recordingExecutor{}, nil)
	var v int
	err := runner.QueryRow(context.Background(), "--sql 0b5d6c1e-2f1a-4c55-9a1e-3c1c9f0c2d11\nselect 1;").Scan(&v)
	if !IsNoRows(err) {
		t.Fatalf("expected no rows, got %v", err)
	}
}
