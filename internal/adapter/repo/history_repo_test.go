package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"makemyoutfit/internal/domain"
	"makemyoutfit/internal/infra"
)

type stubExecutor struct {
	execQueries []string
	execArgs    [][]any
	execErr     error
	queryArgs   []any
	rows        *stubRows
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.execQueries = append(s.execQueries, query)
	s.execArgs = append(s.execArgs, args)
	if s.execErr != nil {
		return pgconn.CommandTag{}, s.execErr
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	return nil
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	s.queryArgs = args
	if s.rows == nil {
		return nil, errors.New("no rows configured")
	}
	return s.rows, nil
}

type stubRows struct {
	data   [][]any
	idx    int
	closed bool
}

func (r *stubRows) Close()                                       { r.closed = true }
func (r *stubRows) Err() error                                   { return nil }
func (r *stubRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *stubRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *stubRows) RawValues() [][]byte                          { return nil }
func (r *stubRows) Conn() *pgx.Conn                              { return nil }

func (r *stubRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *stubRows) Values() ([]any, error) {
	return r.data[r.idx-1], nil
}

func (r *stubRows) Scan(dest ...any) error {
	row := r.data[r.idx-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d destinations for %d columns", len(dest), len(row))
	}
	for i, v := range row {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *time.Time:
			*d = v.(time.Time)
		default:
			return fmt.Errorf("scan: unsupported destination %T", dest[i])
		}
	}
	return nil
}

const testMarker = "--sql "

func TestHistoryRepositoryAppend(t *testing.T) {
	exec := &stubExecutor{}
	repo := NewHistoryRepository(exec)
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	err := repo.Append(context.Background(), domain.HistoryEntry{
		ID:        "2f1b1c3e-1d3a-4f1e-9c1a-7b8d9e0f1a2b",
		OutfitID:  "OUT-1",
		Namespace: "abcd",
		Kind:      domain.HistoryKindGenerate,
		ImageURL:  "https://example.test/OUT-1.png",
		Delivery:  domain.DeliveryManaged,
		CreatedAt: created,
	})
	if err != nil {
		t.Fatalf("Append returned error: %v", err)
	}
	if len(exec.execQueries) != 1 || !strings.HasPrefix(exec.execQueries[0], testMarker) {
		t.Fatalf("expected marker-prefixed insert, got %q", exec.execQueries)
	}
	args := exec.execArgs[0]
	if len(args) != 9 || args[3] != "generate" || args[7] != "managed" || args[8] != created {
		t.Fatalf("unexpected args %#v", args)
	}
}

func TestHistoryRepositoryAppendWrapsError(t *testing.T) {
	repo := NewHistoryRepository(&stubExecutor{execErr: errors.New("connection reset")})
	err := repo.Append(context.Background(), domain.HistoryEntry{ID: "x"})
	if err == nil || !strings.Contains(err.Error(), "insert outfit history") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestHistoryRepositoryListRecent(t *testing.T) {
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	rows := &stubRows{data: [][]any{
		{"id-2", "OUT-1", "abcd", "revise", "", "make it blue", "", "direct", created.Add(time.Minute)},
		{"id-1", "OUT-1", "abcd", "generate", "red dress", "", "https://example.test/OUT-1.png", "managed", created},
	}}
	exec := &stubExecutor{rows: rows}

	entries, err := NewHistoryRepository(exec).ListRecent(context.Background(), "abcd", 10)
	if err != nil {
		t.Fatalf("ListRecent returned error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Kind != domain.HistoryKindRevise || entries[0].Delivery != domain.DeliveryDirect || entries[0].RevisionText != "make it blue" {
		t.Fatalf("unexpected first entry %+v", entries[0])
	}
	if entries[1].PromptText != "red dress" || !entries[1].CreatedAt.Equal(created) {
		t.Fatalf("unexpected second entry %+v", entries[1])
	}
	if !rows.closed {
		t.Fatal("rows were not closed")
	}
	if len(exec.queryArgs) != 2 || exec.queryArgs[0] != "abcd" || exec.queryArgs[1] != 10 {
		t.Fatalf("unexpected query args %#v", exec.queryArgs)
	}
}

func TestHistoryRepositoryThroughSQLRunner(t *testing.T) {
	exec := &stubExecutor{}
	repo := NewHistoryRepository(infra.NewSQLRunner(exec, nil))
	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema returned error: %v", err)
	}
	if strings.Contains(exec.execQueries[0], "--sql") {
		t.Fatalf("runner should strip the marker, got %q", exec.execQueries[0])
	}
	if !strings.Contains(exec.execQueries[0], "create table if not exists outfit_history") {
		t.Fatalf("unexpected schema query %q", exec.execQueries[0])
	}
}

func TestMemoryHistoryRepository(t *testing.T) {
	repo := NewMemoryHistoryRepository()
	ctx := context.Background()
	for i := 0; i < MemoryHistoryKeep+5; i++ {
		if err := repo.Append(ctx, domain.HistoryEntry{ID: fmt.Sprint(i), Namespace: "ns"}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	_ = repo.Append(ctx, domain.HistoryEntry{ID: "other", Namespace: "other"})

	all, _ := repo.ListRecent(ctx, "ns", 0)
	if len(all) != MemoryHistoryKeep {
		t.Fatalf("expected %d retained entries, got %d", MemoryHistoryKeep, len(all))
	}
	if all[0].ID != fmt.Sprint(MemoryHistoryKeep+4) {
		t.Fatalf("newest entry should come first, got %q", all[0].ID)
	}

	limited, _ := repo.ListRecent(ctx, "ns", 3)
	if len(limited) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(limited))
	}
	if other, _ := repo.ListRecent(ctx, "other", 10); len(other) != 1 {
		t.Fatalf("namespaces must be isolated, got %d", len(other))
	}
}
