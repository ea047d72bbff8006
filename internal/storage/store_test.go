package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/huandu/go-sqlbuilder"
)

// fakeStore records statements and returns canned results. It is just enough
// of a Store to exercise the helpers in this package.
type fakeStore struct {
	flavor sqlbuilder.Flavor

	execs    []string
	execArgs [][]any
	execErr  error

	begun      int
	committed  int
	rolledBack int
	commitErr  error
}

func (f *fakeStore) Flavor() sqlbuilder.Flavor { return f.flavor }

func (f *fakeStore) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	f.execs = append(f.execs, query)
	f.execArgs = append(f.execArgs, args)
	if f.execErr != nil {
		return 0, f.execErr
	}
	return 1, nil
}

func (f *fakeStore) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeStore) Begin(ctx context.Context) (Tx, error) {
	f.begun++
	return &fakeTx{fakeStore: f}, nil
}

func (f *fakeStore) EnsureTables(ctx context.Context, tables []TableSpec) error { return nil }
func (f *fakeStore) Close() error                                               { return nil }

type fakeTx struct{ *fakeStore }

func (t *fakeTx) Commit(ctx context.Context) error {
	t.committed++
	return t.commitErr
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	t.rolledBack++
	return nil
}

func TestRegisterAndOpen(t *testing.T) {
	Register("fake-open", func(ctx context.Context, cfg Config) (Store, error) {
		return &fakeStore{flavor: sqlbuilder.SQLite}, nil
	})

	s, err := Open(context.Background(), Config{Kind: "fake-open"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.Flavor() != sqlbuilder.SQLite {
		t.Fatalf("unexpected flavor %v", s.Flavor())
	}

	if _, err := Open(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for empty kind")
	}
	if _, err := Open(context.Background(), Config{Kind: "nope"}); err == nil {
		t.Fatalf("expected error for unknown kind")
	}

	found := false
	for _, k := range Kinds() {
		if k == "fake-open" {
			found = true
		}
	}
	if !found {
		t.Fatalf("Kinds() missing fake-open: %v", Kinds())
	}
}

func TestRegister_PanicsOnDuplicate(t *testing.T) {
	f := func(ctx context.Context, cfg Config) (Store, error) { return nil, nil }
	Register("fake-dup", f)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate registration")
		}
	}()
	Register("fake-dup", f)
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	t.Parallel()

	s := &fakeStore{flavor: sqlbuilder.PostgreSQL}
	err := WithTx(context.Background(), s, func(tx Tx) error {
		_, err := tx.Exec(context.Background(), "SELECT 1")
		return err
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}
	if s.begun != 1 || s.committed != 1 || s.rolledBack != 0 {
		t.Fatalf("begun=%d committed=%d rolledBack=%d", s.begun, s.committed, s.rolledBack)
	}
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	t.Parallel()

	s := &fakeStore{flavor: sqlbuilder.PostgreSQL}
	boom := errors.New("boom")
	err := WithTx(context.Background(), s, func(tx Tx) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if s.committed != 0 || s.rolledBack != 1 {
		t.Fatalf("committed=%d rolledBack=%d", s.committed, s.rolledBack)
	}
}

func TestWithTx_RollsBackOnCommitError(t *testing.T) {
	t.Parallel()

	s := &fakeStore{flavor: sqlbuilder.PostgreSQL, commitErr: errors.New("serialization failure")}
	err := WithTx(context.Background(), s, func(tx Tx) error { return nil })
	if err == nil || !strings.Contains(err.Error(), "commit") {
		t.Fatalf("expected commit error, got %v", err)
	}
	if s.rolledBack != 1 {
		t.Fatalf("expected rollback after failed commit, got %d", s.rolledBack)
	}
}

func TestInsertRows_SplitsOnParameterLimit(t *testing.T) {
	t.Parallel()

	s := &fakeStore{flavor: sqlbuilder.SQLServer}
	cols := []string{"a", "b", "c", "d"}
	rows := make([][]any, 1200)
	for i := range rows {
		rows[i] = []any{i, "x", nil, true}
	}

	if _, err := InsertRows(context.Background(), s, "t", cols, rows); err != nil {
		t.Fatalf("InsertRows: %v", err)
	}
	// 2000 params / 4 cols = 500 rows per statement.
	if len(s.execs) != 3 {
		t.Fatalf("expected 3 statements, got %d", len(s.execs))
	}
	for i, args := range s.execArgs {
		if len(args) > 2000 {
			t.Fatalf("statement %d has %d args", i, len(args))
		}
	}
	if !strings.Contains(s.execs[0], "@p1") {
		t.Fatalf("expected SQL Server placeholders, got %q", s.execs[0][:60])
	}
}

func TestInsertRows_RejectsRaggedRows(t *testing.T) {
	t.Parallel()

	s := &fakeStore{flavor: sqlbuilder.PostgreSQL}
	_, err := InsertRows(context.Background(), s, "t", []string{"a", "b"}, [][]any{{1, 2}, {1}})
	if err == nil {
		t.Fatalf("expected error for short row")
	}
	if len(s.execs) != 0 {
		t.Fatalf("expected no statements, got %d", len(s.execs))
	}
}

func TestInsertRows_EmptyIsNoop(t *testing.T) {
	t.Parallel()

	s := &fakeStore{flavor: sqlbuilder.PostgreSQL}
	n, err := InsertRows(context.Background(), s, "t", []string{"a"}, nil)
	if err != nil || n != 0 || len(s.execs) != 0 {
		t.Fatalf("n=%d err=%v execs=%d", n, err, len(s.execs))
	}
}

func TestBatchSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		flavor sqlbuilder.Flavor
		cols   int
		want   int
	}{
		{sqlbuilder.PostgreSQL, 25, 2600},
		{sqlbuilder.SQLite, 8, 4000},
		{sqlbuilder.SQLServer, 1, 1000},
		{sqlbuilder.SQLServer, 3000, 1},
	}
	for _, tc := range tests {
		if got := batchSize(tc.flavor, tc.cols); got != tc.want {
			t.Fatalf("batchSize(%v, %d) = %d, want %d", tc.flavor, tc.cols, got, tc.want)
		}
	}
}

func TestNormalizeKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"  0407010H0 ", "0407010H0"},
		{[]byte("abc"), "abc"},
		{int64(10525011000001107), "10525011000001107"},
		{int32(7), "7"},
		{12, "12"},
		{1.5, "1.5"},
	}
	for _, tc := range tests {
		if got := NormalizeKey(tc.in); got != tc.want {
			t.Fatalf("NormalizeKey(%#v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTableSpec_ColumnNames(t *testing.T) {
	t.Parallel()

	spec := TableSpec{
		Name:       "dmd_vmp",
		PrimaryKey: &PrimaryKeySpec{Name: "vpid", Type: TypeBigint},
		Columns:    []ColumnSpec{{Name: "nm", Type: TypeText}, {Name: "bnf_code", Type: TypeText}},
	}
	got := strings.Join(spec.ColumnNames(), ",")
	if got != "vpid,nm,bnf_code" {
		t.Fatalf("ColumnNames = %q", got)
	}
}
