package postgres

import (
	"strings"
	"testing"

	"dmd/internal/storage"
)

// boolPtr is a tiny helper to avoid repeating &[]bool literals in tests.
func boolPtr(v bool) *bool { return &v }

func TestBuildCreateSQL_LookupTable(t *testing.T) {
	t.Parallel()

	spec := storage.TableSpec{
		Name:       "dmd_route",
		PrimaryKey: &storage.PrimaryKeySpec{Name: "cd", Type: storage.TypeBigint},
		Columns: []storage.ColumnSpec{
			{Name: "cddt", Type: storage.TypeDate},
			{Name: "descr", Type: storage.TypeText, Nullable: boolPtr(false)},
		},
	}

	schemaSQL, baseSQL, err := buildCreateSQL(spec)
	if err != nil {
		t.Fatalf("buildCreateSQL: %v", err)
	}
	if schemaSQL != "" {
		t.Fatalf("expected no schemaSQL for unqualified table, got %q", schemaSQL)
	}
	if !strings.HasPrefix(baseSQL, "CREATE TABLE IF NOT EXISTS dmd_route (") {
		t.Fatalf("baseSQL missing CREATE TABLE: %q", baseSQL)
	}
	if !strings.Contains(baseSQL, `"cd" BIGINT PRIMARY KEY`) {
		t.Fatalf("baseSQL missing primary key: %q", baseSQL)
	}
	if !strings.Contains(baseSQL, `"cddt" DATE,`) {
		t.Fatalf("nullable column should not be NOT NULL: %q", baseSQL)
	}
	if !strings.Contains(baseSQL, `"descr" TEXT NOT NULL`) {
		t.Fatalf("baseSQL missing NOT NULL descr: %q", baseSQL)
	}
}

func TestBuildCreateSQL_ForeignKeysAreDeferred(t *testing.T) {
	t.Parallel()

	spec := storage.TableSpec{
		Name:       "dmd_vmpp",
		PrimaryKey: &storage.PrimaryKeySpec{Name: "vppid", Type: storage.TypeBigint},
		Columns: []storage.ColumnSpec{
			{Name: "vpid", Type: storage.TypeBigint, References: "dmd_vmp (vpid)"},
			{Name: "qtyval", Type: storage.TypeNumeric},
			{Name: "invalid", Type: storage.TypeBool, Nullable: boolPtr(false)},
		},
	}

	_, baseSQL, err := buildCreateSQL(spec)
	if err != nil {
		t.Fatalf("buildCreateSQL: %v", err)
	}
	if !strings.Contains(baseSQL, `"vpid" BIGINT REFERENCES dmd_vmp (vpid) DEFERRABLE INITIALLY DEFERRED`) {
		t.Fatalf("expected deferred FK, got %q", baseSQL)
	}
	if !strings.Contains(baseSQL, `"qtyval" NUMERIC`) || !strings.Contains(baseSQL, `"invalid" BOOLEAN NOT NULL`) {
		t.Fatalf("unexpected column types: %q", baseSQL)
	}
}

func TestBuildCreateSQL_SchemaQualified(t *testing.T) {
	t.Parallel()

	schemaSQL, baseSQL, err := buildCreateSQL(storage.TableSpec{
		Name:    "dmd.import_log",
		Columns: []storage.ColumnSpec{{Name: "category", Type: storage.TypeText}},
	})
	if err != nil {
		t.Fatalf("buildCreateSQL: %v", err)
	}
	if schemaSQL != `CREATE SCHEMA IF NOT EXISTS "dmd";` {
		t.Fatalf("schemaSQL = %q", schemaSQL)
	}
	if !strings.Contains(baseSQL, "dmd.import_log") {
		t.Fatalf("baseSQL = %q", baseSQL)
	}
}

func TestBuildCreateSQL_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		spec storage.TableSpec
	}{
		{"empty_name", storage.TableSpec{Columns: []storage.ColumnSpec{{Name: "a", Type: "text"}}}},
		{"no_columns", storage.TableSpec{Name: "t"}},
		{"pk_without_type", storage.TableSpec{Name: "t", PrimaryKey: &storage.PrimaryKeySpec{Name: "id"}}},
		{"column_without_type", storage.TableSpec{Name: "t", Columns: []storage.ColumnSpec{{Name: "a"}}}},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, _, err := buildCreateSQL(tc.spec); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestPgType_PassesThroughNativeTypes(t *testing.T) {
	t.Parallel()

	if got := pgType("varchar(100)"); got != "varchar(100)" {
		t.Fatalf("pgType passthrough = %q", got)
	}
	if got := pgType(storage.TypeTimestamp); got != "TIMESTAMPTZ" {
		t.Fatalf("pgType(timestamp) = %q", got)
	}
}

func TestPgIdent_EscapesQuotes(t *testing.T) {
	t.Parallel()

	if got := pgIdent(`we"ird`); got != `"we""ird"` {
		t.Fatalf("pgIdent = %q", got)
	}
}
