package mssql

import (
	"strings"
	"testing"

	"dmd/internal/storage"
)

func TestBuildCreateSQL_GuardedAndTyped(t *testing.T) {
	t.Parallel()

	no := false
	stmts, err := buildCreateSQL(storage.TableSpec{
		Name:       "presentation",
		PrimaryKey: &storage.PrimaryKeySpec{Name: "bnf_code", Type: storage.TypeText},
		Columns: []storage.ColumnSpec{
			{Name: "name", Type: storage.TypeText, Nullable: &no},
			{Name: "dmd_name", Type: storage.TypeText},
			{Name: "vpid", Type: storage.TypeBigint, References: "dmd_vmp (vpid)"},
			{Name: "invalid", Type: storage.TypeBool},
		},
	})
	if err != nil {
		t.Fatalf("buildCreateSQL: %v", err)
	}
	if len(stmts) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(stmts))
	}
	sql := stmts[0]

	for _, want := range []string{
		"IF OBJECT_ID(N'presentation', N'U') IS NULL BEGIN CREATE TABLE [presentation] (",
		"[bnf_code] NVARCHAR(450) PRIMARY KEY",
		"[name] NVARCHAR(MAX) NOT NULL",
		"[dmd_name] NVARCHAR(MAX)",
		"[invalid] BIT",
	} {
		if !strings.Contains(sql, want) {
			t.Fatalf("DDL missing %q:\n%s", want, sql)
		}
	}
	if strings.Contains(sql, "REFERENCES") {
		t.Fatalf("SQL Server DDL must not carry immediate foreign keys:\n%s", sql)
	}
}

func TestMssqlTableIdent(t *testing.T) {
	t.Parallel()

	if got := mssqlTableIdent("dbo.dmd_vmp"); got != "[dbo].[dmd_vmp]" {
		t.Fatalf("mssqlTableIdent = %q", got)
	}
	if got := mssqlIdent("a]b"); got != "[a]]b]" {
		t.Fatalf("mssqlIdent = %q", got)
	}
}

func TestMssqlColumnDef_Errors(t *testing.T) {
	t.Parallel()

	if _, err := mssqlColumnDef(storage.ColumnSpec{Type: "text"}); err == nil {
		t.Fatalf("expected error for empty name")
	}
	if _, err := mssqlColumnDef(storage.ColumnSpec{Name: "a"}); err == nil {
		t.Fatalf("expected error for empty type")
	}
}
