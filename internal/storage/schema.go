// TableSpec types live here so catalogue, loader and backend packages can all
// import them without circular deps.
package storage

// Logical column types. Each backend maps them onto its own DDL types.
const (
	TypeText      = "text"
	TypeBigint    = "bigint"
	TypeBool      = "boolean"
	TypeDate      = "date"
	TypeNumeric   = "numeric"
	TypeTimestamp = "timestamp"
)

type TableSpec struct {
	Name       string          `json:"name"`
	PrimaryKey *PrimaryKeySpec `json:"primary_key,omitempty"`
	Columns    []ColumnSpec    `json:"columns"`
}

// PrimaryKeySpec renders as the first column of the table. The primary key
// column must not be repeated in Columns.
type PrimaryKeySpec struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type ColumnSpec struct {
	Name string `json:"name"`
	Type string `json:"type"`
	// References is rendered verbatim, e.g. "dmd_vmp (vpid)".
	References string `json:"references,omitempty"`
	Nullable   *bool  `json:"nullable,omitempty"`
}

// ColumnNames returns every column of t in DDL order, primary key first.
func (t TableSpec) ColumnNames() []string {
	out := make([]string, 0, len(t.Columns)+1)
	if t.PrimaryKey != nil {
		out = append(out, t.PrimaryKey.Name)
	}
	for _, c := range t.Columns {
		out = append(out, c.Name)
	}
	return out
}

// IsNullable reports the column's nullability. A nil Nullable means NULL is
// allowed.
func (c ColumnSpec) IsNullable() bool {
	if c.Nullable == nil {
		return true
	}
	return *c.Nullable
}
