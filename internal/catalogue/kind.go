// Package catalogue is the static description of every dm+d record kind:
// its source label, table, columns, foreign keys and one-to-one relations.
//
// The registry is closed. Labels are resolved through a map built at init;
// nothing is looked up by reflection.
package catalogue

import (
	"fmt"
	"strings"

	"dmd/internal/storage"
)

// Class groups kinds by how they are keyed and projected.
type Class int

const (
	// ClassLookup kinds are code/description vocabularies keyed by cd.
	ClassLookup Class = iota
	// ClassPrimary kinds carry their own SNOMED identifier.
	ClassPrimary
	// ClassLink kinds hang off a primary kind and have no key of their own.
	ClassLink
)

func (c Class) String() string {
	switch c {
	case ClassLookup:
		return "lookup"
	case ClassPrimary:
		return "primary"
	case ClassLink:
		return "link"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// Field is one declared column of a kind.
type Field struct {
	// Column is the stored column, i.e. the lowercased source tag after renames.
	Column string
	// Name is the column's name in projections. It differs from Column only
	// for foreign keys (vtmid is projected as vtm).
	Name string
	Type string
	// Ref is the label of the referenced kind, empty for scalar fields.
	Ref string
}

// IsRef reports whether f is a foreign key.
func (f Field) IsRef() bool { return f.Ref != "" }

// IsBool reports whether f uses presence-flag semantics.
func (f Field) IsBool() bool { return f.Type == storage.TypeBool }

// Kind describes one record kind.
type Kind struct {
	// Label is the source tag of a record (VMP) or, for lookups, of the
	// group (UNIT_OF_MEASURE).
	Label string
	// Name is the lowercase label without underscores (controlinfo). It
	// prefixes related-table columns in projections.
	Name  string
	Table string
	Class Class

	// Key is the identifier column; nil for link kinds.
	Key *Field
	// Fields excludes Key and keeps declaration order.
	Fields []Field

	// Owner is the label of the primary kind a link hangs off, and OwnerColumn
	// the column referencing it.
	Owner       string
	OwnerColumn string
	// Multiple is true for links that may occur more than once per owner.
	Multiple bool

	// Related lists link labels owned by this kind, in declaration order.
	Related []string
}

// Columns returns the stored column names, key first.
func (k *Kind) Columns() []string {
	out := make([]string, 0, len(k.Fields)+1)
	if k.Key != nil {
		out = append(out, k.Key.Column)
	}
	for _, f := range k.Fields {
		out = append(out, f.Column)
	}
	return out
}

// Field returns the declared field with the given stored column.
func (k *Kind) Field(column string) (Field, bool) {
	if k.Key != nil && k.Key.Column == column {
		return *k.Key, true
	}
	for _, f := range k.Fields {
		if f.Column == column {
			return f, true
		}
	}
	return Field{}, false
}

// Refs returns the distinct labels k references, in field order.
func (k *Kind) Refs() []string {
	seen := map[string]bool{}
	var out []string
	for _, f := range k.Fields {
		if f.Ref != "" && !seen[f.Ref] {
			seen[f.Ref] = true
			out = append(out, f.Ref)
		}
	}
	return out
}

// Reconcilable reports whether the kind carries a BNF code.
func (k *Kind) Reconcilable() bool {
	_, ok := k.Field(BNFCodeColumn)
	return ok
}

// TableSpec renders the kind as DDL metadata. References point at the
// referenced kind's key.
func (k *Kind) TableSpec() storage.TableSpec {
	spec := storage.TableSpec{Name: k.Table}
	if k.Key != nil {
		spec.PrimaryKey = &storage.PrimaryKeySpec{Name: k.Key.Column, Type: k.Key.Type}
	}
	nullable := false
	for _, f := range k.Fields {
		c := storage.ColumnSpec{Name: f.Column, Type: f.Type}
		if f.IsBool() {
			c.Nullable = &nullable
		}
		if f.IsRef() {
			ref := MustKind(f.Ref)
			c.References = fmt.Sprintf("%s (%s)", ref.Table, ref.Key.Column)
		}
		spec.Columns = append(spec.Columns, c)
	}
	return spec
}

func kindName(label string) string {
	return strings.ToLower(strings.ReplaceAll(label, "_", ""))
}
