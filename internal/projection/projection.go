// Package projection builds the flattened, fully joined view of a dm+d
// product or pack used for analytics.
//
// Build is a pure function of the catalogue metadata; SQL renders the result
// for a given go-sqlbuilder flavor.
package projection

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/huandu/go-sqlbuilder"

	"dmd/internal/catalogue"
	"dmd/internal/storage"
)

// Column is one output column.
type Column struct {
	Expr  string
	Alias string
	Type  string
}

// Join is one LEFT OUTER JOIN. Aliases are T<n> for tables joined to the
// base table and U<n> for lookups joined to a related table.
type Join struct {
	Alias string
	Table string
	On    string
}

// Projection is the flattened view of one kind.
type Projection struct {
	Kind    *catalogue.Kind
	Base    string
	Alias   string
	Columns []Column
	Joins   []Join
	OrderBy string
}

// Table returns the analytics table name for a kind's projection.
func Table(k *catalogue.Kind) string { return k.Name + "_full" }

// Build flattens kind k:
//
//   - scalar fields are selected as they are;
//   - a foreign key to a lookup selects the lookup's descr, and a foreign
//     key to another product or pack selects that object's id;
//   - each one-to-one related table contributes its own fields as
//     <related>_<field>, resolving its foreign keys through a second join;
//   - multi-valued relations are left out.
//
// Joins are sorted by alias, first-layer before second-layer, and the rows
// by the base table's id, so the output is stable across runs.
func Build(k *catalogue.Kind) (Projection, error) {
	if k.Class != catalogue.ClassPrimary {
		return Projection{}, fmt.Errorf("projection: %s is a %s kind", k.Label, k.Class)
	}

	p := Projection{
		Kind:    k,
		Base:    k.Table,
		Alias:   k.Name,
		OrderBy: k.Name + "." + k.Key.Column,
	}
	p.Columns = append(p.Columns, Column{Expr: p.OrderBy, Alias: "id", Type: k.Key.Type})

	var t, u int
	for _, f := range k.Fields {
		if !f.IsRef() {
			p.Columns = append(p.Columns, Column{Expr: k.Name + "." + f.Column, Alias: f.Name, Type: f.Type})
			continue
		}
		alias := "T" + strconv.Itoa(t)
		t++
		col, join := resolve(f, alias, k.Name)
		col.Alias = f.Name
		p.Columns = append(p.Columns, col)
		p.Joins = append(p.Joins, join)
	}

	for _, label := range k.Related {
		rel, ok := catalogue.Lookup(label)
		if !ok {
			return Projection{}, fmt.Errorf("projection: %s relates to unknown kind %s", k.Label, label)
		}
		if rel.Multiple {
			continue
		}

		relAlias := "T" + strconv.Itoa(t)
		for _, f := range rel.Fields {
			if f.Column == rel.OwnerColumn {
				continue
			}
			name := rel.Name + "_" + f.Name
			if !f.IsRef() {
				p.Columns = append(p.Columns, Column{Expr: relAlias + "." + f.Column, Alias: name, Type: f.Type})
				continue
			}
			alias := "U" + strconv.Itoa(u)
			u++
			col, join := resolve(f, alias, relAlias)
			col.Alias = name
			p.Columns = append(p.Columns, col)
			p.Joins = append(p.Joins, join)
		}
		p.Joins = append(p.Joins, Join{
			Alias: relAlias,
			Table: rel.Table,
			On:    fmt.Sprintf("%s.%s = %s.%s", k.Name, k.Key.Column, relAlias, rel.OwnerColumn),
		})
		t++
	}

	sort.SliceStable(p.Joins, func(i, j int) bool { return joinLess(p.Joins[i].Alias, p.Joins[j].Alias) })
	return p, nil
}

// resolve joins the kind referenced by f, selected from table alias from.
func resolve(f catalogue.Field, alias, from string) (Column, Join) {
	ref := catalogue.MustKind(f.Ref)
	join := Join{
		Alias: alias,
		Table: ref.Table,
		On:    fmt.Sprintf("%s.%s = %s.%s", from, f.Column, alias, ref.Key.Column),
	}
	if ref.Class == catalogue.ClassLookup {
		return Column{Expr: alias + ".descr", Type: storage.TypeText}, join
	}
	return Column{Expr: alias + "." + ref.Key.Column, Type: ref.Key.Type}, join
}

// joinLess orders aliases by layer letter, then numerically, so T10 sorts
// after T9.
func joinLess(a, b string) bool {
	if a[0] != b[0] {
		return a[0] < b[0]
	}
	ai, _ := strconv.Atoi(a[1:])
	bi, _ := strconv.Atoi(b[1:])
	return ai < bi
}

// SQL renders the projection as one SELECT.
func (p Projection) SQL(f sqlbuilder.Flavor) string {
	sb := f.NewSelectBuilder()

	exprs := make([]string, len(p.Columns))
	for i, c := range p.Columns {
		if strings.HasSuffix(c.Expr, "."+c.Alias) {
			exprs[i] = c.Expr
		} else {
			exprs[i] = sb.As(c.Expr, c.Alias)
		}
	}
	sb.Select(exprs...)
	sb.From(sb.As(p.Base, p.Alias))
	for _, j := range p.Joins {
		sb.JoinWithOption(sqlbuilder.LeftOuterJoin, sb.As(j.Table, j.Alias), j.On)
	}
	sb.OrderBy(p.OrderBy)

	sql, _ := sb.Build()
	return sql
}

// ColumnNames returns the output column names in order.
func (p Projection) ColumnNames() []string {
	out := make([]string, len(p.Columns))
	for i, c := range p.Columns {
		out[i] = c.Alias
	}
	return out
}

// TableSpec describes a table able to hold the projection's rows.
func (p Projection) TableSpec() storage.TableSpec {
	spec := storage.TableSpec{Name: Table(p.Kind)}
	for _, c := range p.Columns {
		spec.Columns = append(spec.Columns, storage.ColumnSpec{Name: c.Alias, Type: c.Type})
	}
	return spec
}

// BuildAll returns the projections of VMP, AMP, VMPP and AMPP.
func BuildAll() ([]Projection, error) {
	var out []Projection
	for _, k := range catalogue.Reconcilable() {
		p, err := Build(k)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
