package naming

import (
	"context"
	"fmt"
	"sort"

	"dmd/internal/catalogue"
	"dmd/internal/report"
	"dmd/internal/storage"
)

// Candidates maps a BNF code to the distinct names carrying it, per kind
// label.
type Candidates map[string]map[string]map[string]bool

// Names returns the sorted distinct names of kind label under code.
func (c Candidates) Names(code, label string) []string {
	set := c[code][label]
	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (c Candidates) add(code, label, name string) {
	byKind, ok := c[code]
	if !ok {
		byKind = map[string]map[string]bool{}
		c[code] = byKind
	}
	if byKind[label] == nil {
		byKind[label] = map[string]bool{}
	}
	byKind[label][name] = true
}

// LoadCandidates collects the names of every coded VMP, AMP, VMPP and AMPP.
func LoadCandidates(ctx context.Context, q storage.Querier) (Candidates, error) {
	out := Candidates{}
	for _, k := range catalogue.Reconcilable() {
		sb := q.Flavor().NewSelectBuilder()
		sb.Select(catalogue.BNFCodeColumn, "nm").From(k.Table)
		sb.Where(sb.IsNotNull(catalogue.BNFCodeColumn))
		sql, args := sb.Build()

		rows, err := q.Query(ctx, sql, args...)
		if err != nil {
			return nil, fmt.Errorf("select %s names: %w", k.Label, err)
		}
		_, vals, err := storage.ScanAll(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s names: %w", k.Label, err)
		}
		for _, v := range vals {
			code, name := storage.NormalizeKey(v[0]), storage.NormalizeKey(v[1])
			if code == "" || name == "" {
				continue
			}
			out.add(code, k.Label, name)
		}
	}
	return out, nil
}

// Choose picks the display name for code. Kinds are tried in priority
// order and the first kind with any names decides: one name is used as is,
// several go through CommonName. The result is false when no name could be
// chosen.
func Choose(c Candidates, code string, rep *report.Report) (string, bool) {
	if _, ok := c[code]; !ok {
		return "", false
	}
	for _, k := range catalogue.Reconcilable() {
		names := c.Names(code, k.Label)
		switch {
		case len(names) == 0:
			continue
		case len(names) == 1:
			return names[0], true
		}

		rep.Add(report.MultipleObjects, code)
		name, ok := CommonName(names)
		if !ok {
			rep.Add(report.MultipleNoName, code)
		}
		return name, ok
	}
	return "", false
}

// SetDMDNames recomputes presentation.dmd_name for every presentation and
// returns how many received a name.
func SetDMDNames(ctx context.Context, q storage.Querier, rep *report.Report) (int, error) {
	ub := q.Flavor().NewUpdateBuilder()
	ub.Update(catalogue.PresentationTable)
	ub.Set(ub.Assign("dmd_name", nil))
	sql, args := ub.Build()
	if _, err := q.Exec(ctx, sql, args...); err != nil {
		return 0, fmt.Errorf("clear dmd names: %w", err)
	}

	cands, err := LoadCandidates(ctx, q)
	if err != nil {
		return 0, err
	}

	sb := q.Flavor().NewSelectBuilder()
	sb.Select("bnf_code").From(catalogue.PresentationTable).OrderBy("bnf_code")
	sql, args = sb.Build()
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("select presentations: %w", err)
	}
	_, vals, err := storage.ScanAll(rows)
	if err != nil {
		return 0, fmt.Errorf("scan presentations: %w", err)
	}

	named := 0
	for _, v := range vals {
		code := storage.NormalizeKey(v[0])
		name, ok := Choose(cands, code, rep)
		if !ok {
			continue
		}

		ub := q.Flavor().NewUpdateBuilder()
		ub.Update(catalogue.PresentationTable)
		ub.Set(ub.Assign("dmd_name", name))
		ub.Where(ub.Equal("bnf_code", v[0]))
		sql, args := ub.Build()
		if _, err := q.Exec(ctx, sql, args...); err != nil {
			return named, fmt.Errorf("set dmd name for %s: %w", code, err)
		}
		named++
	}
	return named, nil
}
