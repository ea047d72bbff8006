package reconcile

import (
	"context"
	"fmt"

	"github.com/huandu/go-sqlbuilder"

	"dmd/internal/catalogue"
	"dmd/internal/report"
	"dmd/internal/storage"
)

// PropagateVMPCodes gives a VMP without a BNF code the code of its VMPPs,
// when those VMPPs carry exactly one distinct code between them. VMPs that
// receive a code are logged as inferred; the rest as having no code.
//
// This is one pass. Packs never take codes from products, and AMPs are not
// filled from their AMPPs.
func PropagateVMPCodes(ctx context.Context, q storage.Querier, rep *report.Report) (int, error) {
	vmp := catalogue.MustKind(catalogue.VMP)
	vmpp := catalogue.MustKind(catalogue.VMPP)
	key := vmp.Key.Column

	sb := q.Flavor().NewSelectBuilder()
	sb.Select("vmp."+key, "vmpp."+catalogue.BNFCodeColumn)
	sb.From(sb.As(vmp.Table, "vmp"))
	sb.JoinWithOption(sqlbuilder.LeftOuterJoin, sb.As(vmpp.Table, "vmpp"), "vmp."+key+" = vmpp."+key)
	sb.Where(sb.IsNull("vmp." + catalogue.BNFCodeColumn))
	sb.OrderBy("vmp." + key)
	sql, args := sb.Build()

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("select uncoded vmps: %w", err)
	}
	// Drained before any update: a single-connection store cannot hold an
	// open cursor while executing.
	_, vals, err := storage.ScanAll(rows)
	if err != nil {
		return 0, fmt.Errorf("scan uncoded vmps: %w", err)
	}

	type candidate struct {
		id    any
		codes map[string]bool
	}
	var (
		order []string
		byID  = map[string]*candidate{}
	)
	for _, v := range vals {
		id := storage.NormalizeKey(v[0])
		c, ok := byID[id]
		if !ok {
			c = &candidate{id: v[0], codes: map[string]bool{}}
			byID[id] = c
			order = append(order, id)
		}
		if code := storage.NormalizeKey(v[1]); code != "" {
			c.codes[code] = true
		}
	}

	inferred := 0
	for _, id := range order {
		c := byID[id]
		if len(c.codes) != 1 {
			rep.Add(report.NoCode, id)
			continue
		}
		var code string
		for k := range c.codes {
			code = k
		}

		ub := q.Flavor().NewUpdateBuilder()
		ub.Update(vmp.Table)
		ub.Set(ub.Assign(catalogue.BNFCodeColumn, code))
		ub.Where(ub.Equal(key, c.id))
		sql, args := ub.Build()
		if _, err := q.Exec(ctx, sql, args...); err != nil {
			return inferred, fmt.Errorf("set vmp %s code: %w", id, err)
		}
		rep.Add(report.InferredCode, id)
		inferred++
	}
	return inferred, nil
}
