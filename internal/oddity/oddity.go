// Package oddity finds data-quality problems that the import leaves alone.
package oddity

import (
	"context"
	"fmt"

	"dmd/internal/catalogue"
	"dmd/internal/report"
	"dmd/internal/storage"
)

type family struct {
	product, pack string
	category      report.Category
}

var families = []family{
	{catalogue.VMP, catalogue.VMPP, report.VMPPCodeMismatch},
	{catalogue.AMP, catalogue.AMPP, report.AMPPCodeMismatch},
}

// Detect logs every pack whose BNF code differs from its product's. Packs
// or products without a code are not compared. Nothing is corrected.
func Detect(ctx context.Context, q storage.Querier, rep *report.Report) error {
	for _, fam := range families {
		ids, err := mismatches(ctx, q, fam)
		if err != nil {
			return err
		}
		for _, id := range ids {
			rep.Add(fam.category, id)
		}
	}
	return nil
}

func mismatches(ctx context.Context, q storage.Querier, fam family) ([]string, error) {
	product := catalogue.MustKind(fam.product)
	pack := catalogue.MustKind(fam.pack)

	var link string
	for _, f := range pack.Fields {
		if f.Ref == product.Label {
			link = f.Column
			break
		}
	}
	if link == "" {
		return nil, fmt.Errorf("oddity: %s has no reference to %s", pack.Label, product.Label)
	}

	code := catalogue.BNFCodeColumn
	sb := q.Flavor().NewSelectBuilder()
	sb.Select("pack." + pack.Key.Column)
	sb.From(sb.As(product.Table, "product"))
	sb.Join(sb.As(pack.Table, "pack"), "product."+product.Key.Column+" = pack."+link)
	sb.Where(
		sb.IsNotNull("product."+code),
		"product."+code+" <> pack."+code,
	)
	sb.OrderBy("pack." + pack.Key.Column)
	sql, args := sb.Build()

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("compare %s and %s codes: %w", product.Label, pack.Label, err)
	}
	_, vals, err := storage.ScanAll(rows)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = storage.NormalizeKey(v[0])
	}
	return out, nil
}
