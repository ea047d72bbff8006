package reconcile

import (
	"context"
	"fmt"

	"dmd/internal/catalogue"
	"dmd/internal/report"
	"dmd/internal/storage"
)

// ClearCodes sets bnf_code to NULL on every reconcilable kind, so that codes
// from an earlier mapping never survive into this one.
func ClearCodes(ctx context.Context, q storage.Querier) error {
	for _, k := range catalogue.Reconcilable() {
		ub := q.Flavor().NewUpdateBuilder()
		ub.Update(k.Table)
		ub.Set(ub.Assign(catalogue.BNFCodeColumn, nil))
		sql, args := ub.Build()
		if _, err := q.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("clear %s codes: %w", k.Label, err)
		}
	}
	return nil
}

// Apply clears every code and then sets each entry's code on the object it
// names, in order, so the last entry for an object wins. Entries naming an
// object that does not exist are logged as mapping-only.
//
// It returns the number of entries applied.
func Apply(ctx context.Context, q storage.Querier, entries []Entry, rep *report.Report) (int, error) {
	if err := ClearCodes(ctx, q); err != nil {
		return 0, err
	}

	applied := 0
	for _, e := range entries {
		k, ok := catalogue.Lookup(e.Kind)
		if !ok || !k.Reconcilable() {
			return applied, fmt.Errorf("%w %q on row %d", ErrUnknownKind, e.Kind, e.Line)
		}

		id, err := catalogue.Coerce(k.Key.Type, e.ID)
		if err != nil {
			rep.Add(report.MappingOnly, e.Kind, e.ID)
			continue
		}

		ub := q.Flavor().NewUpdateBuilder()
		ub.Update(k.Table)
		ub.Set(ub.Assign(catalogue.BNFCodeColumn, e.BNFCode))
		ub.Where(ub.Equal(k.Key.Column, id))
		sql, args := ub.Build()

		n, err := q.Exec(ctx, sql, args...)
		if err != nil {
			return applied, fmt.Errorf("set %s %s code: %w", e.Kind, e.ID, err)
		}
		if n == 0 {
			rep.Add(report.MappingOnly, e.Kind, e.ID)
			continue
		}
		applied++
	}
	return applied, nil
}
