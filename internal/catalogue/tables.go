package catalogue

import "dmd/internal/storage"

// Tables outside the dm+d release itself.
const (
	PresentationTable = "presentation"
	ImportLogTable    = "import_log"
	TariffPriceTable  = "tariff_price"
)

// PresentationSpec holds downstream presentations keyed by BNF code. Only
// dmd_name is written by the import; bnf_code and name belong to whoever
// maintains the presentation list.
func PresentationSpec() storage.TableSpec {
	return storage.TableSpec{
		Name:       PresentationTable,
		PrimaryKey: &storage.PrimaryKeySpec{Name: "bnf_code", Type: storage.TypeText},
		Columns: []storage.ColumnSpec{
			{Name: "name", Type: storage.TypeText},
			{Name: "dmd_name", Type: storage.TypeText},
		},
	}
}

// ImportLogSpec is the run marker table shared by every importer.
func ImportLogSpec() storage.TableSpec {
	nullable := false
	return storage.TableSpec{
		Name: ImportLogTable,
		Columns: []storage.ColumnSpec{
			{Name: "category", Type: storage.TypeText, Nullable: &nullable},
			{Name: "filename", Type: storage.TypeText, Nullable: &nullable},
			{Name: "current_at", Type: storage.TypeDate, Nullable: &nullable},
			{Name: "imported_at", Type: storage.TypeTimestamp, Nullable: &nullable},
			{Name: "run_id", Type: storage.TypeText},
		},
	}
}

// TariffPriceSpec holds Drug Tariff Part VIIIA prices, one row per
// (date, vmpp_id).
func TariffPriceSpec() storage.TableSpec {
	nullable := false
	return storage.TableSpec{
		Name: TariffPriceTable,
		Columns: []storage.ColumnSpec{
			{Name: "date", Type: storage.TypeDate, Nullable: &nullable},
			{Name: "vmpp_id", Type: storage.TypeBigint, Nullable: &nullable},
			{Name: "tariff_category_id", Type: storage.TypeBigint, Nullable: &nullable},
			{Name: "price_pence", Type: storage.TypeBigint, Nullable: &nullable},
		},
	}
}

// TableSpecs returns DDL metadata for every dm+d kind in load order,
// followed by the presentation and import log tables.
func TableSpecs() []storage.TableSpec {
	out := make([]storage.TableSpec, 0, len(loadOrder)+2)
	for _, k := range loadOrder {
		out = append(out, k.TableSpec())
	}
	return append(out, PresentationSpec(), ImportLogSpec())
}
