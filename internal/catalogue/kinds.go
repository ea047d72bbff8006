package catalogue

import (
	"fmt"

	"dmd/internal/storage"
)

// BNFCodeColumn is the classification code column on the four reconcilable
// kinds.
const BNFCodeColumn = "bnf_code"

// Labels of the kinds other packages address directly.
const (
	VTM  = "VTM"
	VMP  = "VMP"
	VMPP = "VMPP"
	AMP  = "AMP"
	AMPP = "AMPP"
	ING  = "ING"
	GTIN = "GTIN"
)

func text(col string) Field    { return Field{Column: col, Name: col, Type: storage.TypeText} }
func bigint(col string) Field  { return Field{Column: col, Name: col, Type: storage.TypeBigint} }
func flag(col string) Field    { return Field{Column: col, Name: col, Type: storage.TypeBool} }
func date(col string) Field    { return Field{Column: col, Name: col, Type: storage.TypeDate} }
func numeric(col string) Field { return Field{Column: col, Name: col, Type: storage.TypeNumeric} }

// ref declares a foreign key stored as col, projected as name.
func ref(col, name, label string) Field {
	return Field{Column: col, Name: name, Type: storage.TypeBigint, Ref: label}
}

func lookup(label string, fields ...Field) *Kind {
	key := bigint("cd")
	return &Kind{
		Label:  label,
		Name:   kindName(label),
		Table:  "dmd_" + kindName(label),
		Class:  ClassLookup,
		Key:    &key,
		Fields: append(fields, text("descr")),
	}
}

func primary(label string, key Field, related []string, fields ...Field) *Kind {
	return &Kind{
		Label:   label,
		Name:    kindName(label),
		Table:   "dmd_" + kindName(label),
		Class:   ClassPrimary,
		Key:     &key,
		Fields:  fields,
		Related: related,
	}
}

// link declares a kind owned by owner. The owner's key column is the first
// field and references the owner.
func link(label, owner string, multiple bool, fields ...Field) *Kind {
	o := byLabel[owner]
	back := ref(o.Key.Column, o.Name, owner)
	return &Kind{
		Label:       label,
		Name:        kindName(label),
		Table:       "dmd_" + kindName(label),
		Class:       ClassLink,
		Fields:      append([]Field{back}, fields...),
		Owner:       owner,
		OwnerColumn: back.Column,
		Multiple:    multiple,
	}
}

var (
	byLabel   = map[string]*Kind{}
	loadOrder []*Kind
)

func register(k *Kind) {
	if _, dup := byLabel[k.Label]; dup {
		panic(fmt.Sprintf("catalogue: duplicate kind %s", k.Label))
	}
	byLabel[k.Label] = k
	loadOrder = append(loadOrder, k)
}

// Registration order is load order: every kind is registered after the
// kinds it references.
func init() {
	code := func() []Field { return []Field{date("cddt"), bigint("cdprev")} }

	for _, k := range []*Kind{
		lookup("COMBINATION_PACK_IND"),
		lookup("COMBINATION_PROD_IND"),
		lookup("BASIS_OF_NAME"),
		lookup("NAMECHANGE_REASON"),
		lookup("VIRTUAL_PRODUCT_PRES_STATUS"),
		lookup("CONTROL_DRUG_CATEGORY"),
		lookup("LICENSING_AUTHORITY"),
		lookup("UNIT_OF_MEASURE", code()...),
		lookup("FORM", code()...),
		lookup("ONT_FORM_ROUTE"),
		lookup("ROUTE", code()...),
		lookup("DT_PAYMENT_CATEGORY"),
		lookup("SUPPLIER", append(code(), flag("invalid"))...),
		lookup("FLAVOUR"),
		lookup("COLOUR"),
		lookup("BASIS_OF_STRNTH"),
		lookup("REIMBURSEMENT_STATUS"),
		lookup("SPEC_CONT"),
		lookup("DND"),
		lookup("VIRTUAL_PRODUCT_NON_AVAIL"),
		lookup("DISCONTINUED_IND"),
		lookup("DF_INDICATOR"),
		lookup("PRICE_BASIS"),
		lookup("LEGAL_CATEGORY"),
		lookup("AVAILABILITY_RESTRICTION"),
		lookup("LICENSING_AUTHORITY_CHANGE_REASON"),
	} {
		register(k)
	}

	register(primary(ING, bigint("isid"), nil,
		date("isiddt"),
		bigint("isidprev"),
		flag("invalid"),
		text("nm"),
	))

	register(primary(VTM, bigint("vtmid"), nil,
		flag("invalid"),
		text("nm"),
		text("abbrevnm"),
		bigint("vtmidprev"),
		date("vtmiddt"),
	))

	register(primary(VMP, bigint("vpid"),
		[]string{"VPI", "ONT", "DFORM", "DROUTE", "CONTROL_INFO"},
		date("vpiddt"),
		bigint("vpidprev"),
		ref("vtmid", "vtm", VTM),
		flag("invalid"),
		text("nm"),
		text("abbrevnm"),
		ref("basiscd", "basis", "BASIS_OF_NAME"),
		date("nmdt"),
		text("nmprev"),
		ref("basis_prevcd", "basis_prev", "BASIS_OF_NAME"),
		ref("nmchangecd", "nmchange", "NAMECHANGE_REASON"),
		ref("combprodcd", "combprod", "COMBINATION_PROD_IND"),
		ref("pres_statcd", "pres_stat", "VIRTUAL_PRODUCT_PRES_STATUS"),
		flag("sug_f"),
		flag("glu_f"),
		flag("pres_f"),
		flag("cfc_f"),
		ref("non_availcd", "non_avail", "VIRTUAL_PRODUCT_NON_AVAIL"),
		date("non_availdt"),
		ref("df_indcd", "df_ind", "DF_INDICATOR"),
		numeric("udfs"),
		ref("udfs_uomcd", "udfs_uom", "UNIT_OF_MEASURE"),
		ref("unit_dose_uomcd", "unit_dose_uom", "UNIT_OF_MEASURE"),
		text(BNFCodeColumn),
	))
	register(link("VPI", VMP, true,
		ref("isid", "ing", ING),
		ref("basis_strntcd", "basis_strnt", "BASIS_OF_STRNTH"),
		ref("bs_subid", "bs_sub", ING),
		numeric("strnt_nmrtr_val"),
		ref("strnt_nmrtr_uomcd", "strnt_nmrtr_uom", "UNIT_OF_MEASURE"),
		numeric("strnt_dnmtr_val"),
		ref("strnt_dnmtr_uomcd", "strnt_dnmtr_uom", "UNIT_OF_MEASURE"),
	))
	register(link("ONT", VMP, true,
		ref("formcd", "form", "ONT_FORM_ROUTE"),
	))
	register(link("DFORM", VMP, false,
		ref("formcd", "form", "FORM"),
	))
	register(link("DROUTE", VMP, true,
		ref("routecd", "route", "ROUTE"),
	))
	register(link("CONTROL_INFO", VMP, false,
		ref("catcd", "cat", "CONTROL_DRUG_CATEGORY"),
		date("catdt"),
		ref("cat_prevcd", "cat_prev", "CONTROL_DRUG_CATEGORY"),
	))

	register(primary(VMPP, bigint("vppid"), []string{"DTINFO"},
		flag("invalid"),
		text("nm"),
		ref("vpid", "vmp", VMP),
		numeric("qtyval"),
		ref("qty_uomcd", "qty_uom", "UNIT_OF_MEASURE"),
		ref("combpackcd", "combpack", "COMBINATION_PACK_IND"),
		text(BNFCodeColumn),
	))
	register(link("DTINFO", VMPP, false,
		ref("pay_catcd", "pay_cat", "DT_PAYMENT_CATEGORY"),
		bigint("price"),
		date("dt"),
		bigint("prevprice"),
	))

	register(primary(AMP, bigint("apid"), []string{"AP_ING", "LIC_ROUTE", "AP_INFO"},
		flag("invalid"),
		ref("vpid", "vmp", VMP),
		text("nm"),
		text("abbrevnm"),
		text("descr"),
		date("nmdt"),
		text("nm_prev"),
		ref("suppcd", "supp", "SUPPLIER"),
		ref("lic_authcd", "lic_auth", "LICENSING_AUTHORITY"),
		ref("lic_auth_prevcd", "lic_auth_prev", "LICENSING_AUTHORITY"),
		ref("lic_authchangecd", "lic_authchange", "LICENSING_AUTHORITY_CHANGE_REASON"),
		date("lic_authchangedt"),
		ref("combprodcd", "combprod", "COMBINATION_PROD_IND"),
		ref("flavourcd", "flavour", "FLAVOUR"),
		flag("ema"),
		flag("parallel_import"),
		ref("avail_restrictcd", "avail_restrict", "AVAILABILITY_RESTRICTION"),
		text(BNFCodeColumn),
	))
	register(link("AP_ING", AMP, true,
		ref("isid", "ing", ING),
		numeric("strnth"),
		ref("uomcd", "uom", "UNIT_OF_MEASURE"),
	))
	register(link("LIC_ROUTE", AMP, true,
		ref("routecd", "route", "ROUTE"),
	))
	register(link("AP_INFO", AMP, false,
		text("sz_weight"),
		ref("colourcd", "colour", "COLOUR"),
		text("prod_order_no"),
	))

	register(primary(AMPP, bigint("appid"),
		[]string{"PACK_INFO", "PRESCRIB_INFO", "PRICE_INFO", "REIMB_INFO", GTIN},
		flag("invalid"),
		text("nm"),
		text("abbrevnm"),
		ref("vppid", "vmpp", VMPP),
		ref("apid", "amp", AMP),
		ref("combpackcd", "combpack", "COMBINATION_PACK_IND"),
		ref("legal_catcd", "legal_cat", "LEGAL_CATEGORY"),
		text("subp"),
		ref("disccd", "disc", "DISCONTINUED_IND"),
		date("discdt"),
		text(BNFCodeColumn),
	))
	register(link("PACK_INFO", AMPP, false,
		ref("reimb_statcd", "reimb_stat", "REIMBURSEMENT_STATUS"),
		date("reimb_statdt"),
		ref("reimb_statprevcd", "reimb_statprev", "REIMBURSEMENT_STATUS"),
		text("pack_order_no"),
	))
	register(link("PRESCRIB_INFO", AMPP, false,
		flag("sched_2"),
		flag("acbs"),
		flag("padm"),
		flag("fp10_mda"),
		flag("sched_1"),
		flag("hosp"),
		flag("nurse_f"),
		flag("enurse_f"),
		flag("dent_f"),
	))
	register(link("PRICE_INFO", AMPP, false,
		bigint("price"),
		date("pricedt"),
		bigint("price_prev"),
		ref("price_basiscd", "price_basis", "PRICE_BASIS"),
	))
	register(link("REIMB_INFO", AMPP, false,
		bigint("px_chrgs"),
		bigint("disp_fees"),
		flag("bb"),
		flag("cal_pack"),
		ref("spec_contcd", "spec_cont", "SPEC_CONT"),
		ref("dndcd", "dnd", "DND"),
		flag("fp34d"),
	))
	register(link(GTIN, AMPP, true,
		text("gtin"),
		date("startdt"),
		date("enddt"),
	))
}

// Lookup returns the kind registered for label.
func Lookup(label string) (*Kind, bool) {
	k, ok := byLabel[label]
	return k, ok
}

// MustKind is Lookup for labels known at compile time.
func MustKind(label string) *Kind {
	k, ok := byLabel[label]
	if !ok {
		panic(fmt.Sprintf("catalogue: unknown kind %s", label))
	}
	return k
}

// All returns every kind in a valid load order.
func All() []*Kind {
	return append([]*Kind(nil), loadOrder...)
}

// Rank is the position of label in load order, or -1.
func Rank(label string) int {
	for i, k := range loadOrder {
		if k.Label == label {
			return i
		}
	}
	return -1
}

// Reconcilable returns the kinds that carry a BNF code, in name-inference
// priority order: products before packs, virtual before actual.
func Reconcilable() []*Kind {
	return []*Kind{byLabel[VMP], byLabel[AMP], byLabel[VMPP], byLabel[AMPP]}
}
