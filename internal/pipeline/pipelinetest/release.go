// Package pipelinetest writes a small but complete dm+d release and mapping
// for end-to-end tests.
package pipelinetest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

// ReleaseID is the id of the release written by WriteRelease.
const ReleaseID = "4.1.0_20240101000001"

// Codes used by the fixture mapping.
const (
	ParacetamolCode = "0407010H0AAAMAM"
	DiclofenacCode  = "1003020P0AAAAAA"
	AcmeAMPCode     = "0407010H0BBAMAM"
	AcmeAMPPCode    = "0407010H0BBABAB"
)

var fragments = map[string]string{
	"lookup": `<?xml version="1.0" encoding="UTF-8"?>
<LOOKUP>
  <!-- Generated by NHSBSA PPD -->
  <UNIT_OF_MEASURE>
    <INFO><CD>428673006</CD><CDDT>2008-05-01</CDDT><DESC>tablet</DESC></INFO>
    <INFO><CD>258684004</CD><DESC>mg</DESC></INFO>
  </UNIT_OF_MEASURE>
  <SUPPLIER>
    <INFO><CD>3144701000001104</CD><DESC>Acme Ltd</DESC></INFO>
    <INFO><CD>2070801000001102</CD><INVALID>1</INVALID><DESC>Gone Ltd</DESC></INFO>
  </SUPPLIER>
</LOOKUP>`,
	"ingredient": `<?xml version="1.0" encoding="UTF-8"?>
<INGREDIENT_SUBSTANCES>
  <!-- Generated by NHSBSA PPD -->
  <ING><ISID>387517004</ISID><NM>Paracetamol</NM></ING>
</INGREDIENT_SUBSTANCES>`,
	"vtm": `<?xml version="1.0" encoding="UTF-8"?>
<VIRTUAL_THERAPEUTIC_MOIETIES>
  <!-- Generated by NHSBSA PPD -->
  <VTM><VTMID>90332006</VTMID><NM>Paracetamol</NM></VTM>
</VIRTUAL_THERAPEUTIC_MOIETIES>`,
	"vmp": `<?xml version="1.0" encoding="UTF-8"?>
<VIRTUAL_MED_PRODUCTS>
  <!-- Generated by NHSBSA PPD -->
  <VMPS>
    <VMP><VPID>42109611000001109</VPID><VTMID>90332006</VTMID><NM>Paracetamol 500mg tablets</NM><SUG_F>0001</SUG_F><UDFS>1.000</UDFS><UDFS_UOMCD>428673006</UDFS_UOMCD></VMP>
    <VMP><VPID>318412000</VPID><NM>Diclofenac 1.16% gel</NM></VMP>
    <VMP><VPID>777000</VPID><NM>Orphan 5mg capsules</NM><INVALID>1</INVALID></VMP>
  </VMPS>
  <VIRTUAL_PRODUCT_INGREDIENT>
    <VPI><VPID>42109611000001109</VPID><ISID>387517004</ISID><STRNT_NMRTR_VAL>500.000</STRNT_NMRTR_VAL><STRNT_NMRTR_UOMCD>258684004</STRNT_NMRTR_UOMCD></VPI>
  </VIRTUAL_PRODUCT_INGREDIENT>
  <ONT_DRUG_FORM/>
  <DRUG_FORM/>
  <DRUG_ROUTE/>
  <CONTROL_DRUG_INFO/>
</VIRTUAL_MED_PRODUCTS>`,
	"vmpp": `<?xml version="1.0" encoding="UTF-8"?>
<VIRTUAL_MED_PRODUCT_PACK>
  <!-- Generated by NHSBSA PPD -->
  <VMPPS>
    <VMPP><VPPID>1000</VPPID><NM>Paracetamol 500mg tablets 32 tablet</NM><VPID>42109611000001109</VPID><QTYVAL>32.00</QTYVAL><QTY_UOMCD>428673006</QTY_UOMCD></VMPP>
    <VMPP><VPPID>2000</VPPID><NM>Diclofenac 1.16% gel 100 gram</NM><VPID>318412000</VPID><QTYVAL>100.00</QTYVAL></VMPP>
  </VMPPS>
  <DRUG_TARIFF_INFO>
    <DTINFO><VPPID>1000</VPPID><PRICE>87</PRICE><DT>2024-01-01</DT></DTINFO>
  </DRUG_TARIFF_INFO>
  <COMB_CONTENT>
    <CCONTENT><PRNTVPPID>1000</PRNTVPPID><CHLDVPPID>2000</CHLDVPPID></CCONTENT>
  </COMB_CONTENT>
</VIRTUAL_MED_PRODUCT_PACK>`,
	"amp": `<?xml version="1.0" encoding="UTF-8"?>
<ACTUAL_MEDICINAL_PRODUCTS>
  <!-- Generated by NHSBSA PPD -->
  <AMPS>
    <AMP><APID>5000</APID><VPID>42109611000001109</VPID><NM>Paracetamol 500mg tablets</NM><DESC>Paracetamol 500mg tablets (Acme Ltd)</DESC><SUPPCD>3144701000001104</SUPPCD><EMA>0001</EMA></AMP>
  </AMPS>
  <AP_INGREDIENT/>
  <LICENSED_ROUTE/>
  <AP_INFORMATION>
    <AP_INFO><APID>5000</APID><PROD_ORDER_NO>PA500</PROD_ORDER_NO></AP_INFO>
  </AP_INFORMATION>
</ACTUAL_MEDICINAL_PRODUCTS>`,
	"ampp": `<?xml version="1.0" encoding="UTF-8"?>
<ACTUAL_MEDICINAL_PROD_PACKS>
  <!-- Generated by NHSBSA PPD -->
  <AMPPS>
    <AMPP><APPID>6000</APPID><NM>Paracetamol 500mg tablets (Acme Ltd) 32 tablet</NM><VPPID>1000</VPPID><APID>5000</APID></AMPP>
  </AMPPS>
  <APPLIANCE_PACK_INFO/>
  <DRUG_PRODUCT_PRESCRIB_INFO>
    <PRESCRIB_INFO><APPID>6000</APPID><HOSP>0001</HOSP></PRESCRIB_INFO>
  </DRUG_PRODUCT_PRESCRIB_INFO>
  <MEDICINAL_PRODUCT_PRICE>
    <PRICE_INFO><APPID>6000</APPID><PRICE>95</PRICE></PRICE_INFO>
  </MEDICINAL_PRODUCT_PRICE>
  <REIMBURSEMENT_INFO/>
  <COMB_CONTENT/>
</ACTUAL_MEDICINAL_PROD_PACKS>`,
	"gtin": `<?xml version="1.0" encoding="UTF-8"?>
<GTIN_DETAILS>
  <!-- Generated by NHSBSA PPD -->
  <AMPPS>
    <AMPP>
      <AMPPID>6000</AMPPID>
      <GTINDATA><GTIN>5000123114115</GTIN><STARTDT>2010-02-01</STARTDT></GTINDATA>
    </AMPP>
  </AMPPS>
</GTIN_DETAILS>`,
}

// MappingRows is the fixture mapping, header first. VMP 999 does not exist
// and VMP 318412000 is deliberately left for propagation.
var MappingRows = [][]any{
	{"Presentation", "VMP / VMPP/ AMP / AMPP", "BNF Code", "SNOMED Description", "SNOMED Code"},
	{"Paracetamol 500mg tablets", "VMP", "'" + ParacetamolCode, "Paracetamol 500mg tablets", "42109611000001109"},
	{"Paracetamol 500mg tablets", "VMPP", ParacetamolCode, "Paracetamol 500mg tablets 32 tablet", "1000"},
	{"Diclofenac 1.16% gel", "VMPP", DiclofenacCode, "Diclofenac 1.16% gel 100 gram", "2000"},
	{"Paracetamol (Acme)", "AMP", AcmeAMPCode, "Paracetamol 500mg tablets", "5000"},
	{"Paracetamol (Acme) pack", "AMPP", AcmeAMPPCode, "Paracetamol 500mg tablets (Acme Ltd) 32 tablet", "6000"},
	{"Withdrawn", "VMP", "0000000000", "Withdrawn", "999"},
	{"", "", "", "", ""},
}

// WriteRelease lays out dataDir/dmd/<stamp>/nhsbsa_dmd_<ReleaseID>/ and
// dataDir/bnf_snomed_mapping/<stamp>/mapping.xlsx.
func WriteRelease(t testing.TB, dataDir string) string {
	t.Helper()

	dir := filepath.Join(dataDir, "dmd", "20240101", "nhsbsa_dmd_"+ReleaseID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for frag, body := range fragments {
		path := filepath.Join(dir, "f_"+frag+"2_3010124.xml")
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}

	mdir := filepath.Join(dataDir, "bnf_snomed_mapping", "20240105")
	if err := os.MkdirAll(mdir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	for i, row := range MappingRows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		r := row
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			t.Fatalf("set row %d: %v", i+1, err)
		}
	}
	if err := f.SaveAs(filepath.Join(mdir, "mapping.xlsx")); err != nil {
		t.Fatalf("save mapping: %v", err)
	}
	return dir
}
