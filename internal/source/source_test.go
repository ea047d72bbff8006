package source

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const vmpDoc = `<?xml version="1.0" encoding="UTF-8"?>
<VIRTUAL_MED_PRODUCTS>
  <!-- Generated by NHSBSA PPD -->
  <VMPS>
    <VMP><VPID>318412000</VPID><NM>Diclofenac 1.16% gel</NM><SUG_F>0001</SUG_F></VMP>
  </VMPS>
  <VIRTUAL_PRODUCT_INGREDIENT/>
  <ONT_DRUG_FORM>
    <ONT><VPID>318412000</VPID><FORMCD>33</FORMCD></ONT>
  </ONT_DRUG_FORM>
</VIRTUAL_MED_PRODUCTS>`

func TestParse_RequiresLeadingComment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
	}{
		{"element_first", `<VTM_SUBSTANCES><VTM><VTMID>1</VTMID></VTM></VTM_SUBSTANCES>`},
		{"text_first", `<VTM_SUBSTANCES>oops<!-- c --></VTM_SUBSTANCES>`},
		{"empty_root", `<VTM_SUBSTANCES/>`},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Parse(strings.NewReader(tc.doc)); !errors.Is(err, ErrMissingComment) {
				t.Fatalf("err = %v, want ErrMissingComment", err)
			}
		})
	}
}

func TestParse_Tree(t *testing.T) {
	t.Parallel()

	root, err := Parse(strings.NewReader(vmpDoc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if root.Tag != "VIRTUAL_MED_PRODUCTS" || len(root.Children) != 3 {
		t.Fatalf("root = %s with %d children", root.Tag, len(root.Children))
	}
	vmp := root.Children[0].Children[0]
	if got := vmp.Child("NM").Text; got != "Diclofenac 1.16% gel" {
		t.Fatalf("NM = %q", got)
	}
	if vmp.Child("MISSING") != nil {
		t.Fatalf("Child should return nil for absent tags")
	}
}

func TestClassify_NestedSkipsEmptyAndCombinationGroups(t *testing.T) {
	t.Parallel()

	root, err := Parse(strings.NewReader(vmpDoc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	groups, err := Classify("vmp", root)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(groups) != 2 || groups[0].Kind.Label != "VMP" || groups[1].Kind.Label != "ONT" {
		t.Fatalf("groups = %+v", groups)
	}

	doc := `<ACTUAL_MEDICINAL_PROD_PACKS><!-- c -->
	  <AMPPS><AMPP><APPID>1</APPID></AMPP></AMPPS>
	  <COMB_CONTENT><CCONTENT><PRNTAPPID>1</PRNTAPPID></CCONTENT></COMB_CONTENT>
	  <APPLIANCE_PACK_INFO></APPLIANCE_PACK_INFO>
	</ACTUAL_MEDICINAL_PROD_PACKS>`
	root, err = Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	groups, err = Classify("ampp", root)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(groups) != 1 || groups[0].Kind.Label != "AMPP" {
		t.Fatalf("groups = %+v", groups)
	}
}

func TestClassify_LookupUsesGroupLabel(t *testing.T) {
	t.Parallel()

	doc := `<LOOKUP><!-- c -->
	  <COMBINATION_PACK_IND><INFO><CD>1</CD><DESC>Combination pack</DESC></INFO></COMBINATION_PACK_IND>
	  <UNIT_OF_MEASURE><INFO><CD>258684004</CD><DESC>mg</DESC></INFO></UNIT_OF_MEASURE>
	</LOOKUP>`
	root, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	groups, err := Classify("lookup", root)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(groups) != 2 || groups[1].Kind.Label != "UNIT_OF_MEASURE" || len(groups[1].Records) != 1 {
		t.Fatalf("groups = %+v", groups)
	}

	bad, _ := Parse(strings.NewReader(`<LOOKUP><!-- c --><VMPS><VMP/></VMPS></LOOKUP>`))
	if _, err := Classify("lookup", bad); !errors.Is(err, ErrUnexpectedShape) {
		t.Fatalf("err = %v, want ErrUnexpectedShape", err)
	}
}

func TestReshapeGTIN(t *testing.T) {
	t.Parallel()

	doc := `<GTIN_DETAILS><!-- c -->
	  <AMPPS>
	    <AMPP>
	      <AMPPID>1328111000001105</AMPPID>
	      <GTINDATA><GTIN>5000123114115</GTIN><STARTDT>2010-02-01</STARTDT></GTINDATA>
	      <GTINDATA><GTIN>5000123114116</GTIN><STARTDT>2012-02-01</STARTDT><ENDDT>2013-01-01</ENDDT></GTINDATA>
	    </AMPP>
	  </AMPPS>
	</GTIN_DETAILS>`
	root, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	groups, err := Classify("gtin", root)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(groups) != 1 || groups[0].Kind.Label != "GTIN" || len(groups[0].Records) != 2 {
		t.Fatalf("groups = %+v", groups)
	}
	rec := groups[0].Records[1]
	var tags []string
	for _, c := range rec.Children {
		tags = append(tags, c.Tag)
	}
	if got := strings.Join(tags, ","); got != "APPID,GTIN,STARTDT,ENDDT" {
		t.Fatalf("tags = %s", got)
	}
	if rec.Child("APPID").Text != "1328111000001105" {
		t.Fatalf("APPID = %q", rec.Child("APPID").Text)
	}

	bad, _ := Parse(strings.NewReader(`<G><!-- c --><AMPPS><AMPP><GTINDATA/><AMPPID>1</AMPPID></AMPP></AMPPS></G>`))
	if _, err := Classify("gtin", bad); !errors.Is(err, ErrUnexpectedShape) {
		t.Fatalf("err = %v, want ErrUnexpectedShape", err)
	}
}

func TestParseRelease(t *testing.T) {
	t.Parallel()

	r, err := ParseRelease("/data/dmd/2019_07_29/nhsbsa_dmd_7.4.0_20190729000001/")
	if err != nil {
		t.Fatalf("ParseRelease: %v", err)
	}
	if r.ID != "7.4.0_20190729000001" {
		t.Fatalf("ID = %q", r.ID)
	}
	if !r.Date.Equal(time.Date(2019, 7, 29, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("Date = %v", r.Date)
	}

	for _, dir := range []string{"dmd_7.4.0_20190729", "nhsbsa_dmd_7.4.0", "nhsbsa_dmd_7.4.0_2019"} {
		if _, err := ParseRelease(dir); !errors.Is(err, ErrBadRelease) {
			t.Fatalf("ParseRelease(%q) err = %v", dir, err)
		}
	}
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestFindReleaseAndMapping(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, d := range []string{
		"dmd/2019_07_22/nhsbsa_dmd_7.3.0_20190722000001",
		"dmd/2019_07_29/nhsbsa_dmd_7.4.0_20190729000001",
	} {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	touch(t, filepath.Join(dir, "dmd/2019_08_05/nhsbsa_dmd_7.5.0_20190805000001.zip"))
	touch(t, filepath.Join(dir, "bnf_snomed_mapping/2019_06/mapping.xlsx"))
	touch(t, filepath.Join(dir, "bnf_snomed_mapping/2019_07/mapping.xlsx"))

	r, err := FindRelease(dir)
	if err != nil {
		t.Fatalf("FindRelease: %v", err)
	}
	if r.ID != "7.4.0_20190729000001" {
		t.Fatalf("release = %q, want the latest directory", r.ID)
	}

	m, err := FindMapping(dir)
	if err != nil {
		t.Fatalf("FindMapping: %v", err)
	}
	if !strings.HasSuffix(m, filepath.Join("2019_07", "mapping.xlsx")) {
		t.Fatalf("mapping = %s", m)
	}

	empty := t.TempDir()
	if _, err := FindRelease(empty); !errors.Is(err, ErrNoRelease) {
		t.Fatalf("err = %v", err)
	}
	if _, err := FindMapping(empty); !errors.Is(err, ErrNoMapping) {
		t.Fatalf("err = %v", err)
	}
}

func TestLocate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	touch(t, filepath.Join(dir, "f_vmp2_3290719.xml"))
	touch(t, filepath.Join(dir, "f_vmpp2_3290719.xml"))
	touch(t, filepath.Join(dir, "f_amp2_3290719.xml"))
	touch(t, filepath.Join(dir, "f_amp2_3220719.xml"))

	p, err := Locate(dir, "vmp")
	if err != nil || filepath.Base(p) != "f_vmp2_3290719.xml" {
		t.Fatalf("Locate(vmp) = %s, %v", p, err)
	}
	if _, err := Locate(dir, "amp"); !errors.Is(err, ErrAmbiguousSource) {
		t.Fatalf("Locate(amp) err = %v", err)
	}
	if _, err := Locate(dir, "gtin"); !errors.Is(err, ErrNoSourceFile) {
		t.Fatalf("Locate(gtin) err = %v", err)
	}
	if _, err := LocateAll(dir); err == nil {
		t.Fatalf("LocateAll should fail on missing fragments")
	}
}
