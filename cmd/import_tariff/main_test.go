package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func partVIIIA(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	rows := map[string][]any{
		"A1": {"Drug Tariff Part VIIIA"},
		"A3": {"Medicine", "Pack Size", nil, "VMPP Snomed Code", "Drug Tariff Category", "Basic Price"},
		"A4": {"Paracetamol 500mg tablets", 32, nil, "1000", "Category M", 87},
	}
	for cell, row := range rows {
		r := row
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			t.Fatalf("set %s: %v", cell, err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func TestRun_ImportsTariff(t *testing.T) {
	t.Parallel()

	book := partVIIIA(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, ".xlsx") {
			_, _ = w.Write(book)
			return
		}
		_, _ = w.Write([]byte(`<a href="/files/Part%20VIIIA%20March%202024.xlsx">March</a>`))
	}))
	t.Cleanup(srv.Close)

	tmp := t.TempDir()
	cfg := filepath.Join(tmp, "dmd.json")
	body := fmt.Sprintf(`{
		"data_dir": %q,
		"storage": {"kind": "sqlite", "dsn": %q},
		"tariff": {"page_url": %q, "timeout": "5s"}
	}`, tmp, filepath.Join(tmp, "dmd.sqlite"), srv.URL+"/part-viii/")
	if err := os.WriteFile(cfg, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-config", cfg, "-log-mode", "prod"}, &stdout, &stderr, srv.Client())
	if code != 0 {
		t.Fatalf("run returned %d; stderr=%s", code, stderr.String())
	}
	if got := stdout.String(); got != "imported 2024_3\nmonths=1 rows=1\n" {
		t.Fatalf("unexpected output: %q", got)
	}

	stdout.Reset()
	code = run(context.Background(), []string{"-config", cfg, "-log-mode", "prod", "-v"}, &stdout, &stderr, srv.Client())
	if code != 0 {
		t.Fatalf("second run returned %d; stderr=%s", code, stderr.String())
	}
	if got := stdout.String(); got != "skipped 2024_3\nmonths=0 rows=0\n" {
		t.Fatalf("unexpected second output: %q", got)
	}
}

func TestRun_PageFetchFails(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	t.Cleanup(srv.Close)

	tmp := t.TempDir()
	cfg := filepath.Join(tmp, "dmd.json")
	body := fmt.Sprintf(`{"data_dir": %q, "storage": {"kind": "sqlite", "dsn": %q}}`, tmp, filepath.Join(tmp, "dmd.sqlite"))
	if err := os.WriteFile(cfg, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-config", cfg, "-url", srv.URL, "-log-mode", "prod"}, &stdout, &stderr, srv.Client())
	if code != 1 {
		t.Fatalf("run returned %d, want 1", code)
	}
}

func TestRun_MissingConfig(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-config", filepath.Join(t.TempDir(), "missing.json")}, &stdout, &stderr, http.DefaultClient)
	if code != 2 {
		t.Fatalf("run returned %d, want 2", code)
	}
}
