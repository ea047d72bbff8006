package tariff

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dmd/internal/catalogue"
	"dmd/internal/storage"
	"dmd/internal/storage/storagetest"
)

type recordingNotifier struct {
	msgs []string
}

func (n *recordingNotifier) Notify(_ context.Context, msg string) error {
	n.msgs = append(n.msgs, msg)
	return nil
}

// tariffSite serves a Part VIII page linking to the given workbooks, keyed
// by file name.
func tariffSite(t *testing.T, books map[string][]byte, order ...string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/part-viii/", func(w http.ResponseWriter, r *http.Request) {
		var b strings.Builder
		b.WriteString("<html><body><ul>")
		for _, name := range order {
			fmt.Fprintf(&b, `<li><a href="/files/%s">%s</a></li>`, strings.ReplaceAll(name, " ", "%20"), name)
		}
		b.WriteString("</ul></body></html>")
		_, _ = w.Write([]byte(b.String()))
	})
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		body, ok := books[strings.TrimPrefix(r.URL.Path, "/files/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(body)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTariffImporter(srv *httptest.Server, store, sink storage.Store) (*Importer, *recordingNotifier) {
	n := &recordingNotifier{}
	return &Importer{
		Store:     store,
		Analytics: sink,
		Notifier:  n,
		Fetcher:   NewLoader(srv.Client(), 5*time.Second),
		PageURL:   srv.URL + "/part-viii/",
		newID:     func() string { return "run-1" },
	}, n
}

func TestImporter_Run(t *testing.T) {
	ctx := context.Background()
	sep := "Part VIIIA September 2017.xlsx"
	oct := "Part VIIIA Oct 17.xlsx"
	srv := tariffSite(t, map[string][]byte{
		sep: workbook(t,
			[]any{"Paracetamol 500mg tablets", 32, nil, "1000", "Category M", 87},
			[]any{"Mystery cream", 50, nil, "3000", "Category A", nil},
		),
		oct: workbook(t,
			[]any{"Paracetamol 500mg tablets", 32, nil, "1000", "Category M", 91},
			[]any{"Paracetamol 500mg tablets", 32, nil, "1000", "Category M", 91},
			[]any{"Diclofenac 1.16% gel", 100, nil, "2000", "Category C", 295},
		),
	}, sep, oct)

	store := storagetest.Open(t)
	sink := storagetest.Open(t)
	im, notifier := newTariffImporter(srv, store, sink)

	res, err := im.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Imported) != 2 || len(res.Skipped) != 0 || res.Rows != 3 {
		t.Fatalf("result = %+v", res)
	}

	prices := storagetest.Strings(t, store, "SELECT date, vmpp_id, tariff_category_id, price_pence FROM tariff_price ORDER BY date, vmpp_id")
	want := [][]string{
		{"2017-09-01", "1000", "11", "87"},
		{"2017-10-01", "1000", "11", "91"},
		{"2017-10-01", "2000", "3", "295"},
	}
	if fmt.Sprint(prices) != fmt.Sprint(want) {
		t.Fatalf("tariff_price = %v, want %v", prices, want)
	}

	marks := storagetest.Strings(t, store, "SELECT category, filename, current_at, run_id FROM import_log ORDER BY current_at")
	wantMarks := [][]string{
		{"tariff", "none", "2017-09-01", "run-1"},
		{"tariff", "none", "2017-10-01", "run-1"},
	}
	if fmt.Sprint(marks) != fmt.Sprint(wantMarks) {
		t.Fatalf("import_log = %v, want %v", marks, wantMarks)
	}

	if res.Upload.Rows["tariff_price"] != 3 {
		t.Fatalf("upload = %+v", res.Upload)
	}
	if got := storagetest.Strings(t, sink, "SELECT COUNT(*) FROM tariff_price"); got[0][0] != "3" {
		t.Fatalf("sink rows = %v", got)
	}

	wantMsgs := []string{
		"Missing price for Mystery cream Drug Tariff for 2017-09-01",
		"Imported Drug Tariff for 2017_9",
		"Imported Drug Tariff for 2017_10",
	}
	if fmt.Sprint(notifier.msgs) != fmt.Sprint(wantMsgs) {
		t.Fatalf("notifications = %q, want %q", notifier.msgs, wantMsgs)
	}

	notifier.msgs = nil
	again, err := im.Run(ctx)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if len(again.Imported) != 0 || len(again.Skipped) != 2 {
		t.Fatalf("second result = %+v", again)
	}
	if len(notifier.msgs) != 1 || notifier.msgs[0] != "Found no new tariff data to import" {
		t.Fatalf("notifications = %q", notifier.msgs)
	}
}

func TestImporter_BadSheetKeepsEarlierMonths(t *testing.T) {
	ctx := context.Background()
	sep := "Part VIIIA September 2017.xlsx"
	oct := "Part VIIIA October 2017.xlsx"
	srv := tariffSite(t, map[string][]byte{
		sep: workbook(t, []any{"Paracetamol 500mg tablets", 32, nil, "1000", "Category M", 87}),
		oct: workbook(t, []any{"Oddity", 1, nil, "5000", "Category Z", 10}),
	}, sep, oct)

	store := storagetest.Open(t)
	im, notifier := newTariffImporter(srv, store, nil)

	if _, err := im.Run(ctx); err == nil || !strings.Contains(err.Error(), "unknown category") {
		t.Fatalf("err = %v, want unknown category", err)
	}
	if got := storagetest.Strings(t, store, "SELECT COUNT(*) FROM import_log"); got[0][0] != "1" {
		t.Fatalf("import_log rows = %v, want 1", got)
	}
	if got := storagetest.Strings(t, store, "SELECT COUNT(*) FROM tariff_price WHERE vmpp_id = 5000"); got[0][0] != "0" {
		t.Fatalf("failed month left rows: %v", got)
	}
	if len(notifier.msgs) != 0 {
		t.Fatalf("failed run notified: %q", notifier.msgs)
	}
}

func TestImportMonth_GetOrCreate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := storagetest.Open(t, catalogue.TariffPriceSpec(), catalogue.ImportLogSpec())
	date := time.Date(2020, 11, 1, 0, 0, 0, 0, time.UTC)

	prices := []Price{{VMPPID: 1, CategoryID: 1, PricePence: 10}, {VMPPID: 2, CategoryID: 3, PricePence: 20}}
	n, err := ImportMonth(ctx, store, date, prices, "")
	if err != nil || n != 2 {
		t.Fatalf("first ImportMonth = %d, %v", n, err)
	}
	n, err = ImportMonth(ctx, store, date, append(prices, Price{VMPPID: 2, CategoryID: 3, PricePence: 25}), "")
	if err != nil || n != 1 {
		t.Fatalf("second ImportMonth = %d, %v; want 1 new row", n, err)
	}
	if got := storagetest.Strings(t, store, "SELECT COUNT(*) FROM tariff_price"); got[0][0] != "3" {
		t.Fatalf("tariff_price rows = %v", got)
	}
	if got := storagetest.Strings(t, store, "SELECT run_id FROM import_log"); len(got) != 2 || got[0][0] != "<nil>" {
		t.Fatalf("import_log = %v", got)
	}
}

func TestImporter_RequiresStoreAndFetcher(t *testing.T) {
	t.Parallel()

	if _, err := (&Importer{}).Run(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}
