// Package tariff imports monthly Drug Tariff Part VIIIA prices published on
// the NHSBSA Part VIII page.
package tariff

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"dmd/internal/analytics"
	"dmd/internal/catalogue"
	"dmd/internal/importlog"
	"dmd/internal/metrics"
	"dmd/internal/notify"
	"dmd/internal/storage"
)

// Fetcher retrieves a URL. *Loader satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Logger is satisfied by *log.Logger and *logger.Logger.
type Logger interface {
	Printf(format string, v ...any)
}

// Importer scrapes the Part VIII page and imports every month not yet in
// import_log. Analytics and Notifier are optional.
type Importer struct {
	Store     storage.Store
	Analytics storage.Store
	Notifier  notify.Notifier
	Logger    Logger
	Fetcher   Fetcher
	PageURL   string

	newID func() string
}

// Result lists the months seen on the page.
type Result struct {
	RunID    string
	Imported []Sheet
	// Skipped months were already recorded in import_log.
	Skipped []Sheet
	Rows    int64
	Upload  analytics.Result
}

func (im *Importer) logf(format string, v ...any) {
	if im.Logger != nil {
		im.Logger.Printf(format, v...)
	}
}

func (im *Importer) notify(ctx context.Context, msg string) {
	if im.Notifier == nil {
		return
	}
	if err := im.Notifier.Notify(ctx, msg); err != nil {
		im.logf("notify failed: %v", err)
	}
}

// Run imports new months in page order.
func (im *Importer) Run(ctx context.Context) (Result, error) {
	if im.Store == nil || im.Fetcher == nil {
		return Result{}, fmt.Errorf("tariff: Store and Fetcher are required")
	}
	res := Result{RunID: uuid.NewString()}
	if im.newID != nil {
		res.RunID = im.newID()
	}

	if err := im.Store.EnsureTables(ctx, []storage.TableSpec{catalogue.TariffPriceSpec(), catalogue.ImportLogSpec()}); err != nil {
		return res, err
	}

	page, err := im.Fetcher.Fetch(ctx, im.PageURL)
	if err != nil {
		return res, fmt.Errorf("tariff: fetch page: %w", err)
	}
	sheets, err := FindSheets(im.PageURL, page)
	if err != nil {
		return res, fmt.Errorf("tariff: %w", err)
	}
	done, err := importlog.Dates(ctx, im.Store, importlog.CategoryTariff)
	if err != nil {
		return res, err
	}
	im.logf("tariff sheets=%d already_imported=%d run_id=%s", len(sheets), len(done), res.RunID)

	for _, s := range sheets {
		key := s.Date().Format(catalogue.DateLayout)
		if done[key] {
			res.Skipped = append(res.Skipped, s)
			continue
		}
		n, err := im.importSheet(ctx, s, res.RunID)
		if err != nil {
			return res, err
		}
		done[key] = true
		res.Imported = append(res.Imported, s)
		res.Rows += n
	}

	if len(res.Imported) == 0 {
		im.notify(ctx, "Found no new tariff data to import")
		return res, nil
	}

	if im.Analytics != nil {
		res.Upload, err = analytics.Upload(ctx, im.Store, im.Analytics, []storage.TableSpec{catalogue.TariffPriceSpec()}, nil)
		if err != nil {
			return res, err
		}
	}
	for _, s := range res.Imported {
		im.notify(ctx, "Imported Drug Tariff for "+s.Label())
	}
	return res, nil
}

func (im *Importer) importSheet(ctx context.Context, s Sheet, runID string) (int64, error) {
	start := time.Now()
	body, err := im.Fetcher.Fetch(ctx, s.URL)
	if err != nil {
		return 0, fmt.Errorf("tariff %s: %w", s.Label(), err)
	}
	parsed, err := ParseSheet(bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("tariff %s: %w", s.Label(), err)
	}
	for _, med := range parsed.MissingPrice {
		im.notify(ctx, fmt.Sprintf("Missing price for %s Drug Tariff for %s", med, s.Date().Format(catalogue.DateLayout)))
	}

	var n int64
	err = storage.WithTx(ctx, im.Store, func(tx storage.Tx) (err error) {
		n, err = ImportMonth(ctx, tx, s.Date(), parsed.Prices, runID)
		return err
	})

	status := "ok"
	if err != nil {
		status = "error"
	}
	labels := metrics.Labels{"step": "tariff_month", "status": status}
	metrics.IncCounter(metrics.StepTotal, 1, labels)
	metrics.ObserveHistogram(metrics.StepDurationSeconds, time.Since(start).Seconds(), labels)
	if err != nil {
		return 0, fmt.Errorf("tariff %s: %w", s.Label(), err)
	}
	metrics.IncCounter(metrics.RecordsTotal, float64(n), metrics.Labels{"kind": "TARIFF_PRICE"})
	im.logf("tariff month=%s prices=%d inserted=%d missing_price=%d", s.Label(), len(parsed.Prices), n, len(parsed.MissingPrice))
	return n, nil
}

// ImportMonth get-or-creates one tariff_price row per price for date, then
// records the month in import_log. It returns the number of rows inserted.
func ImportMonth(ctx context.Context, q storage.Querier, date time.Time, prices []Price, runID string) (int64, error) {
	spec := catalogue.TariffPriceSpec()
	date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	sb := q.Flavor().NewSelectBuilder()
	sb.Select("vmpp_id", "tariff_category_id", "price_pence").From(spec.Name)
	sb.Where(sb.Equal("date", date))
	sql, args := sb.Build()
	rs, err := q.Query(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("read tariff_price: %w", err)
	}
	_, existing, err := storage.ScanAll(rs)
	if err != nil {
		return 0, fmt.Errorf("read tariff_price: %w", err)
	}

	seen := make(map[string]bool, len(existing)+len(prices))
	for _, row := range existing {
		seen[priceKey(storage.NormalizeKey(row[0]), storage.NormalizeKey(row[1]), storage.NormalizeKey(row[2]))] = true
	}

	var rows [][]any
	for _, p := range prices {
		k := priceKey(fmt.Sprint(p.VMPPID), fmt.Sprint(p.CategoryID), fmt.Sprint(p.PricePence))
		if seen[k] {
			continue
		}
		seen[k] = true
		rows = append(rows, []any{date, p.VMPPID, p.CategoryID, p.PricePence})
	}

	n, err := storage.InsertRows(ctx, q, spec.Name, spec.ColumnNames(), rows)
	if err != nil {
		return 0, fmt.Errorf("insert tariff_price: %w", err)
	}
	err = importlog.Record(ctx, q, importlog.Entry{
		Category:  importlog.CategoryTariff,
		Filename:  "none",
		CurrentAt: date,
		RunID:     runID,
	})
	return n, err
}

func priceKey(vmpp, cat, price string) string {
	return vmpp + "|" + cat + "|" + price
}
