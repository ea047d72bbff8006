// Command import_tariff imports every Drug Tariff Part VIIIA month that is
// linked from the NHSBSA Part VIII page and not yet in import_log.
//
// Usage:
//
//	import_tariff -config configs/dmd.json
//
// Point at a mirror of the page:
//
//	import_tariff -config configs/dmd.json -url "https://mirror.example.org/part-viii/"
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"

	"dmd/internal/app"
	"dmd/internal/config"
	"dmd/internal/tariff"

	_ "dmd/internal/storage/all"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, http.DefaultClient)
	stop()
	os.Exit(code)
}

// run returns 0 on success, 2 for usage/config errors and 1 for runtime
// errors.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, httpClient *http.Client) int {
	fs := flag.NewFlagSet("import_tariff", flag.ContinueOnError)
	fs.SetOutput(stderr)

	cfgPath := fs.String("config", "configs/dmd.json", "pipeline config JSON path")
	urlFlag := fs.String("url", "", "Part VIII page URL (overrides tariff.page_url)")
	timeout := fs.Duration("timeout", 0, "timeout per fetch (overrides tariff.timeout)")
	verbose := fs.Bool("v", false, "enable verbose logs")
	metricsBackend := fs.String("metrics-backend", "", "metrics backend to use (datadog, none)")
	logMode := fs.String("log-mode", "dev", "log encoding: dev or prod")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	p, err := app.LoadConfig(*cfgPath, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 2
	}

	pageURL := *urlFlag
	if pageURL == "" {
		pageURL = p.Tariff.PageURL
	}
	if pageURL == "" {
		pageURL = config.DefaultTariffPage
	}
	wait := *timeout
	if wait <= 0 {
		wait = p.Tariff.TimeoutDuration()
	}

	env, err := app.Start(ctx, p, app.Options{
		MetricsBackend: *metricsBackend,
		LogMode:        *logMode,
		Verbose:        *verbose,
	})
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	defer func() {
		if err := env.Close(); err != nil {
			fmt.Fprintf(stderr, "shutdown: %v\n", err)
		}
	}()

	im := &tariff.Importer{
		Store:     env.Store,
		Analytics: env.Analytics,
		Notifier:  env.Notifier,
		Logger:    env.Log,
		Fetcher:   tariff.NewLoader(httpClient, wait),
		PageURL:   pageURL,
	}
	res, err := im.Run(ctx)
	if err != nil {
		env.Log.Error("tariff import failed", "page", pageURL, "run_id", res.RunID, "error", err)
		return 1
	}

	for _, s := range res.Imported {
		fmt.Fprintf(stdout, "imported %s\n", s.Label())
	}
	if *verbose {
		for _, s := range res.Skipped {
			fmt.Fprintf(stdout, "skipped %s\n", s.Label())
		}
	}
	fmt.Fprintf(stdout, "months=%d rows=%d\n", len(res.Imported), res.Rows)
	return 0
}
