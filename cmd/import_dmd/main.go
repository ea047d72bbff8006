// Command import_dmd imports the latest dm+d release under data_dir.
//
// Usage:
//
//	import_dmd -config configs/dmd.json
//
// Validate a config without touching any store:
//
//	import_dmd -config configs/dmd.json -validate
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"dmd/internal/app"
	"dmd/internal/pipeline"

	// register all backends with the storage factory.
	// config specifies which to use but we need to build in support for all of them.
	_ "dmd/internal/storage/all"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run returns a Unix-style exit code:
//   - 0 for success (including an already-imported release)
//   - 2 for usage/config errors
//   - 1 for operational/runtime errors
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("import_dmd", flag.ContinueOnError)
	fs.SetOutput(stderr)

	cfgPath := fs.String("config", "configs/dmd.json", "pipeline config JSON path")
	validate := fs.Bool("validate", false, "validate the configuration and exit")
	verbose := fs.Bool("v", false, "enable verbose logs")
	metricsBackend := fs.String("metrics-backend", "", "metrics backend to use (datadog, none); overrides config and METRICS_BACKEND")
	logMode := fs.String("log-mode", "dev", "log encoding: dev or prod")
	force := fs.Bool("force", false, "re-import a release that import_log already records")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	p, err := app.LoadConfig(*cfgPath, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 2
	}
	if *validate {
		fmt.Fprintf(stdout, "Configuration is valid: %s\n", *cfgPath)
		return 0
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

	im := &pipeline.Importer{
		Store:     env.Store,
		Analytics: env.Analytics,
		Notifier:  env.Notifier,
		Logger:    env.Log,
		Options: pipeline.Options{
			DataDir:   p.DataDir,
			LogsDir:   p.LogsRoot(),
			BatchSize: p.Runtime.BatchSize,
			Force:     *force,
		},
	}

	start := time.Now()
	res, err := im.Run(ctx)
	if err != nil {
		env.Log.Error("import failed", "release", res.Release.ID, "run_id", res.RunID, "error", err)
		return 1
	}
	if res.Skipped {
		fmt.Fprintf(stdout, "release %s already imported\n", res.Release.ID)
		return 0
	}

	fmt.Fprintf(stdout, "imported release %s in %s\n", res.Release.ID, time.Since(start).Truncate(time.Millisecond))
	for _, row := range res.Report.Summary() {
		fmt.Fprintf(stdout, "%s,%s\n", row[0], row[1])
	}
	if *verbose {
		fmt.Fprintf(stdout, "logs: %s\n", res.LogDir)
	}
	return 0
}
