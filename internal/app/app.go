// Package app turns a pipeline config into the logger, metrics backend,
// stores and notifier that cmd/import_dmd and cmd/import_tariff share.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"dmd/internal/config"
	"dmd/internal/logger"
	"dmd/internal/metrics"
	"dmd/internal/metrics/datadog"
	"dmd/internal/notify"
	"dmd/internal/storage"
)

// Options are the command-line overrides common to both commands.
type Options struct {
	// MetricsBackend overrides config and the METRICS_BACKEND env var.
	MetricsBackend string
	LogMode        string
	Verbose        bool
}

// Env holds everything a run needs. Close releases it in reverse order.
type Env struct {
	Config    config.Pipeline
	Log       *logger.Logger
	Store     storage.Store
	Analytics storage.Store
	Notifier  notify.Notifier

	closers []func() error
}

// LoadConfig reads and validates the config, printing every issue to w.
// The error is non-nil when the file cannot be read or has error-level
// issues.
func LoadConfig(path string, w io.Writer) (config.Pipeline, error) {
	p, err := config.Load(path)
	if err != nil {
		return p, err
	}
	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintf(w, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		return p, fmt.Errorf("configuration is invalid: %s", path)
	}
	return p, nil
}

// Start builds an Env from a validated config. On error everything opened
// so far is closed.
func Start(ctx context.Context, p config.Pipeline, opts Options) (env *Env, err error) {
	log, err := logger.New(opts.LogMode)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	env = &Env{Config: p, Log: log}
	env.closers = append(env.closers, func() error { log.Sync(); return nil })
	defer func() {
		if err != nil {
			_ = env.Close()
			env = nil
		}
	}()

	env.startMetrics(ctx, opts)

	env.Store, err = storage.Open(ctx, storage.Config{Kind: p.Storage.Kind, DSN: p.Storage.DSN})
	if err != nil {
		return env, fmt.Errorf("open storage: %w", err)
	}
	env.closers = append(env.closers, env.Store.Close)

	if p.Analytics.Enabled() {
		env.Analytics, err = storage.Open(ctx, storage.Config{Kind: p.Analytics.Kind, DSN: p.Analytics.DSN})
		if err != nil {
			return env, fmt.Errorf("open analytics: %w", err)
		}
		env.closers = append(env.closers, env.Analytics.Close)
	}

	env.Notifier = notify.New(p.Notify.SlackWebhookURL, log)
	if opts.Verbose {
		log.Info("started", "storage", p.Storage.Kind, "analytics", p.Analytics.Kind, "slack", p.Notify.SlackWebhookURL != "")
	}
	return env, nil
}

// startMetrics picks a backend: flag, then config, then env. A backend that
// fails to start leaves metrics disabled rather than failing the run.
func (e *Env) startMetrics(ctx context.Context, opts Options) {
	name := opts.MetricsBackend
	if name == "" {
		name = e.Config.Metrics.Backend
	}
	if name == "" {
		name = os.Getenv("METRICS_BACKEND")
	}

	switch name {
	case "datadog":
		job := e.Config.Job
		if job == "" {
			job = "dmd"
		}
		tags := datadog.ParseTagsCSV(strings.Join([]string{e.Config.Metrics.Tags, os.Getenv("METRICS_TAGS")}, ","))

		b, err := datadog.NewBackend(ctx, datadog.Options{
			JobName:    job,
			Tags:       tags,
			FlushEvery: e.Config.Metrics.FlushDuration(),
		})
		if err != nil {
			e.Log.Warn("metrics: datadog unavailable; using nop", "error", err)
			return
		}
		e.Log.Info("metrics: enabled", "backend", name, "job_name", job, "tags", tags)
		metrics.SetBackend(b)
		e.closers = append(e.closers, func() error {
			defer metrics.SetBackend(nil)
			return b.Close()
		})

	case "", "none":
		if opts.Verbose {
			e.Log.Debug("metrics: disabled", "backend", name)
		}

	default:
		e.Log.Warn("metrics: unknown backend; metrics disabled", "backend", name)
	}
}

// Close flushes metrics, closes the stores and syncs the logger.
func (e *Env) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}
