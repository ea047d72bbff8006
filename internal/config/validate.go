package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding. Path is the JSON path of the offending
// field.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

var (
	relationalKinds = map[string]bool{"postgres": true, "sqlite": true, "mssql": true}
	analyticsKinds  = map[string]bool{"duckdb": true, "sqlite": true, "postgres": true, "mssql": true, "none": true}
)

// ValidatePipeline checks p and returns every issue found. A config with no
// SeverityError issues is runnable.
func ValidatePipeline(p Pipeline) []Issue {
	var out []Issue
	add := func(sev Severity, path, format string, a ...any) {
		out = append(out, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, a...)})
	}

	if strings.TrimSpace(p.DataDir) == "" {
		add(SeverityError, "data_dir", "is required")
	}

	switch {
	case p.Storage.Kind == "":
		add(SeverityError, "storage.kind", "is required")
	case !relationalKinds[p.Storage.Kind]:
		add(SeverityError, "storage.kind", "unsupported kind %q (want postgres, sqlite or mssql)", p.Storage.Kind)
	}
	if p.Storage.Kind != "" && strings.TrimSpace(p.Storage.DSN) == "" {
		add(SeverityError, "storage.dsn", "is required")
	}

	if p.Analytics.Kind != "" {
		if !analyticsKinds[p.Analytics.Kind] {
			add(SeverityError, "analytics.kind", "unsupported kind %q", p.Analytics.Kind)
		} else if p.Analytics.Enabled() && strings.TrimSpace(p.Analytics.DSN) == "" {
			add(SeverityError, "analytics.dsn", "is required when analytics.kind is %s", p.Analytics.Kind)
		}
	}
	if p.Analytics.Enabled() && p.Analytics == p.Storage {
		add(SeverityWarning, "analytics", "points at the relational store; snapshot tables will share its schema")
	}

	if p.Runtime.BatchSize < 0 {
		add(SeverityError, "runtime.batch_size", "must be >= 0, got %d", p.Runtime.BatchSize)
	}

	if u := p.Notify.SlackWebhookURL; u != "" {
		if pu, err := url.Parse(u); err != nil || (pu.Scheme != "https" && pu.Scheme != "http") || pu.Host == "" {
			add(SeverityError, "notify.slack_webhook_url", "must be an absolute http(s) URL")
		}
	}

	switch p.Metrics.Backend {
	case "", "none", "datadog":
	default:
		add(SeverityWarning, "metrics.backend", "unknown backend %q; metrics will be disabled", p.Metrics.Backend)
	}
	if p.Metrics.FlushEvery != "" {
		if _, err := time.ParseDuration(p.Metrics.FlushEvery); err != nil {
			add(SeverityError, "metrics.flush_every", "invalid duration: %v", err)
		}
	}

	if p.Tariff.Timeout != "" {
		if _, err := time.ParseDuration(p.Tariff.Timeout); err != nil {
			add(SeverityError, "tariff.timeout", "invalid duration: %v", err)
		}
	}
	if p.Tariff.PageURL != "" {
		if pu, err := url.Parse(p.Tariff.PageURL); err != nil || pu.Host == "" {
			add(SeverityError, "tariff.page_url", "must be an absolute URL")
		}
	}

	return out
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}
