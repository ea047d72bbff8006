// Package config holds the JSON pipeline configuration shared by
// cmd/import_dmd and cmd/import_tariff.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Pipeline struct {
	Job       string        `json:"job"`
	DataDir   string        `json:"data_dir"`
	LogsDir   string        `json:"logs_dir"`
	Storage   Storage       `json:"storage"`
	Analytics Storage       `json:"analytics"`
	Runtime   RuntimeConfig `json:"runtime"`
	Notify    Notify        `json:"notify"`
	Metrics   Metrics       `json:"metrics"`
	Tariff    Tariff        `json:"tariff"`
}

// Storage names a backend registered with internal/storage.
type Storage struct {
	// Kind: "postgres" | "sqlite" | "mssql" | "duckdb". Empty or "none"
	// disables an optional store.
	Kind string `json:"kind"`
	DSN  string `json:"dsn"`
}

// Enabled reports whether the store is configured.
func (s Storage) Enabled() bool {
	k := strings.TrimSpace(s.Kind)
	return k != "" && k != "none"
}

type RuntimeConfig struct {
	// BatchSize caps rows per INSERT statement in the loader. Zero lets the
	// storage layer size batches from the backend's parameter limit.
	BatchSize int `json:"batch_size"`
}

type Notify struct {
	SlackWebhookURL string `json:"slack_webhook_url"`
}

type Metrics struct {
	// Backend: "datadog" | "none".
	Backend string `json:"backend"`
	// Tags is a comma-separated Datadog tag list.
	Tags       string `json:"tags"`
	FlushEvery string `json:"flush_every"`
}

type Tariff struct {
	PageURL string `json:"page_url"`
	Timeout string `json:"timeout"`
}

const DefaultTariffPage = "https://www.nhsbsa.nhs.uk/pharmacies-gp-practices-and-appliance-contractors/drug-tariff/drug-tariff-part-viii"

// TimeoutDuration parses Timeout, defaulting to 60s.
func (t Tariff) TimeoutDuration() time.Duration {
	if d, err := time.ParseDuration(t.Timeout); err == nil && d > 0 {
		return d
	}
	return 60 * time.Second
}

// FlushDuration parses FlushEvery, defaulting to 60s.
func (m Metrics) FlushDuration() time.Duration {
	if d, err := time.ParseDuration(m.FlushEvery); err == nil && d > 0 {
		return d
	}
	return 60 * time.Second
}

// LogsRoot is where per-release anomaly logs go.
func (p Pipeline) LogsRoot() string {
	if p.LogsDir != "" {
		return p.LogsDir
	}
	return filepath.Join(p.DataDir, "dmd", "logs")
}

// Load reads a .env file next to the working directory if present, decodes
// path, and expands ${VAR} references in every DSN and URL.
func Load(path string) (Pipeline, error) {
	_ = godotenv.Load()

	f, err := os.Open(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var p Pipeline
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return Pipeline{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	p.Expand()
	return p, nil
}

// Expand applies os.ExpandEnv to the fields that commonly carry secrets or
// deployment-specific paths.
func (p *Pipeline) Expand() {
	p.DataDir = os.ExpandEnv(p.DataDir)
	p.LogsDir = os.ExpandEnv(p.LogsDir)
	p.Storage.DSN = os.ExpandEnv(p.Storage.DSN)
	p.Analytics.DSN = os.ExpandEnv(p.Analytics.DSN)
	p.Notify.SlackWebhookURL = os.ExpandEnv(p.Notify.SlackWebhookURL)
	p.Tariff.PageURL = os.ExpandEnv(p.Tariff.PageURL)
	p.Metrics.Tags = os.ExpandEnv(p.Metrics.Tags)
}
