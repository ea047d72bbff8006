// Package notify delivers short operator messages at the end of an import.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"dmd/internal/metrics"
)

// Notifier sends one human-readable message.
type Notifier interface {
	Notify(ctx context.Context, msg string) error
}

// Logger is the print-style seam the Log notifier writes to.
type Logger interface {
	Printf(format string, v ...any)
}

// Log writes messages to a logger. It is used when no webhook is configured.
type Log struct {
	L Logger
}

func (n Log) Notify(_ context.Context, msg string) error {
	if n.L != nil {
		n.L.Printf("notify: %s", msg)
	}
	return nil
}

// Slack posts {"text": msg} to an incoming-webhook URL.
type Slack struct {
	URL    string
	Client *http.Client
}

// NewSlack returns a Slack notifier with a bounded HTTP client.
func NewSlack(url string) *Slack {
	return &Slack{URL: url, Client: &http.Client{Timeout: 20 * time.Second}}
}

func (s *Slack) Notify(ctx context.Context, msg string) error {
	payload, err := json.Marshal(map[string]string{"text": msg})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("slack: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	start := time.Now()
	resp, err := client.Do(req)
	status := "error"
	if resp != nil {
		status = strconv.Itoa(resp.StatusCode)
	}
	metrics.IncCounter(metrics.HTTPRequestsTotal, 1, metrics.Labels{"status": status})
	metrics.ObserveHistogram(metrics.HTTPDurationSeconds, time.Since(start).Seconds(), metrics.Labels{"status": status})
	if err != nil {
		return fmt.Errorf("slack: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Multi fans a message out to every notifier and returns the first error.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, msg string) error {
	var first error
	for _, n := range m {
		if err := n.Notify(ctx, msg); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// New picks Slack when a webhook URL is set, and always logs.
func New(webhookURL string, l Logger) Notifier {
	logN := Log{L: l}
	if webhookURL == "" {
		return logN
	}
	return Multi{logN, NewSlack(webhookURL)}
}
