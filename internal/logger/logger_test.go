package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_Modes(t *testing.T) {
	t.Parallel()

	for _, mode := range []string{"dev", "prod", "PRODUCTION", ""} {
		l, err := New(mode)
		if err != nil {
			t.Fatalf("New(%q): %v", mode, err)
		}
		if l.SugaredLogger == nil {
			t.Fatalf("New(%q): nil sugared logger", mode)
		}
	}
}

func TestPrintfAndWith(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.DebugLevel)
	l := (&Logger{SugaredLogger: zap.New(core).Sugar()}).With("run_id", "r1")

	l.Printf("stage=%s ok", "load")
	l.Warn("anomaly", "category", "no_bnf_code")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("entries=%d, want 2", len(entries))
	}
	if entries[0].Message != "stage=load ok" || entries[0].Level != zap.InfoLevel {
		t.Fatalf("printf entry = %+v", entries[0])
	}
	if got := entries[1].ContextMap()["run_id"]; got != "r1" {
		t.Fatalf("run_id field = %v", got)
	}
	if got := entries[1].ContextMap()["category"]; got != "no_bnf_code" {
		t.Fatalf("category field = %v", got)
	}
}

func TestNop(t *testing.T) {
	t.Parallel()

	l := Nop()
	l.Printf("ignored %d", 1)
	l.With("k", "v").Info("ignored")
	l.Sync()
}
