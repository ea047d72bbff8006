package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type fakeLogger struct {
	msgs []string
}

func (l *fakeLogger) Printf(format string, v ...any) {
	l.msgs = append(l.msgs, fmt.Sprintf(format, v...))
}

type failing struct{ err error }

func (f failing) Notify(context.Context, string) error { return f.err }

func TestSlack_PostsText(t *testing.T) {
	t.Parallel()

	var got map[string]string
	var ctype string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctype = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	s := NewSlack(srv.URL)
	if err := s.Notify(context.Background(), "Imported dm+d data, release 4.1.0_20240101"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if got["text"] != "Imported dm+d data, release 4.1.0_20240101" {
		t.Fatalf("payload = %v", got)
	}
	if ctype != "application/json" {
		t.Fatalf("content-type = %q", ctype)
	}
}

func TestSlack_Non200IsError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, "invalid_token\n")
	}))
	defer srv.Close()

	err := NewSlack(srv.URL).Notify(context.Background(), "x")
	if err == nil || !strings.Contains(err.Error(), "status 403: invalid_token") {
		t.Fatalf("err = %v", err)
	}
}

func TestSlack_CanceledContext(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewSlack(srv.URL).Notify(ctx, "x"); err == nil {
		t.Fatalf("expected error for canceled context")
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	l := &fakeLogger{}
	n := New("", l)
	if _, ok := n.(Log); !ok {
		t.Fatalf("New without URL = %T, want Log", n)
	}
	if err := n.Notify(context.Background(), "Found no new tariff data to import"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(l.msgs) != 1 || l.msgs[0] != "notify: Found no new tariff data to import" {
		t.Fatalf("msgs = %v", l.msgs)
	}

	if m, ok := New("http://hooks.example/x", l).(Multi); !ok || len(m) != 2 {
		t.Fatalf("New with URL = %T", m)
	}
}

func TestMulti_ReturnsFirstErrorAndContinues(t *testing.T) {
	t.Parallel()

	l := &fakeLogger{}
	first := errors.New("first")
	m := Multi{failing{first}, Log{L: l}, failing{errors.New("second")}}

	if err := m.Notify(context.Background(), "hello"); !errors.Is(err, first) {
		t.Fatalf("err = %v, want first", err)
	}
	if len(l.msgs) != 1 {
		t.Fatalf("log notifier not reached: %v", l.msgs)
	}
}
