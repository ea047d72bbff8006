package csv

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestReadAll_StripsBOMAndTrims(t *testing.T) {
	t.Parallel()

	in := "\uFEFFPresentation / Pack Level, VMP / VMPP/ AMP / AMPP ,BNF Code\n x , VMP ,'0407010H0AAAMAM\n"
	got, err := ReadAll(context.Background(), strings.NewReader(in), DefaultOptions())
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	want := [][]string{
		{"Presentation / Pack Level", "VMP / VMPP/ AMP / AMPP", "BNF Code"},
		{"x", "VMP", "'0407010H0AAAMAM"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q\nwant %q", got, want)
	}
}

func TestStreamRows_RaggedAndCallbackError(t *testing.T) {
	t.Parallel()

	in := "a,b,c\n1\n2,3\n"
	var lines []int
	stop := errors.New("stop")
	err := StreamRows(context.Background(), strings.NewReader(in), Options{}, func(line int, rec []string) error {
		lines = append(lines, line)
		if line == 2 && len(rec) != 1 {
			t.Fatalf("line 2 has %d fields, want 1", len(rec))
		}
		if line == 3 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) {
		t.Fatalf("err = %v, want stop", err)
	}
	if !reflect.DeepEqual(lines, []int{1, 2, 3}) {
		t.Fatalf("lines = %v", lines)
	}
}

func TestStreamRows_SemicolonAndCancel(t *testing.T) {
	t.Parallel()

	got, err := ReadAll(context.Background(), strings.NewReader("a;b\n"), Options{Comma: ';'})
	if err != nil || !reflect.DeepEqual(got, [][]string{{"a", "b"}}) {
		t.Fatalf("got %q, %v", got, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ReadAll(ctx, strings.NewReader("a\n"), DefaultOptions()); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
