package main

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"alma.org.ar/internal/confirm"
)

func newTestRunner(t *testing.T, input string, interactive bool) (*runner, *bytes.Buffer) {
	t.Helper()
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "5433")
	t.Setenv("DB_NAME", "alma_test")
	t.Setenv("DB_USER", "alma")
	t.Setenv("LOG_FORMAT", "json")
	out := &bytes.Buffer{}
	return &runner{
		in:          strings.NewReader(input),
		out:         out,
		logOut:      io.Discard,
		interactive: func() bool { return interactive },
	}, out
}

func args(t *testing.T, rest ...string) []string {
	missing := filepath.Join(t.TempDir(), "absent.env")
	return append([]string{"almadb", "--env-file", missing}, rest...)
}

func TestDeclinedRunExitsCleanly(t *testing.T) {
	for _, command := range []string{"provision", "reseed"} {
		t.Run(command, func(t *testing.T) {
			r, out := newTestRunner(t, "n\n", true)
			if err := r.app().Run(args(t, command)); err != nil {
				t.Fatalf("declining must not fail: %v", err)
			}
			got := out.String()
			for _, want := range []string{"alma_test", "db.internal:5433", "alma", "[s/N]", "Operación cancelada."} {
				if !strings.Contains(got, want) {
					t.Fatalf("output %q missing %q", got, want)
				}
			}
		})
	}
}

func TestNonInteractiveWithoutYesFails(t *testing.T) {
	r, _ := newTestRunner(t, "", false)
	err := r.app().Run(args(t, "provision"))
	if !errors.Is(err, confirm.ErrNotInteractive) {
		t.Fatalf("err=%v, want ErrNotInteractive", err)
	}
}

func TestInvalidConfigurationFails(t *testing.T) {
	r, out := newTestRunner(t, "s\n", true)
	t.Setenv("DB_PORT", "70000")
	if err := r.app().Run(args(t, "provision")); err == nil {
		t.Fatal("expected configuration error")
	}
	if strings.Contains(out.String(), "[s/N]") {
		t.Fatal("no prompt expected before configuration is valid")
	}
}

func TestReseedRejectsBadToday(t *testing.T) {
	r, out := newTestRunner(t, "s\n", true)
	err := r.app().Run(args(t, "reseed", "--today", "20-03-2025"))
	if err == nil || !strings.Contains(err.Error(), "--today") {
		t.Fatalf("err=%v, want --today error", err)
	}
	if strings.Contains(out.String(), "[s/N]") {
		t.Fatal("no prompt expected for an invalid date")
	}
}
