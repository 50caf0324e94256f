package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ledgerdash/internal/core"
)

func TestLoggerComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Component: ComponentReport, Output: &buf})
	logger.With("run", 1).WithComponent(ComponentCache).Info("hit")

	line := buf.String()
	if strings.Count(line, "component=") != 1 || !strings.Contains(line, "component=cache") {
		t.Fatalf("component should be replaced, got %q", line)
	}
	if !strings.Contains(line, "run=1") {
		t.Fatalf("attributes should survive WithComponent, got %q", line)
	}
}

func TestLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	New(Config{JSON: true, Output: &buf}).Warn("careful")
	if !strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), `"component":"app"`) {
		t.Fatalf("unexpected JSON output %q", buf.String())
	}
}

func TestLogFieldsDiagnostics(t *testing.T) {
	f := NewFields().WithDiagnostics([]core.Diagnostic{
		{Reason: core.SkipInvalidAmount},
		{Reason: core.SkipInvalidAmount},
		{Reason: core.SkipInvalidDate},
	}).WithError(errors.New("boom")).WithError(nil)

	if f[FieldSkipped] != 3 || f["skipped_invalid-amount"] != 2 || f["skipped_invalid-date"] != 1 {
		t.Fatalf("unexpected fields %v", f)
	}
	if f[FieldError] != "boom" {
		t.Fatalf("error field = %v", f[FieldError])
	}

	s := f.ToSlice()
	if len(s) != 2*len(f) || s[0] != FieldError {
		t.Fatalf("ToSlice should be sorted by key, got %v", s)
	}
}

func TestLogHTTPEndUsesContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Component: ComponentHTTP, Output: &buf})

	r := httptest.NewRequest(http.MethodGet, "/api/report?start=x", nil)
	ctx := NewContext(r.Context(), logger.With(FieldRequestID, "req-1"))
	LogHTTPEnd(ctx, r, http.StatusNotFound, 3, "10.0.0.1")

	line := buf.String()
	for _, want := range []string{"level=WARN", "request_id=req-1", "status_code=404", `query="start=x"`} {
		if !strings.Contains(line, want) {
			t.Fatalf("missing %q in %q", want, line)
		}
	}
}

func TestFromContextDefault(t *testing.T) {
	if FromContext(context.Background()).Component() != "unknown" {
		t.Fatalf("expected fallback logger")
	}
}
