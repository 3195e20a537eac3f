package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func newJSONLogger(buf *bytes.Buffer) *Logger {
	return New(Config{Level: slog.LevelDebug, Component: ComponentApp, Format: "json", Output: buf})
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	newJSONLogger(&buf).WithComponent(ComponentAuth).Info("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry[FieldComponent] != ComponentAuth {
		t.Errorf("component = %v", entry[FieldComponent])
	}
}

func TestLogHTTPEndLevels(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{200, "INFO"},
		{404, "WARN"},
		{500, "ERROR"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		sl := NewStructuredLogger(newJSONLogger(&buf))
		req := httptest.NewRequest(http.MethodGet, "/api/credits?x=1", nil)
		sl.LogHTTPEnd(context.Background(), req, tt.status, 3, "10.0.0.1")

		var entry map[string]any
		if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if entry["level"] != tt.level {
			t.Errorf("status %d logged at %v, want %s", tt.status, entry["level"], tt.level)
		}
		if entry[FieldPath] != "/api/credits" {
			t.Errorf("path = %v", entry[FieldPath])
		}
	}
}

func TestLogErrorNilFields(t *testing.T) {
	var buf bytes.Buffer
	NewStructuredLogger(newJSONLogger(&buf)).LogError(context.Background(), "boom", errors.New("disk full"), ComponentStorage, OpCreate)
	if !strings.Contains(buf.String(), "disk full") {
		t.Errorf("error missing from %s", buf.String())
	}
}

func TestMiddlewareTagsRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	base := newJSONLogger(&buf)
	events := NewStructuredLogger(base)

	h := Middleware(base, func(r *http.Request) string {
		return r.Header.Get("X-Request-ID")
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		events.LogCreditChange(r.Context(), OpDelete, 7, "", 0)
	}))

	req := httptest.NewRequest(http.MethodDelete, "/credits/7", nil)
	req.Header.Set("X-Request-ID", "abc")
	h.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry["msg"] != "Credit deleted" || entry[FieldRequestID] != "abc" || entry[FieldMethod] != http.MethodDelete {
		t.Errorf("entry = %v", entry)
	}
	if _, ok := entry[FieldAmountCents]; ok {
		t.Errorf("delete should not log an amount: %v", entry)
	}
}

func TestFromContextFallsBack(t *testing.T) {
	if got := FromContext(context.Background()); got == nil || got.Component() != "unknown" {
		t.Fatalf("fallback logger = %+v", got)
	}
	l := New(DefaultConfig())
	if got := FromContext(NewContext(context.Background(), l)); got != l {
		t.Fatal("logger not returned from context")
	}
}

func TestLogAuthLevels(t *testing.T) {
	for _, tt := range []struct {
		success bool
		level   string
	}{{true, "INFO"}, {false, "WARN"}} {
		var buf bytes.Buffer
		NewStructuredLogger(newJSONLogger(&buf)).LogAuth(context.Background(), OpLogin, tt.success, "10.0.0.1")
		var entry map[string]any
		if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if entry["level"] != tt.level || entry[FieldSuccess] != tt.success {
			t.Errorf("success=%v: entry = %v", tt.success, entry)
		}
	}
}

func TestLogHTTPEndProbesAtDebug(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Format: "json", Output: &buf})
	NewStructuredLogger(l).LogHTTPEnd(context.Background(), httptest.NewRequest(http.MethodGet, "/healthz", nil), 200, 1, "")
	if buf.Len() != 0 {
		t.Errorf("successful probe logged at info: %s", buf.String())
	}
}

func TestExplicitComponentWins(t *testing.T) {
	var buf bytes.Buffer
	newJSONLogger(&buf).With(FieldRequestID, "r1").Info("hi", FieldComponent, ComponentCache)

	if n := strings.Count(buf.String(), `"component"`); n != 1 {
		t.Fatalf("component written %d times: %s", n, buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry[FieldComponent] != ComponentCache || entry[FieldRequestID] != "r1" {
		t.Errorf("entry = %v", entry)
	}
}

func TestWithComponentKeepsAttrs(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf).With("port", 8080).WithComponent(ComponentWorker)
	if l.Component() != ComponentWorker {
		t.Fatalf("Component() = %q", l.Component())
	}
	l.Debug("tick")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry[FieldComponent] != ComponentWorker || entry["port"] != float64(8080) {
		t.Errorf("entry = %v", entry)
	}
}
