package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"alma.org.ar/internal/obs"
)

func TestLogEvent(t *testing.T) {
	var buf bytes.Buffer
	obs.Configure(obs.LogConfig{Level: "info", Format: "json", Output: &buf})
	defer obs.Configure(obs.LogConfig{Format: "json"})

	ctx := context.Background()
	ctx = WithRunID(ctx, "01JQ0000000000000000000000")
	ctx = WithOperator(ctx, "postgres")

	if err := LogEvent(ctx, "provision.drop_database", map[string]any{"database": "alma_platform"}); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}

	line := buf.String()
	if line == "" {
		t.Fatal("expected log output")
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if entry["type"] != "audit" {
		t.Fatalf("unexpected type: %v", entry["type"])
	}
	if entry["event"] != "provision.drop_database" {
		t.Fatalf("unexpected event: %v", entry["event"])
	}
	if entry["run_id"] != "01JQ0000000000000000000000" {
		t.Fatalf("unexpected run id: %v", entry["run_id"])
	}
	if entry["operator"] != "postgres" {
		t.Fatalf("unexpected operator: %v", entry["operator"])
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok || fields["database"] != "alma_platform" {
		t.Fatalf("fields missing or incorrect: %v", entry["fields"])
	}
}

func TestLogEventRequiresName(t *testing.T) {
	if err := LogEvent(context.Background(), "  ", nil); err == nil {
		t.Fatal("expected error for empty event")
	}
}
