package hipaa

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func TestLogRecorder_RecordVaultAccess(t *testing.T) {
	var buf bytes.Buffer
	rec := NewLogRecorder(zerolog.New(&buf))

	entry := &VaultAccessEntry{
		DoctorID:   "doc-1",
		PatientID:  "pat-B",
		Action:     ActionAccess,
		SessionID:  "sess-1",
		MatchCount: 2,
	}
	if err := rec.RecordVaultAccess(context.Background(), entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if entry.ID == uuid.Nil {
		t.Error("expected ID to be assigned")
	}
	if entry.RecordedAt.IsZero() {
		t.Error("expected RecordedAt to be set")
	}
	if entry.Outcome != "success" {
		t.Errorf("expected default outcome success, got %q", entry.Outcome)
	}

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected JSON log line: %v", err)
	}
	if line["action"] != ActionAccess || line["patient_id"] != "pat-B" {
		t.Errorf("unexpected log line %v", line)
	}
	if line["component"] != "vault_audit" {
		t.Errorf("expected component field, got %v", line["component"])
	}
}

func TestStamp_KeepsProvidedValues(t *testing.T) {
	id := uuid.New()
	e := &VaultAccessEntry{ID: id, Outcome: "failure"}
	stamp(e)
	if e.ID != id || e.Outcome != "failure" {
		t.Errorf("stamp overwrote provided values: %+v", e)
	}
}
