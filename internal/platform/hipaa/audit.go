package hipaa

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Vault access actions.
const (
	ActionSearch = "search"
	ActionAccess = "access"
	ActionUpdate = "update"
)

// VaultAccessEntry records one doctor interaction with a patient's vault.
type VaultAccessEntry struct {
	ID          uuid.UUID `json:"id"`
	DoctorID    string    `json:"doctor_id"`
	DoctorPhone string    `json:"doctor_phone"`
	PatientID   string    `json:"patient_id,omitempty"`
	Action      string    `json:"action"`
	Outcome     string    `json:"outcome"`
	MatchCount  int       `json:"match_count,omitempty"`
	ResourceID  string    `json:"resource_id,omitempty"`
	SessionID   string    `json:"session_id"`
	IPAddress   string    `json:"ip_address,omitempty"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// AccessRecorder persists vault access entries.
type AccessRecorder interface {
	RecordVaultAccess(ctx context.Context, e *VaultAccessEntry) error
}

// AuditLogger writes vault access entries to the vault_access_log table.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger creates a new AuditLogger backed by the given connection pool.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

func (a *AuditLogger) RecordVaultAccess(ctx context.Context, e *VaultAccessEntry) error {
	stamp(e)

	const query = `
		INSERT INTO vault_access_log (
			id, doctor_id, doctor_phone, patient_id, action, outcome,
			match_count, resource_id, session_id, ip_address, recorded_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`

	_, err := a.pool.Exec(ctx, query,
		e.ID, e.DoctorID, e.DoctorPhone, e.PatientID, e.Action, e.Outcome,
		e.MatchCount, e.ResourceID, e.SessionID, e.IPAddress, e.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("vault audit: insert: %w", err)
	}
	return nil
}

// LogRecorder writes vault access entries to the structured log. Used when
// no database is configured.
type LogRecorder struct {
	logger zerolog.Logger
}

func NewLogRecorder(logger zerolog.Logger) *LogRecorder {
	return &LogRecorder{logger: logger.With().Str("component", "vault_audit").Logger()}
}

func (l *LogRecorder) RecordVaultAccess(_ context.Context, e *VaultAccessEntry) error {
	stamp(e)
	l.logger.Info().
		Str("audit_id", e.ID.String()).
		Str("doctor_id", e.DoctorID).
		Str("patient_id", e.PatientID).
		Str("action", e.Action).
		Str("outcome", e.Outcome).
		Int("match_count", e.MatchCount).
		Str("resource_id", e.ResourceID).
		Str("session_id", e.SessionID).
		Str("ip", e.IPAddress).
		Time("recorded_at", e.RecordedAt).
		Msg("vault access")
	return nil
}

func stamp(e *VaultAccessEntry) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}
	if e.Outcome == "" {
		e.Outcome = "success"
	}
}
