package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore keeps sessions in the gateway_session table.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const sessionCols = `id, role, subject_id, phone, name, sealed_token, tnc_accepted, created_at, expires_at`

func (p *PGStore) Create(ctx context.Context, s *Session) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO gateway_session (`+sessionCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, string(s.Role), s.SubjectID, s.Phone, s.Name, s.SealedToken, s.TnCAccepted, s.CreatedAt, s.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (p *PGStore) Get(ctx context.Context, id string) (*Session, error) {
	var s Session
	var role string
	err := p.pool.QueryRow(ctx, `SELECT `+sessionCols+` FROM gateway_session WHERE id = $1`, id).
		Scan(&s.ID, &role, &s.SubjectID, &s.Phone, &s.Name, &s.SealedToken, &s.TnCAccepted, &s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	s.Role = Role(role)
	return &s, nil
}

func (p *PGStore) Update(ctx context.Context, s *Session) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE gateway_session
		SET name = $2, sealed_token = $3, tnc_accepted = $4, expires_at = $5
		WHERE id = $1`,
		s.ID, s.Name, s.SealedToken, s.TnCAccepted, s.ExpiresAt)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PGStore) Delete(ctx context.Context, id string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM gateway_session WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (p *PGStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM gateway_session WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
