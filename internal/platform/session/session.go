// Package session keeps the server-side state that a browser client would
// otherwise hold in local storage: who is signed in, their backend token,
// and whether the terms gate has been passed.
package session

import (
	"context"
	"errors"
	"time"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrExpired  = errors.New("session expired")
)

// Session is one signed-in patient or doctor. SubjectID and Phone are the
// only identifiers used to scope backend calls.
type Session struct {
	ID          string    `json:"id"`
	Role        Role      `json:"role"`
	SubjectID   string    `json:"subject_id"`
	Phone       string    `json:"phone"`
	Name        string    `json:"name"`
	SealedToken string    `json:"sealed_token"`
	TnCAccepted bool      `json:"tnc_accepted"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Store persists sessions.
type Store interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Update(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	// PurgeExpired removes sessions that expired before now and returns how
	// many were removed.
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

type ctxKey struct{}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session stored by WithSession, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(ctxKey{}).(*Session)
	return s
}
