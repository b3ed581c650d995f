package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mediimate/gateway/internal/platform/hipaa"
)

// Identity is what a successful backend login yields.
type Identity struct {
	Role         Role
	SubjectID    string
	Phone        string
	Name         string
	BackendToken string
	TnCAccepted  bool
}

// Manager creates, resolves and ends sessions.
type Manager struct {
	store  Store
	sealer *hipaa.TokenSealer
	issuer *Issuer
	ttl    time.Duration
	now    func() time.Time

	mu    sync.RWMutex
	onEnd []func(sessionID string)
}

func NewManager(store Store, sealer *hipaa.TokenSealer, issuer *Issuer, ttl time.Duration) *Manager {
	return &Manager{
		store:  store,
		sealer: sealer,
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// OnEnd registers fn to run after a session is ended explicitly. Used by
// per-session view state to drop what it holds.
func (m *Manager) OnEnd(fn func(sessionID string)) {
	m.mu.Lock()
	m.onEnd = append(m.onEnd, fn)
	m.mu.Unlock()
}

// Start persists a new session and returns it with the signed client token.
func (m *Manager) Start(ctx context.Context, id Identity) (*Session, string, error) {
	sealed, err := m.sealer.Seal(id.BackendToken)
	if err != nil {
		return nil, "", fmt.Errorf("start session: %w", err)
	}
	now := m.now().UTC()
	s := &Session{
		ID:          uuid.New().String(),
		Role:        id.Role,
		SubjectID:   id.SubjectID,
		Phone:       id.Phone,
		Name:        id.Name,
		SealedToken: sealed,
		TnCAccepted: id.TnCAccepted,
		CreatedAt:   now,
		ExpiresAt:   now.Add(m.ttl),
	}
	if err := m.store.Create(ctx, s); err != nil {
		return nil, "", fmt.Errorf("start session: %w", err)
	}
	token, err := m.issuer.Issue(s)
	if err != nil {
		_ = m.store.Delete(ctx, s.ID)
		return nil, "", err
	}
	return s, token, nil
}

// Resolve verifies the client token and loads its live session.
func (m *Manager) Resolve(ctx context.Context, token string) (*Session, error) {
	claims, err := m.issuer.Parse(token)
	if err != nil {
		return nil, err
	}
	s, err := m.store.Get(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if s.Expired(m.now()) {
		return nil, ErrExpired
	}
	if s.Role != claims.Role {
		return nil, fmt.Errorf("session role mismatch")
	}
	return s, nil
}

// BackendToken unseals the clinical backend token held by s.
func (m *Manager) BackendToken(s *Session) (string, error) {
	token, err := m.sealer.Open(s.SealedToken)
	if err != nil {
		return "", fmt.Errorf("unseal backend token: %w", err)
	}
	return token, nil
}

// TokenFor loads a live session by id and returns its backend token. Used by
// background work that acts on behalf of a connected client.
func (m *Manager) TokenFor(ctx context.Context, sessionID string) (string, error) {
	s, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if s.Expired(m.now()) {
		return "", ErrExpired
	}
	return m.BackendToken(s)
}

// MarkTnC records that the terms gate has been passed.
func (m *Manager) MarkTnC(ctx context.Context, s *Session) error {
	s.TnCAccepted = true
	if err := m.store.Update(ctx, s); err != nil {
		return fmt.Errorf("mark tnc: %w", err)
	}
	return nil
}

// End deletes the session and notifies OnEnd listeners.
func (m *Manager) End(ctx context.Context, sessionID string) error {
	if err := m.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	m.mu.RLock()
	listeners := append([]func(string){}, m.onEnd...)
	m.mu.RUnlock()
	for _, fn := range listeners {
		fn(sessionID)
	}
	return nil
}

// Purge removes expired sessions from the store.
func (m *Manager) Purge(ctx context.Context) (int, error) {
	return m.store.PurgeExpired(ctx, m.now())
}
