package account

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mediimate/gateway/internal/platform/backend"
	"github.com/mediimate/gateway/internal/platform/hipaa"
	"github.com/mediimate/gateway/internal/platform/session"
)

type mockBackend struct {
	calls int

	registered  *backend.RegisterRequest
	sentPhone   string
	verifyPhone string
	tncPhone    string
	tncToken    string

	registerResult *backend.AuthResult
	loginResult    *backend.AuthResult
	verifyResult   *backend.AuthResult
	profile        *backend.User
	updated        *backend.ProfileUpdate
	err            error
}

func (m *mockBackend) Register(_ context.Context, req backend.RegisterRequest) (*backend.AuthResult, error) {
	m.calls++
	m.registered = &req
	if m.err != nil {
		return nil, m.err
	}
	if m.registerResult == nil {
		return &backend.AuthResult{Message: "created"}, nil
	}
	return m.registerResult, nil
}

func (m *mockBackend) Login(_ context.Context, email, password string) (*backend.AuthResult, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.loginResult, nil
}

func (m *mockBackend) SendOTP(_ context.Context, phone string) error {
	m.calls++
	m.sentPhone = phone
	return m.err
}

func (m *mockBackend) VerifyOTP(_ context.Context, phone, otp string) (*backend.AuthResult, error) {
	m.calls++
	m.verifyPhone = phone
	if m.err != nil {
		return nil, m.err
	}
	return m.verifyResult, nil
}

func (m *mockBackend) SendRegistrationOTP(_ context.Context, phone string) error {
	m.calls++
	m.sentPhone = phone
	return m.err
}

func (m *mockBackend) VerifyRegistrationOTP(_ context.Context, phone, otp string) (*backend.AuthResult, error) {
	m.calls++
	m.verifyPhone = phone
	if m.err != nil {
		return nil, m.err
	}
	if m.verifyResult == nil {
		return &backend.AuthResult{}, nil
	}
	return m.verifyResult, nil
}

func (m *mockBackend) AcceptTnC(_ context.Context, token, phone string) error {
	m.calls++
	m.tncToken = token
	m.tncPhone = phone
	return m.err
}

func (m *mockBackend) GetProfile(_ context.Context, token string) (*backend.User, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.profile, nil
}

func (m *mockBackend) UpdateProfile(_ context.Context, token string, upd backend.ProfileUpdate) (*backend.User, error) {
	m.calls++
	m.updated = &upd
	if m.err != nil {
		return nil, m.err
	}
	return m.profile, nil
}

func newTestService(t *testing.T) (*Service, *mockBackend, *session.Manager) {
	t.Helper()
	sealer, err := hipaa.NewTokenSealer([]byte(strings.Repeat("s", 32)))
	if err != nil {
		t.Fatalf("sealer: %v", err)
	}
	mgr := session.NewManager(session.NewMemoryStore(), sealer, session.NewIssuer("test-key"), time.Hour)
	mb := &mockBackend{}
	return NewService(mb, mgr, "+91", zerolog.Nop()), mb, mgr
}

func patientResult(accepted bool) *backend.AuthResult {
	return &backend.AuthResult{
		Token: "backend-token",
		User: &backend.User{
			ID:             "u1",
			Name:           "Asha",
			Phone:          "+919876543210",
			HasAcceptedTnC: accepted,
		},
	}
}
