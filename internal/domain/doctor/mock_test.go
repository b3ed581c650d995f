package doctor

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
	calls []string

	sendErr      error
	verifyResult *backend.AuthResult
	verifyErr    error
	tncErr       error
	regOTPErr    error
	registered   *backend.DoctorRegisterRequest
	mapped       []backend.MappedPatient
	mappedPhone  string
	logs         *backend.HealthLogs
	logsPhone    string
}

func (m *mockBackend) DoctorSendOTP(_ context.Context, phone string) error {
	m.calls = append(m.calls, "send-otp")
	return m.sendErr
}

func (m *mockBackend) DoctorVerifyOTP(_ context.Context, phone, otp string) (*backend.AuthResult, error) {
	m.calls = append(m.calls, "verify-otp")
	return m.verifyResult, m.verifyErr
}

func (m *mockBackend) DoctorAcceptTnC(_ context.Context, token, phone string) error {
	m.calls = append(m.calls, "accept-tnc")
	return m.tncErr
}

func (m *mockBackend) DoctorRegister(_ context.Context, req backend.DoctorRegisterRequest) (*backend.AuthResult, error) {
	m.calls = append(m.calls, "register")
	m.registered = &req
	return &backend.AuthResult{}, nil
}

func (m *mockBackend) SendRegistrationOTP(_ context.Context, phone string) error {
	m.calls = append(m.calls, "send-otp-registration")
	return nil
}

func (m *mockBackend) VerifyRegistrationOTP(_ context.Context, phone, otp string) (*backend.AuthResult, error) {
	m.calls = append(m.calls, "verify-otp-registration")
	if m.regOTPErr != nil {
		return nil, m.regOTPErr
	}
	return &backend.AuthResult{}, nil
}

func (m *mockBackend) MappedPatients(_ context.Context, token, doctorPhone string) ([]backend.MappedPatient, error) {
	m.calls = append(m.calls, "mapped")
	m.mappedPhone = doctorPhone
	return m.mapped, nil
}

func (m *mockBackend) HealthLogs(_ context.Context, token, phone string) (*backend.HealthLogs, error) {
	m.calls = append(m.calls, "health-logs")
	m.logsPhone = phone
	return m.logs, nil
}

func newTestService(t *testing.T) (*Service, *mockBackend, *session.Manager) {
	t.Helper()
	sealer, err := hipaa.NewTokenSealer([]byte(strings.Repeat("d", 32)))
	if err != nil {
		t.Fatalf("sealer: %v", err)
	}
	mgr := session.NewManager(session.NewMemoryStore(), sealer, session.NewIssuer("test-key"), time.Hour)
	mb := &mockBackend{}
	return NewService(mb, mgr, "+91", zerolog.Nop()), mb, mgr
}

func doctorResult(accepted bool) *backend.AuthResult {
	return &backend.AuthResult{
		Token: "doctor-backend-token",
		Doctor: &backend.Doctor{
			MongoID:        "d1",
			Name:           "Dr. Rao",
			Phone:          "+919000000001",
			HasAcceptedTnC: accepted,
		},
	}
}

// signIn verifies an OTP and resolves the resulting session.
func signIn(t *testing.T, svc *Service, mb *mockBackend, mgr *session.Manager, accepted bool) *session.Session {
	t.Helper()
	mb.verifyResult = doctorResult(accepted)
	res, err := svc.VerifyOTP(context.Background(), OTPRequest{Phone: "9000000001", OTP: "123456"})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	sess, err := mgr.Resolve(context.Background(), res.Token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	return sess
}
