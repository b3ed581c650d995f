package account

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mediimate/gateway/internal/platform/backend"
	"github.com/mediimate/gateway/internal/platform/httperr"
	"github.com/mediimate/gateway/internal/platform/session"
	"github.com/mediimate/gateway/internal/platform/validate"
)

// Backend is the slice of the clinical backend this package calls.
type Backend interface {
	Register(ctx context.Context, req backend.RegisterRequest) (*backend.AuthResult, error)
	Login(ctx context.Context, email, password string) (*backend.AuthResult, error)
	SendOTP(ctx context.Context, phone string) error
	VerifyOTP(ctx context.Context, phone, otp string) (*backend.AuthResult, error)
	SendRegistrationOTP(ctx context.Context, phone string) error
	VerifyRegistrationOTP(ctx context.Context, phone, otp string) (*backend.AuthResult, error)
	AcceptTnC(ctx context.Context, token, phone string) error
	GetProfile(ctx context.Context, token string) (*backend.User, error)
	UpdateProfile(ctx context.Context, token string, upd backend.ProfileUpdate) (*backend.User, error)
}

// Sessions is implemented by session.Manager.
type Sessions interface {
	Start(ctx context.Context, id session.Identity) (*session.Session, string, error)
	BackendToken(s *session.Session) (string, error)
	MarkTnC(ctx context.Context, s *session.Session) error
	End(ctx context.Context, sessionID string) error
}

var (
	errNewUser = httperr.New(http.StatusNotFound, "No account found for this number. Please register.").With("next_step", "register")
	errNoToken = &backend.APIError{Status: http.StatusBadGateway, Message: "sign-in response carried no token"}
)

type Service struct {
	backend     Backend
	sessions    Sessions
	countryCode string
	logger      zerolog.Logger
}

func NewService(b Backend, sessions Sessions, countryCode string, logger zerolog.Logger) *Service {
	return &Service{
		backend:     b,
		sessions:    sessions,
		countryCode: countryCode,
		logger:      logger.With().Str("component", "account").Logger(),
	}
}

func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	phone, err := validate.NormalizePhone(s.countryCode, req.Phone)
	if err != nil {
		return nil, err
	}
	res, err := s.backend.Register(ctx, req.toBackend(phone))
	if err != nil {
		return nil, err
	}
	if res.Token == "" || res.User == nil {
		return &AuthResponse{Message: orDefault(res.Message, "Registration successful. Please sign in.")}, nil
	}
	return s.open(ctx, res, phone)
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		return nil, validate.Errorf("please enter both email and password")
	}
	res, err := s.backend.Login(ctx, email, req.Password)
	if err != nil {
		return nil, err
	}
	return s.open(ctx, res, "")
}

// SendOTP starts OTP login. A phone with no account yields a 404 telling
// the client to switch to registration.
func (s *Service) SendOTP(ctx context.Context, raw string) error {
	phone, err := validate.NormalizePhone(s.countryCode, raw)
	if err != nil {
		return err
	}
	if err := s.backend.SendOTP(ctx, phone); err != nil {
		if backend.IsNotFound(err) {
			return errNewUser
		}
		return err
	}
	return nil
}

func (s *Service) VerifyOTP(ctx context.Context, req OTPRequest) (*AuthResponse, error) {
	phone, err := s.checkOTP(req)
	if err != nil {
		return nil, err
	}
	res, err := s.backend.VerifyOTP(ctx, phone, req.OTP)
	if err != nil {
		return nil, err
	}
	return s.open(ctx, res, phone)
}

func (s *Service) SendRegistrationOTP(ctx context.Context, raw string) error {
	phone, err := validate.NormalizePhone(s.countryCode, raw)
	if err != nil {
		return err
	}
	return s.backend.SendRegistrationOTP(ctx, phone)
}

// VerifyRegistrationOTP confirms the phone during sign-up. When the backend
// also returns a token the patient is signed in straight away.
func (s *Service) VerifyRegistrationOTP(ctx context.Context, req OTPRequest) (*AuthResponse, error) {
	phone, err := s.checkOTP(req)
	if err != nil {
		return nil, err
	}
	res, err := s.backend.VerifyRegistrationOTP(ctx, phone, req.OTP)
	if err != nil {
		return nil, err
	}
	if res.Token == "" || res.User == nil {
		return &AuthResponse{Verified: true, Message: orDefault(res.Message, "Phone number verified")}, nil
	}
	out, err := s.open(ctx, res, phone)
	if err != nil {
		return nil, err
	}
	out.Verified = true
	return out, nil
}

// checkOTP validates both inputs before any network call.
func (s *Service) checkOTP(req OTPRequest) (string, error) {
	phone, err := validate.NormalizePhone(s.countryCode, req.Phone)
	if err != nil {
		return "", err
	}
	if !validate.OTP(req.OTP) {
		return "", validate.ErrInvalidOTP
	}
	return phone, nil
}

func (s *Service) AcceptTnC(ctx context.Context, sess *session.Session) error {
	token, err := s.sessions.BackendToken(sess)
	if err != nil {
		return err
	}
	if err := s.backend.AcceptTnC(ctx, token, sess.Phone); err != nil {
		return err
	}
	return s.sessions.MarkTnC(ctx, sess)
}

func (s *Service) Profile(ctx context.Context, sess *session.Session) (*backend.User, error) {
	token, err := s.sessions.BackendToken(sess)
	if err != nil {
		return nil, err
	}
	return s.backend.GetProfile(ctx, token)
}

func (s *Service) UpdateProfile(ctx context.Context, sess *session.Session, req *ProfileRequest) (*backend.User, error) {
	upd, err := req.toBackend()
	if err != nil {
		return nil, err
	}
	token, err := s.sessions.BackendToken(sess)
	if err != nil {
		return nil, err
	}
	return s.backend.UpdateProfile(ctx, token, upd)
}

func (s *Service) Logout(ctx context.Context, sess *session.Session) error {
	return s.sessions.End(ctx, sess.ID)
}

// open turns a backend sign-in into a gateway session.
func (s *Service) open(ctx context.Context, res *backend.AuthResult, phone string) (*AuthResponse, error) {
	if res.Token == "" || res.User == nil || res.User.Identifier() == "" {
		return nil, errNoToken
	}
	user := res.User
	if user.Phone != "" {
		if p, err := validate.NormalizePhone(s.countryCode, user.Phone); err == nil {
			phone = p
		} else if phone == "" {
			phone = user.Phone
		}
	}

	sess, token, err := s.sessions.Start(ctx, session.Identity{
		Role:         session.RolePatient,
		SubjectID:    user.Identifier(),
		Phone:        phone,
		Name:         user.Name,
		BackendToken: res.Token,
		TnCAccepted:  user.HasAcceptedTnC,
	})
	if err != nil {
		return nil, fmt.Errorf("open patient session: %w", err)
	}
	s.logger.Info().Str("session_id", sess.ID).Str("subject_id", sess.SubjectID).Msg("patient signed in")

	expires := sess.ExpiresAt
	return &AuthResponse{
		Token:       token,
		Role:        sess.Role,
		ExpiresAt:   &expires,
		User:        user,
		RequiresTnC: !sess.TnCAccepted,
	}, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
