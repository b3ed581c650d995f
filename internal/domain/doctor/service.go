package doctor

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/mediimate/gateway/internal/domain/healthlog"
	"github.com/mediimate/gateway/internal/platform/backend"
	"github.com/mediimate/gateway/internal/platform/httperr"
	"github.com/mediimate/gateway/internal/platform/session"
	"github.com/mediimate/gateway/internal/platform/validate"
)

type Backend interface {
	DoctorSendOTP(ctx context.Context, phone string) error
	DoctorVerifyOTP(ctx context.Context, phone, otp string) (*backend.AuthResult, error)
	DoctorAcceptTnC(ctx context.Context, token, phone string) error
	DoctorRegister(ctx context.Context, req backend.DoctorRegisterRequest) (*backend.AuthResult, error)
	SendRegistrationOTP(ctx context.Context, phone string) error
	VerifyRegistrationOTP(ctx context.Context, phone, otp string) (*backend.AuthResult, error)
	MappedPatients(ctx context.Context, token, doctorPhone string) ([]backend.MappedPatient, error)
	HealthLogs(ctx context.Context, token, phone string) (*backend.HealthLogs, error)
}

type Sessions interface {
	Start(ctx context.Context, id session.Identity) (*session.Session, string, error)
	BackendToken(s *session.Session) (string, error)
	MarkTnC(ctx context.Context, s *session.Session) error
	End(ctx context.Context, sessionID string) error
}

var (
	errDoctorNotFound   = httperr.New(http.StatusNotFound, "Doctor not found. Please register first.").With("next_step", "register")
	errPatientNotMapped = httperr.New(http.StatusNotFound, "Patient not found")
	errNoToken          = &backend.APIError{Status: http.StatusBadGateway, Message: "sign-in response carried no token"}
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
		logger:      logger.With().Str("component", "doctor").Logger(),
	}
}

func (s *Service) SendOTP(ctx context.Context, raw string) error {
	phone, err := validate.NormalizePhone(s.countryCode, raw)
	if err != nil {
		return err
	}
	if err := s.backend.DoctorSendOTP(ctx, phone); err != nil {
		if backend.IsNotFound(err) {
			return errDoctorNotFound
		}
		return err
	}
	return nil
}

// VerifyOTP signs the doctor in. A doctor who has not accepted the terms
// gets a session that stays behind the terms gate until AcceptTnC.
func (s *Service) VerifyOTP(ctx context.Context, req OTPRequest) (*AuthResponse, error) {
	phone, err := validate.NormalizePhone(s.countryCode, req.Phone)
	if err != nil {
		return nil, err
	}
	if !validate.OTP(req.OTP) {
		return nil, validate.ErrInvalidOTP
	}

	res, err := s.backend.DoctorVerifyOTP(ctx, phone, req.OTP)
	if err != nil {
		return nil, err
	}
	if res.Token == "" || res.Doctor == nil || res.Doctor.Identifier() == "" {
		return nil, errNoToken
	}
	doc := res.Doctor
	if doc.Phone != "" {
		if p, err := validate.NormalizePhone(s.countryCode, doc.Phone); err == nil {
			phone = p
		}
	}

	sess, token, err := s.sessions.Start(ctx, session.Identity{
		Role:         session.RoleDoctor,
		SubjectID:    doc.Identifier(),
		Phone:        phone,
		Name:         doc.Name,
		BackendToken: res.Token,
		TnCAccepted:  doc.HasAcceptedTnC,
	})
	if err != nil {
		return nil, fmt.Errorf("open doctor session: %w", err)
	}
	s.logger.Info().Str("session_id", sess.ID).Str("doctor_id", sess.SubjectID).
		Bool("tnc_pending", !sess.TnCAccepted).Msg("doctor signed in")

	return &AuthResponse{
		Token:       token,
		Role:        sess.Role,
		ExpiresAt:   sess.ExpiresAt,
		Doctor:      doc,
		RequiresTnC: !sess.TnCAccepted,
	}, nil
}

// AcceptTnC records acceptance at the backend and opens the gate. A backend
// failure is logged and does not block the doctor.
func (s *Service) AcceptTnC(ctx context.Context, sess *session.Session) error {
	token, err := s.sessions.BackendToken(sess)
	if err != nil {
		return err
	}
	if err := s.backend.DoctorAcceptTnC(ctx, token, sess.Phone); err != nil {
		s.logger.Warn().Err(err).Str("doctor_id", sess.SubjectID).Msg("backend did not record terms acceptance")
	}
	return s.sessions.MarkTnC(ctx, sess)
}

// DeclineTnC abandons the pending sign-in.
func (s *Service) DeclineTnC(ctx context.Context, sess *session.Session) error {
	return s.sessions.End(ctx, sess.ID)
}

func (s *Service) SendRegistrationOTP(ctx context.Context, raw string) error {
	phone, err := validate.NormalizePhone(s.countryCode, raw)
	if err != nil {
		return err
	}
	return s.backend.SendRegistrationOTP(ctx, phone)
}

// Register verifies the registration OTP and then creates the doctor
// account. The doctor signs in afterwards through OTP login.
func (s *Service) Register(ctx context.Context, req *RegisterRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	phone, err := validate.NormalizePhone(s.countryCode, req.Phone)
	if err != nil {
		return err
	}
	if !validate.OTP(req.OTP) {
		return validate.ErrInvalidOTP
	}

	if _, err := s.backend.VerifyRegistrationOTP(ctx, phone, req.OTP); err != nil {
		return err
	}
	if _, err := s.backend.DoctorRegister(ctx, req.toBackend(phone)); err != nil {
		return err
	}
	s.logger.Info().Str("specialization", req.Specialization).Msg("doctor registered")
	return nil
}

func (s *Service) mapped(ctx context.Context, sess *session.Session) ([]Patient, string, error) {
	token, err := s.sessions.BackendToken(sess)
	if err != nil {
		return nil, "", err
	}
	raw, err := s.backend.MappedPatients(ctx, token, sess.Phone)
	if err != nil {
		return nil, "", err
	}
	return lo.Map(raw, func(m backend.MappedPatient, _ int) Patient { return patientFrom(m) }), token, nil
}

// Patients lists the patients mapped to the signed-in doctor. search
// matches name or phone; status "" or "all" disables the status filter.
// Counts always cover the whole list.
func (s *Service) Patients(ctx context.Context, sess *session.Session, search, status string) (*PatientList, error) {
	all, _, err := s.mapped(ctx, sess)
	if err != nil {
		return nil, err
	}

	counts := StatusCounts{Total: len(all)}
	for _, p := range all {
		switch p.Status {
		case StatusStable:
			counts.Stable++
		case StatusCritical:
			counts.Critical++
		case StatusRecovering:
			counts.Recovering++
		}
	}

	term := strings.ToLower(strings.TrimSpace(search))
	status = strings.ToLower(strings.TrimSpace(status))
	filtered := lo.Filter(all, func(p Patient, _ int) bool {
		if status != "" && status != "all" && p.Status != status {
			return false
		}
		return term == "" ||
			strings.Contains(strings.ToLower(p.Name), term) ||
			strings.Contains(p.Phone, term)
	})

	return &PatientList{Patients: filtered, Counts: counts}, nil
}

// PatientLogs returns the vitals of one of the doctor's mapped patients.
func (s *Service) PatientLogs(ctx context.Context, sess *session.Session, patientID string) (*PatientLogs, error) {
	all, token, err := s.mapped(ctx, sess)
	if err != nil {
		return nil, err
	}
	patient, ok := lo.Find(all, func(p Patient) bool { return p.ID == patientID })
	if !ok {
		return nil, errPatientNotMapped
	}

	logs, err := s.backend.HealthLogs(ctx, token, patient.Phone)
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = &backend.HealthLogs{}
	}

	return &PatientLogs{
		Patient:     patient,
		GroupedLogs: healthlog.GroupByDate(logs.VitalLogs),
		Trends:      healthlog.BuildTrends(logs.VitalLogs),
	}, nil
}
