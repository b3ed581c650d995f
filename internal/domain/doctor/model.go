package doctor

import (
	"strconv"
	"strings"
	"time"

	"github.com/mediimate/gateway/internal/domain/healthlog"
	"github.com/mediimate/gateway/internal/platform/backend"
	"github.com/mediimate/gateway/internal/platform/session"
	"github.com/mediimate/gateway/internal/platform/validate"
)

// Patient status values shown on the doctor's list.
const (
	StatusStable     = "stable"
	StatusCritical   = "critical"
	StatusRecovering = "recovering"
)

type OTPRequest struct {
	Phone string `json:"phone"`
	OTP   string `json:"otp"`
}

// RegisterRequest is the doctor sign-up form together with the OTP sent to
// the doctor's phone.
type RegisterRequest struct {
	Name           string             `json:"name"`
	Email          string             `json:"email"`
	Phone          string             `json:"phone"`
	Specialization string             `json:"specialization"`
	LicenseNumber  string             `json:"licenseNumber"`
	Hospital       string             `json:"hospital"`
	Experience     backend.FlexString `json:"experience"`
	OTP            string             `json:"otp"`
}

func (r *RegisterRequest) Validate() error {
	for _, f := range []*string{&r.Name, &r.Email, &r.Phone, &r.Specialization, &r.LicenseNumber, &r.Hospital} {
		*f = strings.TrimSpace(*f)
	}
	if r.Name == "" || r.Email == "" || r.Phone == "" || r.Specialization == "" || r.LicenseNumber == "" {
		return validate.Errorf("please fill all required fields")
	}
	if _, err := r.experience(); err != nil {
		return err
	}
	return nil
}

func (r *RegisterRequest) experience() (*int, error) {
	raw := strings.TrimSpace(string(r.Experience))
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return nil, validate.Errorf("experience must be a whole number of years")
	}
	return &n, nil
}

func (r *RegisterRequest) toBackend(phone string) backend.DoctorRegisterRequest {
	exp, _ := r.experience()
	return backend.DoctorRegisterRequest{
		Name:           r.Name,
		Email:          r.Email,
		Phone:          phone,
		Specialization: r.Specialization,
		LicenseNumber:  r.LicenseNumber,
		Hospital:       r.Hospital,
		Experience:     exp,
	}
}

type AuthResponse struct {
	Token       string          `json:"token"`
	Role        session.Role    `json:"role"`
	ExpiresAt   time.Time       `json:"expires_at"`
	Doctor      *backend.Doctor `json:"doctor"`
	RequiresTnC bool            `json:"requires_tnc"`
}

// Patient is one row of the doctor's patient list.
type Patient struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	BloodGroup string `json:"bloodGroup"`
	Status     string `json:"status"`
	Condition  string `json:"condition"`
	LastVisit  string `json:"lastVisit,omitempty"`
}

func patientFrom(m backend.MappedPatient) Patient {
	p := Patient{
		ID:         m.ID,
		Name:       m.Name,
		Phone:      m.Phone,
		BloodGroup: m.BloodGroup,
		Status:     strings.ToLower(m.Status),
		Condition:  m.Condition,
		LastVisit:  m.LastVisit,
	}
	if p.BloodGroup == "" {
		p.BloodGroup = "Unknown"
	}
	switch p.Status {
	case StatusStable, StatusCritical, StatusRecovering:
	default:
		p.Status = StatusStable
	}
	if p.Condition == "" {
		p.Condition = "General Checkup"
	}
	return p
}

type StatusCounts struct {
	Total      int `json:"total"`
	Stable     int `json:"stable"`
	Critical   int `json:"critical"`
	Recovering int `json:"recovering"`
}

type PatientList struct {
	Patients []Patient     `json:"patients"`
	Counts   StatusCounts `json:"counts"`
}

// PatientLogs is a mapped patient's vitals as the doctor sees them.
type PatientLogs struct {
	Patient     Patient              `json:"patient"`
	GroupedLogs []healthlog.DayGroup `json:"groupedLogs"`
	Trends      healthlog.Series     `json:"trends"`
}
