package account

import (
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/mediimate/gateway/internal/platform/backend"
	"github.com/mediimate/gateway/internal/platform/session"
	"github.com/mediimate/gateway/internal/platform/validate"
)

const minPasswordLength = 6

// RegisterRequest is the patient sign-up form.
type RegisterRequest struct {
	Name            string             `json:"name"`
	Email           string             `json:"email"`
	Password        string             `json:"password"`
	ConfirmPassword string             `json:"confirmPassword"`
	Phone           string             `json:"phone"`
	Age             backend.FlexString `json:"age"`
	Gender          string             `json:"gender"`
	Address         string             `json:"address"`
}

// Validate checks the form before anything is sent to the backend.
func (r *RegisterRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)

	if r.Name == "" || r.Email == "" || r.Password == "" || r.ConfirmPassword == "" || r.Phone == "" {
		return validate.Errorf("please fill in all required fields")
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return validate.Errorf("please enter a valid email address")
	}
	if r.Password != r.ConfirmPassword {
		return validate.Errorf("passwords do not match")
	}
	if len(r.Password) < minPasswordLength {
		return validate.Errorf("password must be at least %d characters", minPasswordLength)
	}
	if !validate.Phone(r.Phone) {
		return validate.ErrInvalidPhone
	}
	if _, err := r.age(); err != nil {
		return err
	}
	return nil
}

func (r *RegisterRequest) age() (*int, error) {
	raw := strings.TrimSpace(string(r.Age))
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 || n > 150 {
		return nil, validate.Errorf("age must be a whole number")
	}
	return &n, nil
}

// toBackend builds the backend payload. The address becomes a GeoJSON point
// with placeholder coordinates; geolocation is not resolved here.
func (r *RegisterRequest) toBackend(phone string) backend.RegisterRequest {
	age, _ := r.age()
	out := backend.RegisterRequest{
		Name:        r.Name,
		Email:       r.Email,
		Password:    r.Password,
		PhoneNumber: phone,
		Age:         age,
		Gender:      r.Gender,
	}
	if addr := strings.TrimSpace(r.Address); addr != "" {
		out.Location = &backend.Location{Type: "Point", Address: addr}
	}
	return out
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type OTPRequest struct {
	Phone string `json:"phone"`
	OTP   string `json:"otp"`
}

type ProfileRequest struct {
	Name       *string             `json:"name"`
	Email      *string             `json:"email"`
	Age        *backend.FlexString `json:"age"`
	Gender     *string             `json:"gender"`
	BloodGroup *string             `json:"bloodGroup"`
}

func (p *ProfileRequest) toBackend() (backend.ProfileUpdate, error) {
	upd := backend.ProfileUpdate{
		Name:       p.Name,
		Email:      p.Email,
		Gender:     p.Gender,
		BloodGroup: p.BloodGroup,
	}
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return upd, validate.Errorf("name cannot be empty")
	}
	if p.Age != nil && *p.Age != "" {
		n, err := strconv.Atoi(strings.TrimSpace(string(*p.Age)))
		if err != nil || n < 0 {
			return upd, validate.Errorf("age must be a whole number")
		}
		upd.Age = &n
	}
	return upd, nil
}

// AuthResponse is returned by every call that signs a patient in. Token is
// empty when the backend accepted the request without opening a session
// (for example a registration that still needs OTP login).
type AuthResponse struct {
	Token       string        `json:"token,omitempty"`
	Role        session.Role  `json:"role,omitempty"`
	ExpiresAt   *time.Time    `json:"expires_at,omitempty"`
	User        *backend.User `json:"user,omitempty"`
	RequiresTnC bool          `json:"requires_tnc"`
	Verified    bool          `json:"verified,omitempty"`
	Message     string        `json:"message,omitempty"`
}
