package backend

import (
	"context"
	"net/http"
)

func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	var out AuthResult
	if err := c.do(ctx, http.MethodPost, "/auth/register", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var out AuthResult
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", "", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendOTP asks the backend to deliver a login OTP. A 404 means the phone
// has no account.
func (c *Client) SendOTP(ctx context.Context, phone string) error {
	return c.do(ctx, http.MethodPost, "/auth/send-otp", "", map[string]string{"phone": phone}, nil)
}

func (c *Client) VerifyOTP(ctx context.Context, phone, otp string) (*AuthResult, error) {
	var out AuthResult
	body := map[string]string{"phone": phone, "otp": otp}
	if err := c.do(ctx, http.MethodPost, "/auth/verify-otp", "", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SendRegistrationOTP(ctx context.Context, phone string) error {
	return c.do(ctx, http.MethodPost, "/auth/send-otp-registration", "", map[string]string{"phone": phone}, nil)
}

// VerifyRegistrationOTP confirms a registration OTP. The backend may or may
// not return a token at this step.
func (c *Client) VerifyRegistrationOTP(ctx context.Context, phone, otp string) (*AuthResult, error) {
	var out AuthResult
	body := map[string]string{"phone": phone, "otp": otp}
	if err := c.do(ctx, http.MethodPost, "/auth/verify-otp-registration", "", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AcceptTnC(ctx context.Context, token, phone string) error {
	return c.do(ctx, http.MethodPost, "/auth/accept-tnc", token, map[string]string{"phone": phone}, nil)
}

func (c *Client) GetProfile(ctx context.Context, token string) (*User, error) {
	var out struct {
		User *User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/profile", token, nil, &out); err != nil {
		return nil, err
	}
	if out.User == nil {
		return &User{}, nil
	}
	return out.User, nil
}

// ProfileUpdate carries the editable profile fields. Nil fields are left
// untouched by the backend.
type ProfileUpdate struct {
	Name       *string `json:"name,omitempty"`
	Email      *string `json:"email,omitempty"`
	Age        *int    `json:"age,omitempty"`
	Gender     *string `json:"gender,omitempty"`
	BloodGroup *string `json:"bloodGroup,omitempty"`
}

func (c *Client) UpdateProfile(ctx context.Context, token string, upd ProfileUpdate) (*User, error) {
	var out struct {
		User *User `json:"user"`
	}
	if err := c.do(ctx, http.MethodPut, "/auth/profile", token, upd, &out); err != nil {
		return nil, err
	}
	if out.User == nil {
		return &User{}, nil
	}
	return out.User, nil
}

// -- Doctor auth --

func (c *Client) DoctorSendOTP(ctx context.Context, phone string) error {
	return c.do(ctx, http.MethodPost, "/doctor/auth/send-otp", "", map[string]string{"phone": phone}, nil)
}

func (c *Client) DoctorVerifyOTP(ctx context.Context, phone, otp string) (*AuthResult, error) {
	var out AuthResult
	body := map[string]string{"phone": phone, "otp": otp}
	if err := c.do(ctx, http.MethodPost, "/doctor/auth/verify-otp", "", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DoctorAcceptTnC(ctx context.Context, token, phone string) error {
	return c.do(ctx, http.MethodPost, "/doctor/auth/accept-tnc", token, map[string]string{"phone": phone}, nil)
}

func (c *Client) DoctorRegister(ctx context.Context, req DoctorRegisterRequest) (*AuthResult, error) {
	var out AuthResult
	if err := c.do(ctx, http.MethodPost, "/doctor/auth/register", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
