// Package validate holds the client-side input checks that must pass before
// any call reaches the clinical backend.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Error is an input problem reported to the caller verbatim.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

// Errorf builds an input Error.
func Errorf(format string, args ...any) error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// IsInvalid reports whether err is (or wraps) an input Error.
func IsInvalid(err error) bool {
	var ve *Error
	return errors.As(err, &ve)
}

var (
	ErrInvalidPhone = &Error{Message: "please enter a valid 10-digit phone number"}
	ErrInvalidOTP   = &Error{Message: "please enter the 6-digit OTP"}
	ErrInvalidMPIN  = &Error{Message: "MPIN must be exactly 6 digits"}
)

var (
	phonePattern = regexp.MustCompile(`^\d{10}$`)
	sixDigits    = regexp.MustCompile(`^\d{6}$`)
)

// Phone reports whether s is exactly ten ASCII digits.
func Phone(s string) bool {
	return phonePattern.MatchString(s)
}

// OTP reports whether s is exactly six ASCII digits.
func OTP(s string) bool {
	return sixDigits.MatchString(s)
}

// MPIN reports whether s is exactly six ASCII digits.
func MPIN(s string) bool {
	return sixDigits.MatchString(s)
}

// NormalizePhone accepts either a bare 10-digit number or one already
// carrying countryCode, and returns the number with countryCode prefixed.
func NormalizePhone(countryCode, raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if countryCode != "" {
		s = strings.TrimPrefix(s, countryCode)
	}
	if !Phone(s) {
		return "", ErrInvalidPhone
	}
	return countryCode + s, nil
}

// LocalPhone strips countryCode from a stored phone number.
func LocalPhone(countryCode, phone string) string {
	if countryCode == "" {
		return phone
	}
	return strings.TrimPrefix(phone, countryCode)
}
