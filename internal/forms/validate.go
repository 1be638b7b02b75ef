package forms

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)
	otpPattern   = regexp.MustCompile(`^\d{6}$`)
)

// Field names used in validation errors.
const (
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldConfirmPassword = "confirmPassword"
	FieldOTP             = "otp"
	FieldTerms           = "terms"
	FieldSubmit          = "submit"
)

// ValidateEmail returns the message id of the first failure, or "".
func ValidateEmail(email string) string {
	switch {
	case strings.TrimSpace(email) == "":
		return "email.required"
	case !emailPattern.MatchString(email):
		return "email.invalid"
	}
	return ""
}

// ValidatePassword applies the full strength rule used for new passwords.
func ValidatePassword(pw string) string {
	if id := ValidateLoginPassword(pw); id != "" {
		return id
	}
	var upper, lower, digit bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r) && r <= unicode.MaxASCII:
			upper = true
		case unicode.IsLower(r) && r <= unicode.MaxASCII:
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		}
	}
	switch {
	case !upper:
		return "password.no_upper"
	case !lower:
		return "password.no_lower"
	case !digit:
		return "password.no_digit"
	}
	return ""
}

// ValidateLoginPassword only checks presence and length so older accounts can sign in.
func ValidateLoginPassword(pw string) string {
	switch {
	case pw == "":
		return "password.required"
	case len(pw) < 6:
		return "password.short"
	}
	return ""
}

func ValidateOTP(otp string) string {
	switch {
	case otp == "":
		return "otp.required"
	case !otpPattern.MatchString(otp):
		return "otp.invalid"
	}
	return ""
}

// fieldErrors collects non-empty message ids by field.
type fieldErrors map[string]string

func (f fieldErrors) check(field, msgID string) {
	if msgID != "" {
		f[field] = msgID
	}
}
