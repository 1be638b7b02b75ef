package api

import (
	"strings"

	"tourprism/pkg/errors"
)

// knownMessages maps backend messages (lower-cased) to friendly message ids.
var knownMessages = map[string]string{
	"invalid credentials":                "error.invalid_credentials",
	"invalid email or password":          "error.invalid_credentials",
	"user already exists":                "error.user_exists",
	"email already registered":           "error.user_exists",
	"user already exists with this email": "error.user_exists",
	"user not found":                     "error.user_not_found",
	"invalid otp":                        "error.invalid_otp",
	"invalid or expired otp":             "error.invalid_otp",
	"otp expired":                        "error.otp_expired",
	"otp has expired":                    "error.otp_expired",
	"invalid token":                      "error.session_expired",
	"no token provided":                  "error.session_expired",
	"token expired":                      "error.session_expired",
	"too many requests":                  "error.rate_limited",
}

// KnownMessageID returns the message id for a known backend message, or "".
func KnownMessageID(msg string) string {
	return knownMessages[strings.ToLower(strings.TrimSpace(msg))]
}

// Describe picks what to show for err: a message id, or the raw backend text when the
// message is unknown. fallback is used when neither is available.
func Describe(err error, fallback string) (msgID, raw string) {
	if err == nil {
		return "", ""
	}
	if id := errors.GetMsgID(err); id != "" {
		return id, ""
	}
	if errors.IsKind(err, errors.KindRejected) {
		if m := errors.GetMessage(err); m != "" {
			return "", m
		}
	}
	return fallback, ""
}

// SessionRejected reports a 401 or a rejection whose message means the token is no good.
func SessionRejected(err error) bool {
	return errors.IsKind(err, errors.KindUnauthorized) || errors.GetMsgID(err) == "error.session_expired"
}
