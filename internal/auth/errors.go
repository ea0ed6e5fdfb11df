package auth

import "errors"

// Auth error codes reported by the provider
const (
	CodeEmailInUse      = "email-already-in-use"
	CodeInvalidEmail    = "invalid-email"
	CodeWeakPassword    = "weak-password"
	CodeUserNotFound    = "user-not-found"
	CodeWrongPassword   = "wrong-password"
	CodeTooManyRequests = "too-many-requests"
)

const genericMessage = "Something went wrong, please try again"

var messages = map[string]string{
	CodeEmailInUse:      "This email address is already in use",
	CodeInvalidEmail:    "Invalid email address",
	CodeWeakPassword:    "Password must be at least 6 characters",
	CodeUserNotFound:    "No account found for this email",
	CodeWrongPassword:   "Incorrect password",
	CodeTooManyRequests: "Too many attempts, try again later",
}

// Error is a provider failure with a user-facing message
type Error struct {
	Code string
	Err  error
}

func newError(code string, err error) *Error {
	return &Error{Code: code, Err: err}
}

func (e *Error) Error() string {
	return Message(e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Message returns the display text for a code
func Message(code string) string {
	if m, ok := messages[code]; ok {
		return m
	}
	return genericMessage
}

// CodeOf extracts the auth code from err, or "" if it carries none
func CodeOf(err error) string {
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr.Code
	}
	return ""
}
