package service

import "errors"

// Error taxonomy surfaced to the HTTP boundary. Unknown email and wrong
// password deliberately share ErrInvalidCredentials so a caller cannot
// enumerate accounts.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSSOOnlyAccount     = errors.New("user configured for SSO. Use Microsoft login")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenMalformed     = errors.New("token malformed")
	ErrSessionNotCached   = errors.New("token expired or invalid")
	ErrForbidden          = errors.New("forbidden")
	ErrConsentRequired    = errors.New("user consent required")
	ErrNotFound           = errors.New("not found")
)
