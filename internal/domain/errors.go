package domain

import "errors"

var (
	// ErrInvalidRequest indicates caller input validation errors.
	ErrInvalidRequest = errors.New("signin: invalid request")
	// ErrInvalidState indicates the sign-in state is missing, expired, or mismatched.
	ErrInvalidState = errors.New("signin: invalid state")
	// ErrTokenInvalid indicates a malformed or unverifiable session token.
	ErrTokenInvalid = errors.New("signin: token invalid")
)
