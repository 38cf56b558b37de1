package domain

import "time"

// SessionCredential is the signed proof of authentication issued after a
// successful sign-in. It is never persisted; transport is the caller's job.
type SessionCredential struct {
	Token     string
	UserID    int64
	ExpiresAt time.Time
}
