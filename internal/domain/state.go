package domain

import "time"

// SigninState captures the state/nonce/pkce tuple persisted between the
// start of the handshake and the provider callback.
type SigninState struct {
	State        string
	Nonce        string
	CodeVerifier string
	ReturnTo     string
	CreatedAt    time.Time
}
