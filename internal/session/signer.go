package session

import (
	"fmt"
	"strconv"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"

	"github.com/smallbiznis/teamdocs-auth/internal/domain"
)

// Claims carry the custom JWT payload for session credentials.
type Claims struct {
	TeamID int64  `json:"team_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Admin  bool   `json:"admin"`
}

// Signer issues and validates session credentials. Each credential has a
// fixed validity window; issuing one never invalidates another, so a user
// may hold multiple concurrent sessions.
type Signer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	kid    string
}

// NewSigner constructs a Signer from the process-wide session secret.
func NewSigner(secret []byte, issuer string, ttl time.Duration) *Signer {
	return &Signer{secret: secret, issuer: issuer, ttl: ttl, kid: uuid.NewString()}
}

// Issue produces a signed credential asserting the user's id. It has no
// side effects on team or user state.
func (s *Signer) Issue(user domain.User) (domain.SessionCredential, error) {
	signer, err := gojose.NewSigner(
		gojose.SigningKey{Algorithm: gojose.HS256, Key: s.secret},
		(&gojose.SignerOptions{}).WithType("JWT").WithHeader("kid", s.kid),
	)
	if err != nil {
		return domain.SessionCredential{}, fmt.Errorf("new signer: %w", err)
	}

	now := time.Now().UTC()
	expiresAt := now.Add(s.ttl)
	std := gojwt.Claims{
		ID:        uuid.NewString(),
		Subject:   strconv.FormatInt(user.ID, 10),
		Issuer:    s.issuer,
		IssuedAt:  gojwt.NewNumericDate(now),
		NotBefore: gojwt.NewNumericDate(now),
		Expiry:    gojwt.NewNumericDate(expiresAt),
	}
	custom := Claims{
		TeamID: user.TeamID,
		Email:  user.Email,
		Name:   user.Name,
		Admin:  user.IsAdmin,
	}

	token, err := gojwt.Signed(signer).Claims(std).Claims(custom).Serialize()
	if err != nil {
		return domain.SessionCredential{}, fmt.Errorf("serialize session token: %w", err)
	}

	return domain.SessionCredential{Token: token, UserID: user.ID, ExpiresAt: expiresAt}, nil
}

// Validate verifies the token signature and claims and returns the user id
// it asserts.
func (s *Signer) Validate(token string) (int64, *Claims, error) {
	parsed, err := gojwt.ParseSigned(token, []gojose.SignatureAlgorithm{gojose.HS256})
	if err != nil {
		return 0, nil, fmt.Errorf("parse session token: %w", domain.ErrTokenInvalid)
	}

	var std gojwt.Claims
	var custom Claims
	if err := parsed.Claims(s.secret, &std, &custom); err != nil {
		return 0, nil, fmt.Errorf("verify session token: %w", domain.ErrTokenInvalid)
	}
	if err := std.Validate(gojwt.Expected{Issuer: s.issuer, Time: time.Now().UTC()}); err != nil {
		return 0, nil, fmt.Errorf("validate session claims: %w", domain.ErrTokenInvalid)
	}

	userID, err := strconv.ParseInt(std.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, nil, fmt.Errorf("subject claim: %w", domain.ErrTokenInvalid)
	}
	return userID, &custom, nil
}
