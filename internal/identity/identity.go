package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrIneligible marks identities that cannot be provisioned under
// domain-based tenancy. It is a terminal flow outcome, not a fault;
// callers route it with errors.Is to a soft-decline response.
var ErrIneligible = errors.New("identity: not eligible for domain-based tenancy")

// Profile is the raw, already-verified payload returned by an external
// identity provider after a successful handshake.
type Profile struct {
	SubjectID    string
	Name         string
	Email        string
	Picture      string
	HostedDomain string
}

// Claim is the normalized identity assertion derived from a Profile.
// TeamName and TeamAvatarURL are defaults consumed only when a new team
// is created; they never overwrite an existing team.
type Claim struct {
	OrgDomain     string
	SubjectID     string
	Name          string
	Email         string
	AvatarURL     string
	TeamName      string
	TeamAvatarURL string
}

// HandshakeClient exchanges an authorization code for a verified Profile.
// The sign-in core trusts the returned payload.
type HandshakeClient interface {
	AuthCodeURL(state, nonce, codeVerifier string) string
	Exchange(ctx context.Context, code, codeVerifier string) (*Profile, error)
}

const logoService = "https://logo.clearbit.com"

// Normalize maps a raw provider profile into a Claim. Profiles without a
// hosted organization domain yield ErrIneligible before any persistence
// is attempted.
func Normalize(profile Profile) (Claim, error) {
	domain := strings.ToLower(strings.TrimSpace(profile.HostedDomain))
	if domain == "" {
		return Claim{}, ErrIneligible
	}
	subject := strings.TrimSpace(profile.SubjectID)
	if subject == "" {
		return Claim{}, fmt.Errorf("normalize profile: %w", errMissingSubject)
	}

	return Claim{
		OrgDomain:     domain,
		SubjectID:     subject,
		Name:          strings.TrimSpace(profile.Name),
		Email:         strings.ToLower(strings.TrimSpace(profile.Email)),
		AvatarURL:     strings.TrimSpace(profile.Picture),
		TeamName:      defaultTeamName(domain),
		TeamAvatarURL: logoService + "/" + domain,
	}, nil
}

var errMissingSubject = errors.New("identity: subject id missing")

// defaultTeamName derives a display name from the first label of the
// organization domain: "acme.com" becomes "Acme".
func defaultTeamName(domain string) string {
	label, _, _ := strings.Cut(domain, ".")
	runes := []rune(label)
	if len(runes) == 0 {
		return label
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
