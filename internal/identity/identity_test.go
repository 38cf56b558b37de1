package identity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	claim, err := Normalize(Profile{
		SubjectID:    "42",
		Name:         "Ann Lee",
		Email:        "Ann@Acme.com",
		Picture:      "http://x/p.png",
		HostedDomain: "acme.com",
	})
	require.NoError(t, err)
	require.Equal(t, "acme.com", claim.OrgDomain)
	require.Equal(t, "42", claim.SubjectID)
	require.Equal(t, "Ann Lee", claim.Name)
	require.Equal(t, "ann@acme.com", claim.Email)
	require.Equal(t, "http://x/p.png", claim.AvatarURL)
	require.Equal(t, "Acme", claim.TeamName)
	require.Equal(t, "https://logo.clearbit.com/acme.com", claim.TeamAvatarURL)
}

func TestNormalizeMissingHostedDomain(t *testing.T) {
	for _, hd := range []string{"", "   "} {
		_, err := Normalize(Profile{SubjectID: "42", Email: "a@b.com", HostedDomain: hd})
		require.ErrorIs(t, err, ErrIneligible)
	}
}

func TestNormalizeMissingSubject(t *testing.T) {
	_, err := Normalize(Profile{HostedDomain: "acme.com"})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrIneligible)
}

func TestNormalizeTeamNameCapitalization(t *testing.T) {
	cases := map[string]string{
		"acme.com":       "Acme",
		"ACME.COM":       "Acme",
		"sub.domain.org": "Sub",
		"x.io":           "X",
	}
	for domain, want := range cases {
		claim, err := Normalize(Profile{SubjectID: "1", HostedDomain: domain})
		require.NoError(t, err)
		require.Equal(t, want, claim.TeamName, "domain %s", domain)
	}
}
