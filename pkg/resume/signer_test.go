package resume

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignerIssueAndParse(t *testing.T) {
	signer := NewSigner("secret", time.Hour)
	token, expiresAt, err := signer.Issue("billing")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.False(t, expiresAt.IsZero())

	area, err := signer.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "billing", area)
}

func TestSignerExpired(t *testing.T) {
	signer := NewSigner("secret", time.Minute)
	base := time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC)
	signer.now = func() time.Time { return base }
	token, _, err := signer.Issue("documents")
	require.NoError(t, err)

	signer.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, err = signer.Parse(token)
	require.ErrorIs(t, err, ErrExpired)
}

func TestSignerRejectsTampering(t *testing.T) {
	signer := NewSigner("secret", time.Hour)
	token, _, err := signer.Issue("grades")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	parts[0] = "YWRtaW5fZGFzaGJvYXJk" // admin_dashboard
	_, err = signer.Parse(strings.Join(parts, "."))
	require.ErrorIs(t, err, ErrSignature)

	other := NewSigner("other", time.Hour)
	_, err = other.Parse(token)
	require.ErrorIs(t, err, ErrSignature)

	_, err = signer.Parse("not-a-token")
	require.ErrorIs(t, err, ErrMalformed)
}

func TestSignerRequiresSecret(t *testing.T) {
	_, _, err := NewSigner("", time.Hour).Issue("billing")
	require.Error(t, err)
}
