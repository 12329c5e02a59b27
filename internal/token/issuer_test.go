package token_test

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/theseyan/418-nits-hacks/internal/token"
)

func newTestIssuer(t *testing.T, accessTTL, refreshTTL time.Duration) *token.Issuer {
	t.Helper()
	accessKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	refreshKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return token.NewIssuer(accessKey, refreshKey, accessTTL, refreshTTL)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	issuer := newTestIssuer(t, time.Minute, time.Hour)

	signed, err := issuer.IssueAccessToken("user-1")
	require.NoError(t, err)

	userID, err := issuer.VerifyAccessToken(signed)
	require.NoError(t, err)
	require.Equal(t, "user-1", userID)
}

func TestAccessTokenExpiry(t *testing.T) {
	issuer := newTestIssuer(t, -time.Minute, time.Hour)

	signed, err := issuer.IssueAccessToken("user-1")
	require.NoError(t, err)

	_, err = issuer.VerifyAccessToken(signed)
	require.Error(t, err)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	issuer := newTestIssuer(t, time.Minute, time.Hour)

	signed, tokenID, err := issuer.IssueRefreshToken("user-1", "")
	require.NoError(t, err)
	require.NotEmpty(t, tokenID)

	claims, err := issuer.VerifyRefreshToken(signed)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
	require.Equal(t, tokenID, claims.TokenID)
	require.Empty(t, claims.ParentTokenID)
}

func TestRefreshTokenCarriesParent(t *testing.T) {
	issuer := newTestIssuer(t, time.Minute, time.Hour)

	signed, _, err := issuer.IssueRefreshToken("user-1", "root-id")
	require.NoError(t, err)

	claims, err := issuer.VerifyRefreshToken(signed)
	require.NoError(t, err)
	require.Equal(t, "root-id", claims.ParentTokenID)
}

func TestTokenTypesAreNotInterchangeable(t *testing.T) {
	issuer := newTestIssuer(t, time.Minute, time.Hour)

	access, err := issuer.IssueAccessToken("user-1")
	require.NoError(t, err)
	refresh, _, err := issuer.IssueRefreshToken("user-1", "")
	require.NoError(t, err)

	_, err = issuer.VerifyAccessToken(refresh)
	require.Error(t, err)
	_, err = issuer.VerifyRefreshToken(access)
	require.Error(t, err)
}

func TestVerifyRefreshTokenRejectsExpired(t *testing.T) {
	issuer := newTestIssuer(t, time.Minute, -time.Minute)

	signed, _, err := issuer.IssueRefreshToken("user-1", "")
	require.NoError(t, err)

	_, err = issuer.VerifyRefreshToken(signed)
	require.Error(t, err)

	// Logout still has to resolve the family of an expired token.
	claims, err := issuer.DecodeRefreshToken(signed)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	issuer := newTestIssuer(t, time.Minute, time.Hour)
	other := newTestIssuer(t, time.Minute, time.Hour)

	signed, err := other.IssueAccessToken("user-1")
	require.NoError(t, err)

	_, err = issuer.VerifyAccessToken(signed)
	require.Error(t, err)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	issuer := newTestIssuer(t, time.Minute, time.Hour)

	_, err := issuer.VerifyAccessToken("not.a.jwt")
	require.Error(t, err)
	_, err = issuer.VerifyRefreshToken("")
	require.Error(t, err)
}
