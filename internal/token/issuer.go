// Package token mints and verifies the two signed token types of the auth
// core. Access and refresh tokens are signed with separate RSA key pairs so
// compromise of one cannot forge the other, and so a token of one type can
// never be replayed as the other.
package token

import (
	"crypto/rsa"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"

	"github.com/theseyan/418-nits-hacks/internal/apperr"
)

// RefreshClaims is the decoded payload of a refresh token. ParentTokenID is
// empty only for a root token as minted; callers substitute TokenID before
// persisting so ledger entries always carry a parent.
type RefreshClaims struct {
	UserID        string
	TokenID       string
	ParentTokenID string
	ExpiresAt     time.Time
}

type refreshPayload struct {
	ParentToken string `json:"parent_token,omitempty"`
}

// Issuer signs and verifies access and refresh tokens.
type Issuer struct {
	accessKey  *rsa.PrivateKey
	refreshKey *rsa.PrivateKey
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewIssuer constructs an Issuer from the two private keys. The corresponding
// public keys are derived for verification; private keys never leave this
// type.
func NewIssuer(accessKey, refreshKey *rsa.PrivateKey, accessTTL, refreshTTL time.Duration) *Issuer {
	return &Issuer{
		accessKey:  accessKey,
		refreshKey: refreshKey,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// AccessTTL exposes the configured access-token lifetime.
func (i *Issuer) AccessTTL() time.Duration { return i.accessTTL }

func signer(key *rsa.PrivateKey) (gojose.Signer, error) {
	return gojose.NewSigner(
		gojose.SigningKey{Algorithm: gojose.RS256, Key: key},
		(&gojose.SignerOptions{}).WithType("JWT"),
	)
}

// IssueAccessToken mints a short-lived access token for the user.
func (i *Issuer) IssueAccessToken(userID string) (string, error) {
	sig, err := signer(i.accessKey)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	claims := gojwt.Claims{
		Subject:  userID,
		IssuedAt: gojwt.NewNumericDate(now),
		Expiry:   gojwt.NewNumericDate(now.Add(i.accessTTL)),
	}

	return gojwt.Signed(sig).Claims(claims).Serialize()
}

// IssueRefreshToken mints a refresh token. parentTokenID is empty for a new
// family root; the freshly generated token id is returned alongside the
// signed string for the ledger entry.
func (i *Issuer) IssueRefreshToken(userID, parentTokenID string) (signed string, tokenID string, err error) {
	sig, err := signer(i.refreshKey)
	if err != nil {
		return "", "", err
	}

	tokenID = uuid.NewString()
	now := time.Now().UTC()
	claims := gojwt.Claims{
		Subject:  userID,
		ID:       tokenID,
		IssuedAt: gojwt.NewNumericDate(now),
		Expiry:   gojwt.NewNumericDate(now.Add(i.refreshTTL)),
	}
	payload := refreshPayload{ParentToken: parentTokenID}

	signed, err = gojwt.Signed(sig).Claims(claims).Claims(payload).Serialize()
	if err != nil {
		return "", "", err
	}
	return signed, tokenID, nil
}

// VerifyAccessToken checks signature and expiry and returns the user id.
func (i *Issuer) VerifyAccessToken(raw string) (string, error) {
	parsed, err := gojwt.ParseSigned(raw, []gojose.SignatureAlgorithm{gojose.RS256})
	if err != nil {
		return "", apperr.Unauthorized("Invalid or expired access token").WithCause(err)
	}

	var std gojwt.Claims
	if err := parsed.Claims(&i.accessKey.PublicKey, &std); err != nil {
		return "", apperr.Unauthorized("Invalid or expired access token").WithCause(err)
	}
	if err := std.Validate(gojwt.Expected{Time: time.Now()}); err != nil {
		return "", apperr.Unauthorized("Invalid or expired access token").WithCause(err)
	}

	return std.Subject, nil
}

// VerifyRefreshToken checks signature and expiry only. Ledger membership is
// the orchestrator's concern.
func (i *Issuer) VerifyRefreshToken(raw string) (RefreshClaims, error) {
	claims, err := i.decodeRefresh(raw)
	if err != nil {
		return RefreshClaims{}, err
	}
	if !time.Now().Before(claims.ExpiresAt) {
		return RefreshClaims{}, apperr.Unauthorized("Invalid, malformed or expired refresh token")
	}
	return claims, nil
}

// DecodeRefreshToken checks the signature but tolerates an elapsed expiry.
// Logout accepts time-expired tokens so clients can still name the family
// they want revoked.
func (i *Issuer) DecodeRefreshToken(raw string) (RefreshClaims, error) {
	return i.decodeRefresh(raw)
}

func (i *Issuer) decodeRefresh(raw string) (RefreshClaims, error) {
	parsed, err := gojwt.ParseSigned(raw, []gojose.SignatureAlgorithm{gojose.RS256})
	if err != nil {
		return RefreshClaims{}, apperr.Unauthorized("Invalid, malformed or expired refresh token").WithCause(err)
	}

	var std gojwt.Claims
	var payload refreshPayload
	if err := parsed.Claims(&i.refreshKey.PublicKey, &std, &payload); err != nil {
		return RefreshClaims{}, apperr.Unauthorized("Invalid, malformed or expired refresh token").WithCause(err)
	}

	claims := RefreshClaims{
		UserID:        std.Subject,
		TokenID:       std.ID,
		ParentTokenID: payload.ParentToken,
	}
	if std.Expiry != nil {
		claims.ExpiresAt = std.Expiry.Time()
	}
	return claims, nil
}
