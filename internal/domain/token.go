package domain

import "time"

// RefreshTokenEntry is a row in the refresh-token ledger, the sole source of
// truth for whether a cryptographically valid refresh token is still live.
//
// ParentTokenID identifies the family root: the first token of a rotation
// chain. A root's parent is its own TokenID, so stored entries never have an
// empty parent and revoking a family by parent id removes the root too.
type RefreshTokenEntry struct {
	TokenID       string
	UserID        string
	ParentTokenID string
	IssuedAt      time.Time
}

// TokenPair is the access/refresh pair handed to clients.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
