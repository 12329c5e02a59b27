package domain

import "time"

// AuthCodeRecord is the ephemeral state bound to a one-time authorization
// code between authorize and exchange. Lookups past ExpiresAt are treated as
// not-found even if the backing store has not evicted the entry yet.
type AuthCodeRecord struct {
	Code          string    `json:"code"`
	ClientID      string    `json:"client_id"`
	UserID        string    `json:"user_id"`
	CodeChallenge string    `json:"code_challenge"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// Expired reports whether the record is past its TTL at the given instant.
func (r AuthCodeRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
