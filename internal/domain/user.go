package domain

import "time"

// User is an account provisioned through federated sign-in. There is no local
// password credential on the product path; PasswordHash stays empty unless an
// operator seeds one out of band.
type User struct {
	ID           string
	GoogleID     string
	Email        string
	FullName     string
	AvatarURL    string
	PasswordHash string
	Disabled     bool
	JoinedAt     time.Time
}

// Identity is the verified result of an external identity assertion. It is
// never persisted by the auth core.
type Identity struct {
	ExternalID string
	Email      string
	Name       string
	Picture    string
}
