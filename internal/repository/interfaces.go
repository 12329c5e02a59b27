package repository

import (
	"context"
	"errors"
	"time"

	"github.com/theseyan/418-nits-hacks/internal/domain"
)

var (
	// ErrUserNotFound signals a missing user row.
	ErrUserNotFound = errors.New("repository: user not found")
	// ErrTokenExists signals an insert with a token id already in the ledger.
	ErrTokenExists = errors.New("repository: refresh token id already exists")
	// ErrTokenStale signals that the old row named in a rotation was already
	// gone, so the rotation inserted nothing.
	ErrTokenStale = errors.New("repository: refresh token no longer active")
	// ErrCodeNotFound signals a missing, expired, or already consumed
	// authorization code.
	ErrCodeNotFound = errors.New("repository: authorization code not found")
)

// UserRepository exposes persistence for user accounts.
type UserRepository interface {
	GetByGoogleID(ctx context.Context, googleID string) (domain.User, error)
	GetByID(ctx context.Context, id string) (domain.User, error)
	Create(ctx context.Context, user domain.User) (domain.User, error)
}

// RefreshTokenLedger is the persistent record of active refresh tokens. It is
// the sole authority on whether a signed refresh token is still live.
type RefreshTokenLedger interface {
	// CountActive returns the number of live entries for a user.
	CountActive(ctx context.Context, userID string) (int, error)
	// Insert adds a new entry; ErrTokenExists if the token id is taken.
	Insert(ctx context.Context, entry domain.RefreshTokenEntry) error
	// Exists reports whether the token id has a live entry.
	Exists(ctx context.Context, tokenID string) (bool, error)
	// RotateAtomic deletes oldTokenID and inserts entry as one atomic unit.
	// The delete is the precondition: when the old row is already gone the
	// whole operation aborts with ErrTokenStale and inserts nothing, so
	// concurrent rotations of the same token have at most one winner.
	RotateAtomic(ctx context.Context, oldTokenID string, entry domain.RefreshTokenEntry) error
	// RevokeFamily deletes every entry whose parent is parentTokenID,
	// including the family root itself.
	RevokeFamily(ctx context.Context, parentTokenID string) error
}

// AuthCodeStore holds one-time authorization codes between authorize and
// exchange.
type AuthCodeStore interface {
	// Put stores the record under its code for at most ttl.
	Put(ctx context.Context, record domain.AuthCodeRecord, ttl time.Duration) error
	// Take atomically removes and returns the record. At most one concurrent
	// Take for the same code succeeds; losers and lookups of expired or
	// unknown codes get ErrCodeNotFound.
	Take(ctx context.Context, code string) (domain.AuthCodeRecord, error)
}
