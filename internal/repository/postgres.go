package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/theseyan/418-nits-hacks/internal/domain"
)

// Compile-time interface assertions.
var (
	_ UserRepository     = (*PostgresUserRepo)(nil)
	_ RefreshTokenLedger = (*PostgresTokenLedger)(nil)
)

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// PostgresUserRepo implements UserRepository on pgxpool.
type PostgresUserRepo struct {
	db *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{db: pool}
}

const selectUserSQL = `SELECT id, google_id, email, full_name, avatar_url, password_hash, disabled, joined_at FROM users`

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.GoogleID, &u.Email, &u.FullName, &u.AvatarURL, &u.PasswordHash, &u.Disabled, &u.JoinedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

func (r *PostgresUserRepo) GetByGoogleID(ctx context.Context, googleID string) (domain.User, error) {
	row := r.db.QueryRow(ctx, selectUserSQL+` WHERE google_id = $1 LIMIT 1`, googleID)
	return scanUser(row)
}

func (r *PostgresUserRepo) GetByID(ctx context.Context, id string) (domain.User, error) {
	row := r.db.QueryRow(ctx, selectUserSQL+` WHERE id = $1 LIMIT 1`, id)
	return scanUser(row)
}

func (r *PostgresUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	const query = `
INSERT INTO users (id, google_id, email, full_name, avatar_url, password_hash, disabled, joined_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, google_id, email, full_name, avatar_url, password_hash, disabled, joined_at`

	row := r.db.QueryRow(ctx, query,
		user.ID,
		user.GoogleID,
		user.Email,
		user.FullName,
		user.AvatarURL,
		user.PasswordHash,
		user.Disabled,
		user.JoinedAt,
	)
	created, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

// PostgresTokenLedger implements RefreshTokenLedger on pgxpool. Each method
// is a single serializable unit against the database; RotateAtomic uses an
// explicit transaction keyed on the old row still being present.
type PostgresTokenLedger struct {
	db *pgxpool.Pool
}

func NewPostgresTokenLedger(pool *pgxpool.Pool) *PostgresTokenLedger {
	return &PostgresTokenLedger{db: pool}
}

func (l *PostgresTokenLedger) CountActive(ctx context.Context, userID string) (int, error) {
	var count int
	err := l.db.QueryRow(ctx, `SELECT COUNT(*) FROM refresh_tokens WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active tokens: %w", err)
	}
	return count, nil
}

const insertTokenSQL = `
INSERT INTO refresh_tokens (token_id, user_id, parent_token_id, issued_at)
VALUES ($1, $2, $3, $4)`

func (l *PostgresTokenLedger) Insert(ctx context.Context, entry domain.RefreshTokenEntry) error {
	_, err := l.db.Exec(ctx, insertTokenSQL, entry.TokenID, entry.UserID, entry.ParentTokenID, entry.IssuedAt)
	if isUniqueViolation(err) {
		return ErrTokenExists
	}
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

func (l *PostgresTokenLedger) Exists(ctx context.Context, tokenID string) (bool, error) {
	var exists bool
	err := l.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM refresh_tokens WHERE token_id = $1)`, tokenID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("lookup refresh token: %w", err)
	}
	return exists, nil
}

func (l *PostgresTokenLedger) RotateAtomic(ctx context.Context, oldTokenID string, entry domain.RefreshTokenEntry) error {
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin rotation: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM refresh_tokens WHERE token_id = $1`, oldTokenID)
	if err != nil {
		return fmt.Errorf("delete rotated token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Old row already gone: a concurrent rotation or revocation won.
		return ErrTokenStale
	}

	if _, err := tx.Exec(ctx, insertTokenSQL, entry.TokenID, entry.UserID, entry.ParentTokenID, entry.IssuedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrTokenExists
		}
		return fmt.Errorf("insert rotated token: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit rotation: %w", err)
	}
	return nil
}

func (l *PostgresTokenLedger) RevokeFamily(ctx context.Context, parentTokenID string) error {
	if _, err := l.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE parent_token_id = $1`, parentTokenID); err != nil {
		return fmt.Errorf("revoke token family: %w", err)
	}
	return nil
}
