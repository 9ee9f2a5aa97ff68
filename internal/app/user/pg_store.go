package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"relaychat/internal/app/db"
	"relaychat/internal/pkg/logx"
	"relaychat/internal/pkg/randx"
)

const userColumns = `id, username, email, password_hash, avatar, notifications, is_verified`

// PGStore implements Store on PostgreSQL.
type PGStore struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPGStore returns a Store backed by pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{
		pool:   pool,
		logger: logx.Component("user_store"),
	}
}

type userRow struct {
	User
	passwordHash string
}

func scanUser(row pgx.Row) (*userRow, error) {
	var r userRow
	err := row.Scan(
		&r.ID,
		&r.Username,
		&r.Email,
		&r.passwordHash,
		&r.Avatar,
		&r.Notifications,
		&r.IsVerified,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

// Register implements Store.
func (s *PGStore) Register(ctx context.Context, username, email, passwordHash string) (*User, error) {
	token, err := randx.VerificationToken()
	if err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (id, username, email, password_hash, verification_token)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+userColumns,
		randx.ID(), username, NormalizeEmail(email), passwordHash, token,
	)

	r, err := scanUser(row)
	if err != nil {
		if constraint, ok := db.UniqueViolation(err); ok {
			if constraint == "users_username_key" {
				return nil, ErrUsernameTaken
			}
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	s.logger.Info().Str("user_id", r.ID).Str("username", r.Username).Msg("User registered")

	u := r.User
	u.VerificationToken = token
	return &u, nil
}

// Verify implements Store.
func (s *PGStore) Verify(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrInvalidVerificationToken
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE users
		SET is_verified = TRUE, verification_token = NULL
		WHERE verification_token = $1
		RETURNING `+userColumns,
		token,
	)

	r, err := scanUser(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidVerificationToken
		}
		return nil, fmt.Errorf("verify user: %w", err)
	}

	s.logger.Info().Str("user_id", r.ID).Msg("User email verified")
	return &r.User, nil
}

// Authenticate implements Store.
func (s *PGStore) Authenticate(ctx context.Context, email, password string) (*User, error) {
	r, err := s.byEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(r.passwordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if !r.IsVerified {
		return nil, ErrNotVerified
	}

	return &r.User, nil
}

// ByEmail implements Store.
func (s *PGStore) ByEmail(ctx context.Context, email string) (*User, error) {
	r, err := s.byEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return &r.User, nil
}

func (s *PGStore) byEmail(ctx context.Context, email string) (*userRow, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, NormalizeEmail(email))

	r, err := scanUser(row)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("select user by email: %w", err)
	}
	return r, err
}

// WithNotificationsEnabled implements Store.
func (s *PGStore) WithNotificationsEnabled(ctx context.Context) ([]User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE notifications AND is_verified
		ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("select notification recipients: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		r, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification recipient: %w", err)
		}
		users = append(users, r.User)
	}

	return users, rows.Err()
}

// UpdateAvatar implements Store.
func (s *PGStore) UpdateAvatar(ctx context.Context, email, avatar string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET avatar = $2 WHERE email = $1`, NormalizeEmail(email), avatar)
	if err != nil {
		return fmt.Errorf("update avatar: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
