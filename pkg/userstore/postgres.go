package userstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// uniqueViolation is the SQLSTATE raised when the (collection, email) unique
// index rejects a duplicate insert
const uniqueViolation = "23505"

// PostgresStore implements Store backed by PostgreSQL. Duplicate-email
// creation safety comes from the unique index; concurrent creates surface as
// ErrUserAlreadyExists for the caller's retry-find.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a user store on the given connection pool
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Schema is the DDL the store expects. Exposed so tests and setup tooling
// can create the table.
const Schema = `
CREATE TABLE IF NOT EXISTS cms_users (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	collection TEXT NOT NULL,
	email TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	given_name TEXT NOT NULL DEFAULT '',
	family_name TEXT NOT NULL DEFAULT '',
	picture TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL,
	custom JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (collection, email)
);
`

// FindByEmail returns the user with the given email in the collection
func (s *PostgresStore) FindByEmail(ctx context.Context, collection, email string) (User, error) {
	query := `
		SELECT id, collection, email, name, given_name, family_name, picture, password_hash, custom, created_at
		FROM cms_users
		WHERE collection = $1 AND email = $2
	`

	var user User
	err := s.db.QueryRow(ctx, query, collection, email).Scan(
		&user.ID,
		&user.Collection,
		&user.Email,
		&user.Name,
		&user.GivenName,
		&user.FamilyName,
		&user.Picture,
		&user.PasswordHash,
		&user.Custom,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("failed to find user by email: %w", err)
	}

	return user, nil
}

// Create inserts a new user record
func (s *PostgresStore) Create(ctx context.Context, params CreateParams) (User, error) {
	query := `
		INSERT INTO cms_users (id, collection, email, name, given_name, family_name, picture, password_hash, custom)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, collection, email, name, given_name, family_name, picture, password_hash, custom, created_at
	`

	custom := params.Custom
	if custom == nil {
		custom = map[string]any{}
	}

	var user User
	err := s.db.QueryRow(ctx, query,
		uuid.New(),
		params.Collection,
		params.Email,
		params.Name,
		params.GivenName,
		params.FamilyName,
		params.Picture,
		params.PasswordHash,
		custom,
	).Scan(
		&user.ID,
		&user.Collection,
		&user.Email,
		&user.Name,
		&user.GivenName,
		&user.FamilyName,
		&user.Picture,
		&user.PasswordHash,
		&user.Custom,
		&user.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return User{}, ErrUserAlreadyExists
		}
		return User{}, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// Login verifies the credential against the stored hash and mints an opaque
// session token
func (s *PostgresStore) Login(ctx context.Context, collection, email, credential string) (string, error) {
	user, err := s.FindByEmail(ctx, collection, email)
	if err != nil {
		return "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(credential)); err != nil {
		return "", ErrInvalidCredentials
	}

	return uuid.New().String(), nil
}
