package resolver

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jinzhu/copier"
	"golang.org/x/crypto/bcrypt"

	"github.com/cmskit/oidc-login/pkg/provider"
	"github.com/cmskit/oidc-login/pkg/userstore"
)

// Service maps a validated external identity to a local user record,
// creating one if absent. Resolution is find-by-email, else create.
type Service struct {
	store      userstore.Store
	collection string
	bcryptCost int
}

// Option is a function that configures a resolver Service
type Option func(*Service)

// WithBcryptCost sets the cost used to hash the placeholder credential
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.bcryptCost = cost
	}
}

// NewService creates a resolver for the given user collection
func NewService(store userstore.Store, collection string, opts ...Option) *Service {
	service := &Service{
		store:      store,
		collection: collection,
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Resolve finds the local user for the given identity claims, creating a new
// account on first login. The boolean reports whether a new account was
// created. Existing accounts are returned unchanged. Safe under concurrent
// logins for the same new email: a losing create retries the find, so at
// most one account exists per email.
func (s *Service) Resolve(ctx context.Context, info *provider.UserInfo) (userstore.User, bool, error) {
	if info == nil || info.Email == "" {
		return userstore.User{}, false, fmt.Errorf("identity claims missing email")
	}

	user, err := s.store.FindByEmail(ctx, s.collection, info.Email)
	if err == nil {
		slog.Info("Existing user found for external login", "email", info.Email, "user_id", user.ID)
		return user, false, nil
	}
	if !errors.Is(err, userstore.ErrUserNotFound) {
		return userstore.User{}, false, fmt.Errorf("failed to look up user: %w", err)
	}

	params, err := s.newUserParams(info)
	if err != nil {
		return userstore.User{}, false, err
	}

	user, err = s.store.Create(ctx, params)
	if errors.Is(err, userstore.ErrUserAlreadyExists) {
		// A concurrent login for the same email won the create
		user, err = s.store.FindByEmail(ctx, s.collection, info.Email)
		if err != nil {
			return userstore.User{}, false, fmt.Errorf("failed to find user after create conflict: %w", err)
		}
		return user, false, nil
	}
	if err != nil {
		return userstore.User{}, false, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("Created new user for external login", "email", info.Email, "user_id", user.ID)
	return user, true, nil
}

// newUserParams populates create params from identity claims and attaches a
// per-user random placeholder credential. The credential satisfies the
// host's local-credential auth but is never used: login stays federated, and
// the plaintext is discarded after hashing.
func (s *Service) newUserParams(info *provider.UserInfo) (userstore.CreateParams, error) {
	params := userstore.CreateParams{Collection: s.collection}
	if err := copier.Copy(&params, info); err != nil {
		return userstore.CreateParams{}, fmt.Errorf("failed to copy identity claims: %w", err)
	}

	credential, err := generatePlaceholderCredential()
	if err != nil {
		return userstore.CreateParams{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(credential), s.bcryptCost)
	if err != nil {
		return userstore.CreateParams{}, fmt.Errorf("failed to hash placeholder credential: %w", err)
	}
	params.PasswordHash = string(hash)

	return params, nil
}

// generatePlaceholderCredential returns a random unusable credential so
// federated accounts never share a password
func generatePlaceholderCredential() (string, error) {
	bytes := make([]byte, 24)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate placeholder credential: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}
