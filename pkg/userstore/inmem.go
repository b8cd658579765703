package userstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// InMemoryStore implements Store using in-memory storage. Safe for
// concurrent use; Create holds the write lock across the existence check so
// concurrent identical-email creations cannot both succeed.
type InMemoryStore struct {
	mu           sync.RWMutex
	users        map[uuid.UUID]User
	usersByEmail map[emailKey]uuid.UUID
}

type emailKey struct {
	collection string
	email      string
}

// NewInMemoryStore creates an empty in-memory user store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:        make(map[uuid.UUID]User),
		usersByEmail: make(map[emailKey]uuid.UUID),
	}
}

// FindByEmail returns the user with the given email in the collection
func (s *InMemoryStore) FindByEmail(ctx context.Context, collection, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByEmail[emailKey{collection, email}]
	if !ok {
		return User{}, ErrUserNotFound
	}

	user, ok := s.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

// Create inserts a new user, enforcing one user per email per collection
func (s *InMemoryStore) Create(ctx context.Context, params CreateParams) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := emailKey{params.Collection, params.Email}
	if _, exists := s.usersByEmail[key]; exists {
		return User{}, ErrUserAlreadyExists
	}

	user := User{
		ID:           uuid.New(),
		Collection:   params.Collection,
		Email:        params.Email,
		Name:         params.Name,
		GivenName:    params.GivenName,
		FamilyName:   params.FamilyName,
		Picture:      params.Picture,
		PasswordHash: params.PasswordHash,
		Custom:       params.Custom,
		CreatedAt:    time.Now().UTC(),
	}

	s.users[user.ID] = user
	s.usersByEmail[key] = user.ID
	return user, nil
}

// Login verifies the credential against the stored hash and mints an opaque
// session token
func (s *InMemoryStore) Login(ctx context.Context, collection, email, credential string) (string, error) {
	user, err := s.FindByEmail(ctx, collection, email)
	if err != nil {
		return "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(credential)); err != nil {
		return "", ErrInvalidCredentials
	}

	return uuid.New().String(), nil
}
