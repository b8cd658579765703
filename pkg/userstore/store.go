package userstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors for user store implementations
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid email or credential")
)

// User is the CMS-side account record. External-provider fields are copied
// from identity claims at creation time; Custom carries the collection's
// schema-specific fields.
type User struct {
	ID           uuid.UUID      `json:"id"`
	Collection   string         `json:"collection"`
	Email        string         `json:"email"`
	Name         string         `json:"name,omitempty"`
	GivenName    string         `json:"given_name,omitempty"`
	FamilyName   string         `json:"family_name,omitempty"`
	Picture      string         `json:"picture,omitempty"`
	PasswordHash string         `json:"-"`
	Custom       map[string]any `json:"custom,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Record flattens the user into the loosely-keyed shape the claim projector
// reads from. Custom fields never shadow the built-in keys.
func (u User) Record() map[string]any {
	record := make(map[string]any, len(u.Custom)+6)
	for k, v := range u.Custom {
		record[k] = v
	}
	record["id"] = u.ID.String()
	record["email"] = u.Email
	if u.Name != "" {
		record["name"] = u.Name
	}
	if u.GivenName != "" {
		record["given_name"] = u.GivenName
	}
	if u.FamilyName != "" {
		record["family_name"] = u.FamilyName
	}
	if u.Picture != "" {
		record["picture"] = u.Picture
	}
	return record
}

// CreateParams holds the fields for a new user record
type CreateParams struct {
	Collection   string
	Email        string
	Name         string
	GivenName    string
	FamilyName   string
	Picture      string
	PasswordHash string
	Custom       map[string]any
}

// Store is the user-store collaborator. Implementations must keep at most
// one user per email within a collection; Create returns
// ErrUserAlreadyExists when the email is taken so callers can retry the find.
type Store interface {
	// FindByEmail returns the user with the given email in the collection,
	// or ErrUserNotFound
	FindByEmail(ctx context.Context, collection, email string) (User, error)

	// Create inserts a new user record
	Create(ctx context.Context, params CreateParams) (User, error)

	// Login verifies a local credential and mints a framework-native session
	// token for hosts that require one
	Login(ctx context.Context, collection, email, credential string) (string, error)
}
