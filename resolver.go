package mailauth

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
)

// IdentityResolver maps a verified credential to a canonical user record,
// creating one when none exists. Both entry points are idempotent: once a
// record exists for a key, repeated calls return that same record.
//
// Find-or-create races under concurrent first logins are resolved by the
// UserStore's atomic CreateUser contract: the loser of a duplicate insert
// re-reads and returns the winner's record.
type IdentityResolver struct {
	// Users is the authoritative user registry. Required.
	Users UserStore

	// NewID generates record IDs. Defaults to uuid.NewString.
	NewID func() string
}

func (r *IdentityResolver) newID() string {
	if r.NewID != nil {
		return r.NewID()
	}
	return uuid.NewString()
}

// ResolveFederated finds the user owning the profile's federated ID, or
// creates one from the profile. An existing record is returned unchanged;
// a differing display name on a later login does not touch it.
//
// A federated login never matches an existing email-only record, even
// when the emails coincide: if the profile's email is already owned by
// another record the login is rejected rather than silently merged.
func (r *IdentityResolver) ResolveFederated(profile *VerifiedProfile) (*User, error) {
	if profile == nil || profile.ProviderID == "" {
		return nil, NewAuthError(ErrCodeInvalidInput, "Federated profile has no provider ID", "provider_id")
	}

	user, err := r.Users.GetUserByFederatedID(profile.ProviderID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	user = &User{
		ID:          r.newID(),
		FederatedID: profile.ProviderID,
		Provider:    profile.Provider,
		DisplayName: profile.DisplayName,
		Email:       profile.Email,
		CreatedAt:   time.Now(),
	}
	if err := r.Users.CreateUser(user); err != nil {
		if !errors.Is(err, ErrUserExists) {
			return nil, err
		}
		// Lost a concurrent first-login race for the same federated ID.
		if existing, lookupErr := r.Users.GetUserByFederatedID(profile.ProviderID); lookupErr == nil {
			return existing, nil
		}
		// The collision was on the email, owned by a record with a
		// different (or no) federated ID. Merging across mechanisms is
		// out of bounds here, so the login is rejected.
		log.Printf("federated login rejected: email %s already owned by another record", profile.Email)
		return nil, NewAuthError(ErrCodeDuplicateUser, "An account with this email already exists", "email")
	}
	return user, nil
}

// ResolveByEmail finds the user owning a verified email, or creates one
// with that email and a username derived from its local part.
func (r *IdentityResolver) ResolveByEmail(email string) (*User, error) {
	if email == "" {
		return nil, NewAuthError(ErrCodeInvalidInput, "Email is required", "email")
	}

	user, err := r.Users.GetUserByEmail(email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	user = &User{
		ID:        r.newID(),
		Email:     email,
		Username:  DeriveUsername(email),
		CreatedAt: time.Now(),
	}
	if err := r.Users.CreateUser(user); err != nil {
		if !errors.Is(err, ErrUserExists) {
			return nil, err
		}
		if existing, lookupErr := r.Users.GetUserByEmail(email); lookupErr == nil {
			return existing, nil
		}
		// The derived username is taken by a different record. Fall back
		// to the full email, which is unique by construction.
		user.Username = email
		if err := r.Users.CreateUser(user); err != nil {
			if errors.Is(err, ErrUserExists) {
				if existing, lookupErr := r.Users.GetUserByEmail(email); lookupErr == nil {
					return existing, nil
				}
			}
			return nil, fmt.Errorf("failed to create user for %s: %w", email, err)
		}
	}
	return user, nil
}

// DeriveUsername returns the local part of an email address (before "@").
func DeriveUsername(email string) string {
	if at := strings.Index(email, "@"); at >= 0 {
		return email[:at]
	}
	return email
}
