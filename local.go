package mailauth

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// LocalAuth is the legacy username/password path. It is deliberately
// weaker than the OTP and federated flows: success stores the bare
// username in the session rather than going through the SessionBinder,
// and no email or federated identity is involved. Kept functional, not
// hardened.
type LocalAuth struct {
	// Users is the shared user registry. Required.
	Users UserStore

	// NewID generates record IDs. Defaults to uuid.NewString.
	NewID func() string
}

func (l *LocalAuth) newID() string {
	if l.NewID != nil {
		return l.NewID()
	}
	return uuid.NewString()
}

// Register creates a username-keyed user record. Fails with a
// duplicate_user error if the username is already taken.
func (l *LocalAuth) Register(username, password string) error {
	if username == "" || password == "" {
		return NewAuthError(ErrCodeInvalidInput, "Username and password required", "username")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	user := &User{
		ID:           l.newID(),
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	if err := l.Users.CreateUser(user); err != nil {
		if errors.Is(err, ErrUserExists) {
			return NewAuthError(ErrCodeDuplicateUser, "User already exists", "username")
		}
		return err
	}
	return nil
}

// Login validates a username/password pair and returns the matching user.
// Any mismatch - unknown user, missing credential, wrong password - fails
// with the same invalid_credentials error.
func (l *LocalAuth) Login(username, password string) (*User, error) {
	invalid := NewAuthError(ErrCodeInvalidCreds, "Invalid credentials", "password")

	if username == "" || password == "" {
		return nil, invalid
	}
	user, err := l.Users.GetUserByUsername(username)
	if err != nil {
		return nil, invalid
	}
	if user.PasswordHash == "" {
		return nil, invalid
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, invalid
	}
	return user, nil
}
