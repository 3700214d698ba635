package mailauth

import (
	"errors"
	"time"
)

// User is the canonical account record unifying every authentication
// mechanism. At least one identity attribute (FederatedID, Email or
// Username) is populated; each is unique across users when present.
//
// Records are created once and only ever mutated to fill in a
// previously-absent attribute, never to overwrite a populated one.
type User struct {
	ID string `json:"id"`

	// Identity attributes. Empty means absent.
	FederatedID string `json:"federated_id,omitempty"`
	Email       string `json:"email,omitempty"`
	Username    string `json:"username,omitempty"`

	DisplayName string `json:"display_name,omitempty"`

	// Provider that asserted FederatedID ("google", "github"). Informational.
	Provider string `json:"provider,omitempty"`

	// Bcrypt hash for the legacy local username/password path.
	PasswordHash string `json:"password_hash,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Challenge is a pending one-time login code for an email address.
// At most one challenge is live per email; issuing a new one supersedes
// any prior unexpired challenge for that address.
type Challenge struct {
	Email     string    `json:"email"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired returns true if the challenge's expiry timestamp has passed
// according to the supplied clock.
func (c *Challenge) IsExpired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}

// Store sentinel errors. Implementations return these (possibly wrapped)
// so callers can branch with errors.Is.
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserExists        = errors.New("user already exists")
	ErrChallengeNotFound = errors.New("challenge not found")
)

// UserStore manages canonical user records.
//
// CreateUser must be atomic per identity attribute: under concurrent
// creates carrying the same federated ID, email or username, exactly one
// succeeds and the rest fail with ErrUserExists. That contract is what
// makes IdentityResolver's find-or-create race-safe.
type UserStore interface {
	// GetUserByID retrieves a user by its record ID.
	GetUserByID(id string) (*User, error)

	// GetUserByFederatedID retrieves a user by federated provider ID.
	GetUserByFederatedID(federatedID string) (*User, error)

	// GetUserByEmail retrieves a user by email address.
	GetUserByEmail(email string) (*User, error)

	// GetUserByUsername retrieves a user by local username.
	GetUserByUsername(username string) (*User, error)

	// CreateUser inserts a new user. Fails with ErrUserExists if any
	// populated identity attribute collides with an existing record.
	CreateUser(user *User) error
}

// CodeStore is a keyed store of pending OTP challenges, one per email.
// Pure key-value semantics: no I/O, no randomness, no clock. It is not
// required to serialize a Get followed by a Remove; OTPAuth holds its own
// lock around that pair.
type CodeStore interface {
	// Put stores the challenge for its email, overwriting any prior one.
	Put(challenge *Challenge) error

	// Get returns the current challenge for the email, or
	// ErrChallengeNotFound if absent.
	Get(email string) (*Challenge, error)

	// Remove deletes the challenge for the email. Removing an absent
	// challenge is not an error.
	Remove(email string) error
}

// VerifiedProfile is the outcome of a completed federated handshake.
// The provider owns the protocol; the core only ever consumes this.
type VerifiedProfile struct {
	// Provider is the asserting provider's name ("google", "github").
	Provider string `json:"provider"`

	// ProviderID is the provider's stable, opaque ID for the user.
	ProviderID string `json:"provider_id"`

	DisplayName string `json:"display_name,omitempty"`

	// Email may be empty if the provider supplied none.
	Email string `json:"email,omitempty"`
}
