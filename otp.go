package mailauth

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"regexp"
	"sync"
	"time"
)

// DefaultCodeTTL is how long a login code stays valid after issuance.
const DefaultCodeTTL = 10 * time.Minute

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// OTPAuth issues and verifies one-time email login codes.
//
// Codes are 6-digit numeric strings drawn uniformly from
// [100000, 999999] - always six digits, never a leading zero. At most one
// code is live per email: requesting a new one permanently invalidates
// the previous code even if it has not expired. Verification is strictly
// one-shot: the stored challenge is deleted on the first attempt, whether
// the attempt matches, mismatches, or arrives after expiry.
type OTPAuth struct {
	// Codes holds pending challenges. Required.
	Codes CodeStore

	// Sender delivers the plaintext code to the user. Required.
	Sender EmailSender

	// CodeTTL defaults to DefaultCodeTTL.
	CodeTTL time.Duration

	// Rand is the randomness source for code generation.
	// Defaults to crypto/rand.Reader.
	Rand io.Reader

	// Now is the clock used for expiry decisions. Defaults to time.Now.
	Now func() time.Time

	// mu serializes the store's get/put/remove pairs so two concurrent
	// verifications can never both observe the same challenge. Mail
	// delivery happens outside this lock.
	mu sync.Mutex
}

func (a *OTPAuth) ttl() time.Duration {
	if a.CodeTTL > 0 {
		return a.CodeTTL
	}
	return DefaultCodeTTL
}

func (a *OTPAuth) rand() io.Reader {
	if a.Rand != nil {
		return a.Rand
	}
	return rand.Reader
}

func (a *OTPAuth) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// GenerateCode returns a uniformly random 6-digit code in [100000, 999999].
func (a *OTPAuth) GenerateCode() (string, error) {
	n, err := rand.Int(a.rand(), big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+100000), nil
}

// RequestCode issues a fresh login code for the email, stores it with the
// configured TTL and asks the sender to deliver it. Any prior challenge
// for the same email is superseded.
//
// The challenge is stored before the send and is NOT rolled back if
// delivery fails: a correct code will verify even though the user never
// received it. Known inconsistency, kept deliberately; see DESIGN.md.
func (a *OTPAuth) RequestCode(email string) error {
	if email == "" || !emailRegex.MatchString(email) {
		return NewAuthError(ErrCodeInvalidInput, "A valid email is required", "email")
	}

	code, err := a.GenerateCode()
	if err != nil {
		return err
	}

	challenge := &Challenge{
		Email:     email,
		Code:      code,
		ExpiresAt: a.now().Add(a.ttl()),
	}

	a.mu.Lock()
	err = a.Codes.Put(challenge)
	a.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to store challenge: %w", err)
	}

	if err := a.Sender.SendLoginCode(email, code); err != nil {
		return NewAuthError(ErrCodeDeliveryFailed, fmt.Sprintf("Failed to send code: %s", err.Error()), "email")
	}
	return nil
}

// VerifyCode checks a submitted code against the pending challenge for
// the email and returns the verified email on success.
//
// The challenge is consumed on lookup no matter what: a wrong guess or an
// expired code burns it exactly like a correct one, so a code can be
// tried at most once.
func (a *OTPAuth) VerifyCode(email, submittedCode string) (string, error) {
	a.mu.Lock()
	challenge, err := a.Codes.Get(email)
	if err == nil {
		// One-shot use: consumed before the outcome is known.
		if rmErr := a.Codes.Remove(email); rmErr != nil {
			a.mu.Unlock()
			return "", fmt.Errorf("failed to consume challenge: %w", rmErr)
		}
	}
	a.mu.Unlock()

	if err != nil {
		return "", NewAuthError(ErrCodeNoChallenge, "No code was requested for this email", "email")
	}

	if challenge.Code != submittedCode || challenge.IsExpired(a.now()) {
		return "", NewAuthError(ErrCodeInvalidOrExpiredCode, "Invalid or expired code", "code")
	}
	return challenge.Email, nil
}
