// Package mailauth authenticates end users through two independent
// mechanisms - one-time passcodes delivered by email and OAuth2-style
// federated identity - and unifies both into a single user record bound
// to a server-side session.
//
// # Architecture
//
// User: a canonical account record. A user is keyed by whichever identity
// attributes it carries: a federated provider ID, an email address, or a
// local username. No two users share a populated value for the same
// attribute.
//
// OTPAuth: issues 6-digit login codes, stores them with a fixed TTL and
// verifies them exactly once. A code can be tried at most one time; a
// wrong guess burns it just like a correct one.
//
// IdentityResolver: maps a verified credential (a federated profile or a
// verified OTP email) to the matching user record, creating one when none
// exists. Resolution is idempotent and race-safe under concurrent first
// logins.
//
// SessionBinder: commits the resolved user into the request's session
// before any response is written, so a redirect never races the session
// becoming visible.
//
// # Basic Usage
//
// Set up the in-memory stores and the components around them:
//
//	users := stores.NewMemoryUserStore()
//	codes := stores.NewMemoryCodeStore()
//
//	otp := &mailauth.OTPAuth{Codes: codes, Sender: &mailauth.ConsoleEmailSender{}}
//	resolver := &mailauth.IdentityResolver{Users: users}
//
//	session := scs.New()
//	binder := &mailauth.ScsSessionBinder{Session: session}
//
//	auth := &mailauth.Auth{
//	    Session:  session,
//	    Users:    users,
//	    OTP:      otp,
//	    Resolver: resolver,
//	    Binder:   binder,
//	    Local:    &mailauth.LocalAuth{Users: users},
//	}
//	auth.AddProvider("google", oauth2.NewGoogleOAuth2("", "", ""))
//
//	http.ListenAndServe(":8080", session.LoadAndSave(auth.Handler()))
//
// # Store Implementations
//
// The stores package provides in-memory implementations whose lifetime is
// the process lifetime. For anything durable, implement the UserStore and
// CodeStore interfaces against your database; per-key atomicity of
// CreateUser is part of the interface contract, not an accident of the
// in-memory version. CodeStore stays pure key-value: OTPAuth serializes
// the lookup-and-delete pair itself.
//
// # Security
//
// Login codes are uniformly random 6-digit values drawn from a
// cryptographically secure source, expire after ten minutes and are
// deleted on first verification attempt regardless of outcome. Local
// passwords are hashed with bcrypt at default cost. Session identifiers
// are rotated on every bind.
//
// # Testing
//
// Handlers can be exercised without a running server using
// httptest.NewRequest and httptest.ResponseRecorder. OTPAuth accepts an
// injectable random source and clock for deterministic tests.
package mailauth
