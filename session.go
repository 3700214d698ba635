package mailauth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Session keys written by the binder.
const (
	SessionUserIDKey      = "loggedInUserId"
	SessionDisplayNameKey = "displayName"
	SessionEmailKey       = "email"
	SessionAuthTokenKey   = "authToken"

	// SessionLocalUserKey is the bare-username identity written by the
	// legacy local login path, which bypasses the binder entirely.
	SessionLocalUserKey = "user"
)

// SessionBinder establishes or destroys the session identity for the
// current request. Bind must be durably committed before any response
// that depends on the session being visible to a subsequent request;
// a Bind failure is fatal to the surrounding request and is propagated,
// never swallowed.
type SessionBinder interface {
	Bind(w http.ResponseWriter, r *http.Request, user *User) error
	Unbind(w http.ResponseWriter, r *http.Request) error
}

// ScsSessionBinder binds users into an scs-managed session and issues a
// short-lived HS256 auth-token cookie alongside it. scs's LoadAndSave
// middleware writes the session cookie before the response body, which is
// what makes the bind visible before any redirect lands.
type ScsSessionBinder struct {
	Session *scs.SessionManager

	// JWT settings for the auth-token cookie. An empty secret disables
	// token issuance; the session alone still carries the identity.
	JWTSecretKey string
	JWTIssuer    string

	// TokenTTL defaults to one hour.
	TokenTTL time.Duration

	// CookieDomain is set on the auth-token cookie when non-empty.
	CookieDomain string
}

func (b *ScsSessionBinder) tokenTTL() time.Duration {
	if b.TokenTTL > 0 {
		return b.TokenTTL
	}
	return time.Hour
}

// Bind commits the user's identity into the request's session. The
// session token is rotated first so a pre-login session ID never carries
// an authenticated identity.
func (b *ScsSessionBinder) Bind(w http.ResponseWriter, r *http.Request, user *User) error {
	ctx := r.Context()
	if err := b.Session.RenewToken(ctx); err != nil {
		return NewAuthError(ErrCodeSessionBindFailed, "Failed to establish session: "+err.Error(), "")
	}

	b.Session.Put(ctx, SessionUserIDKey, user.ID)
	b.Session.Put(ctx, SessionDisplayNameKey, user.DisplayName)
	b.Session.Put(ctx, SessionEmailKey, user.Email)

	if b.JWTSecretKey != "" {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": user.ID,
			"iss": b.JWTIssuer,
			"exp": time.Now().Add(b.tokenTTL()).Unix(),
			"iat": time.Now().Unix(),
		})
		tokenString, err := token.SignedString([]byte(b.JWTSecretKey))
		if err != nil {
			return NewAuthError(ErrCodeSessionBindFailed, "Failed to sign auth token: "+err.Error(), "")
		}
		b.Session.Put(ctx, SessionAuthTokenKey, tokenString)
		http.SetCookie(w, &http.Cookie{
			Name:     SessionAuthTokenKey,
			Value:    tokenString,
			Domain:   b.CookieDomain,
			Path:     "/",
			HttpOnly: true,
			MaxAge:   int(b.tokenTTL().Seconds()),
			Expires:  time.Now().Add(b.tokenTTL()),
		})
	}
	return nil
}

// Unbind destroys the session identity and clears the auth-token cookie.
func (b *ScsSessionBinder) Unbind(w http.ResponseWriter, r *http.Request) error {
	if err := b.Session.Destroy(r.Context()); err != nil {
		slog.Warn("error destroying session", "err", err)
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:    SessionAuthTokenKey,
		Domain:  b.CookieDomain,
		Path:    "/",
		MaxAge:  -1,
		Expires: time.Now(),
	})
	return nil
}
