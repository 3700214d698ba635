package mailauth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/golang-jwt/jwt/v5"
)

type userParamNameKey string

// Middleware extracts the logged-in user ID for downstream handlers.
// The session is checked first; failing that, any auth-token JWTs found
// in the Authorization header or the auth-token cookie are verified.
type Middleware struct {
	Session *scs.SessionManager

	AuthTokenHeaderName string
	AuthTokenCookieName string
	UserParamName       string

	// JWTSecretKey backs the default token verifier.
	JWTSecretKey string

	// VerifyToken overrides JWT verification. Defaults to HS256
	// verification against JWTSecretKey.
	VerifyToken func(tokenString string) (loggedInUserID string, err error)
}

func (m *Middleware) EnsureReasonableDefaults() {
	if m.UserParamName == "" {
		m.UserParamName = SessionUserIDKey
	}
	if m.AuthTokenHeaderName == "" {
		m.AuthTokenHeaderName = "Authorization"
	}
	if m.AuthTokenCookieName == "" {
		m.AuthTokenCookieName = SessionAuthTokenKey
	}
	if m.VerifyToken == nil {
		m.VerifyToken = m.verifyJWT
	}
}

// GetLoggedInUserID returns the authenticated user's record ID for this
// request, or "" when there is none.
func (m *Middleware) GetLoggedInUserID(r *http.Request) string {
	m.EnsureReasonableDefaults()

	if v := r.Context().Value(userParamNameKey(m.UserParamName)); v != nil {
		if userID, ok := v.(string); ok && userID != "" {
			return userID
		}
	}

	if m.Session != nil {
		if userID := m.Session.GetString(r.Context(), m.UserParamName); userID != "" {
			return userID
		}
	}

	authTokens := r.Header.Values(m.AuthTokenHeaderName)
	for _, cookie := range r.CookiesNamed(m.AuthTokenCookieName) {
		if len(cookie.Value) > 0 {
			authTokens = append(authTokens, cookie.Value)
		}
	}
	for _, authToken := range authTokens {
		userID, err := m.VerifyToken(authToken)
		if err == nil && userID != "" {
			return userID
		} else if err != nil {
			slog.Warn("error verifying auth token", "err", err)
		}
	}
	return ""
}

// ExtractUser loads the logged-in user ID (if any) into the request
// context for downstream handlers. It never redirects or rejects.
func (m *Middleware) ExtractUser(next http.Handler) http.Handler {
	m.EnsureReasonableDefaults()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, m.setLoggedInUserID(m.GetLoggedInUserID(r), r))
	})
}

// EnsureUser is like ExtractUser but rejects unauthenticated requests
// with a 401.
func (m *Middleware) EnsureUser(next http.Handler) http.Handler {
	m.EnsureReasonableDefaults()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := m.GetLoggedInUserID(r)
		if userID == "" {
			http.Error(w, "Login required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, m.setLoggedInUserID(userID, r))
	})
}

func (m *Middleware) setLoggedInUserID(userID string, r *http.Request) *http.Request {
	ctx := context.WithValue(r.Context(), userParamNameKey(m.UserParamName), userID)
	return r.WithContext(ctx)
}

func (m *Middleware) verifyJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return []byte(m.JWTSecretKey), nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims == nil {
		return "", fmt.Errorf("claims is not a map")
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return "", err
	}
	if sub == "" {
		return "", fmt.Errorf("subject not found")
	}
	return sub, nil
}
