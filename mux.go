package mailauth

import (
	"encoding/json"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/mux"
)

// FederatedProvider is an external identity provider. The provider owns
// the whole redirect-based handshake; the core only ever consumes the
// VerifiedProfile it hands back.
type FederatedProvider interface {
	// BeginAuth starts the handshake, typically by redirecting the user
	// agent to the provider's consent page.
	BeginAuth(w http.ResponseWriter, r *http.Request)

	// CompleteAuth consumes the provider's callback request and returns
	// the verified profile, or an error if the handshake failed.
	CompleteAuth(r *http.Request) (*VerifiedProfile, error)
}

// Auth is the HTTP surface over the OTP, federated and legacy local
// authentication flows. Wrap Handler() with Session.LoadAndSave.
type Auth struct {
	// Session manages the server-side session store. Required.
	Session *scs.SessionManager

	// Users is the shared user registry. Required.
	Users UserStore

	// OTP issues and verifies email login codes. Required for the
	// send-code/verify-code endpoints.
	OTP *OTPAuth

	// Resolver maps verified credentials to user records. Required.
	Resolver *IdentityResolver

	// Binder commits resolved users into the session. Required.
	Binder SessionBinder

	// Local is the legacy username/password path. Required for the
	// register/login endpoints.
	Local *LocalAuth

	// Middleware identifies the current user for GET /user. Built from
	// Session on first use if unset.
	Middleware *Middleware

	// LoginRedirectURL is where federated callbacks land; defaults to "/".
	// "?login=success" or "?login=failed" is appended.
	LoginRedirectURL string

	providers map[string]FederatedProvider
	router    *mux.Router
}

// AddProvider mounts a federated provider under GET /{name} and
// GET /{name}/callback. Call before Handler.
func (a *Auth) AddProvider(name string, provider FederatedProvider) *Auth {
	if a.providers == nil {
		a.providers = map[string]FederatedProvider{}
	}
	a.providers[name] = provider
	return a
}

func (a *Auth) EnsureDefaults() *Auth {
	if a.Middleware == nil {
		a.Middleware = &Middleware{Session: a.Session}
	}
	if a.Middleware.Session == nil {
		a.Middleware.Session = a.Session
	}
	if a.LoginRedirectURL == "" {
		a.LoginRedirectURL = "/"
	}
	return a
}

// Handler returns the routed HTTP handler for all auth endpoints.
func (a *Auth) Handler() http.Handler {
	a.EnsureDefaults()
	if a.router != nil {
		return a.router
	}

	r := mux.NewRouter()
	r.HandleFunc("/send-code", a.handleSendCode).Methods(http.MethodPost)
	r.HandleFunc("/verify-code", a.handleVerifyCode).Methods(http.MethodPost)
	r.HandleFunc("/user", a.handleUser).Methods(http.MethodGet)
	r.HandleFunc("/register", a.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/login", a.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/logout", a.handleLogout).Methods(http.MethodPost)

	for name, provider := range a.providers {
		p := provider
		r.HandleFunc("/"+name, p.BeginAuth).Methods(http.MethodGet)
		r.HandleFunc("/"+name+"/callback", a.federatedCallback(name, p)).Methods(http.MethodGet)
	}

	a.router = r
	return r
}

// handleSendCode handles POST /send-code {email}.
func (a *Auth) handleSendCode(w http.ResponseWriter, r *http.Request) {
	fields, err := parseBodyFields(r, "email")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Invalid request body"})
		return
	}

	if err := a.OTP.RequestCode(fields["email"]); err != nil {
		switch ErrCode(err) {
		case ErrCodeInvalidInput:
			writeJSON(w, http.StatusBadRequest, map[string]any{"message": err.Error()})
		default:
			log.Println("error sending login code: ", err)
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"message": "Failed to send code",
				"error":   err.Error(),
			})
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Code sent"})
}

// handleVerifyCode handles POST /verify-code {email, code}. On success
// the email is resolved to a user record and bound into the session.
func (a *Auth) handleVerifyCode(w http.ResponseWriter, r *http.Request) {
	fields, err := parseBodyFields(r, "email", "code")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Invalid request body"})
		return
	}

	email, err := a.OTP.VerifyCode(fields["email"], fields["code"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": err.Error()})
		return
	}

	user, err := a.Resolver.ResolveByEmail(email)
	if err != nil {
		log.Println("error resolving verified email: ", err)
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": err.Error()})
		return
	}

	if err := a.Binder.Bind(w, r, user); err != nil {
		slog.Warn("session bind failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"message": "Failed to establish session",
			"error":   err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"user": map[string]any{
			"username": user.Username,
			"email":    user.Email,
		},
	})
}

// handleUser handles GET /user: the current identity for the frontend.
// Only sessions established through the SessionBinder qualify; the legacy
// local path stores a bare username and answers 401 here, matching the
// behavior this flow replaces.
func (a *Auth) handleUser(w http.ResponseWriter, r *http.Request) {
	userID := a.Middleware.GetLoggedInUserID(r)
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{})
		return
	}

	displayName := a.Session.GetString(r.Context(), SessionDisplayNameKey)
	email := a.Session.GetString(r.Context(), SessionEmailKey)
	if displayName == "" && email == "" {
		// Token-authenticated request with no session payload.
		if user, err := a.Users.GetUserByID(userID); err == nil {
			displayName, email = user.DisplayName, user.Email
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"displayName": displayName,
		"email":       email,
	})
}

// handleRegister handles POST /register {username, password}.
func (a *Auth) handleRegister(w http.ResponseWriter, r *http.Request) {
	fields, err := parseBodyFields(r, "username", "password")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Invalid request body"})
		return
	}

	if err := a.Local.Register(fields["username"], fields["password"]); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Registration successful"})
}

// handleLogin handles POST /login {username, password}. Success stores
// the bare username in the session without going through the binder.
func (a *Auth) handleLogin(w http.ResponseWriter, r *http.Request) {
	fields, err := parseBodyFields(r, "username", "password")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Invalid request body"})
		return
	}

	user, err := a.Local.Login(fields["username"], fields["password"])
	if err != nil || user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Invalid credentials"})
		return
	}

	a.Session.Put(r.Context(), SessionLocalUserKey, user.Username)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Login successful"})
}

// handleLogout handles POST /logout for every flow.
func (a *Auth) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := a.Binder.Unbind(w, r); err != nil {
		slog.Warn("error during logout", "err", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Logged out"})
}

// federatedCallback resolves a completed provider handshake into a user
// record, binds it and redirects. A bind failure aborts to login=failed;
// success is never signalled before the session is committed.
func (a *Auth) federatedCallback(name string, provider FederatedProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profile, err := provider.CompleteAuth(r)
		if err != nil {
			log.Printf("%s handshake failed: %v", name, err)
			http.Redirect(w, r, a.LoginRedirectURL+"?login=failed", http.StatusFound)
			return
		}

		user, err := a.Resolver.ResolveFederated(profile)
		if err != nil {
			log.Printf("%s identity resolution failed: %v", name, err)
			http.Redirect(w, r, a.LoginRedirectURL+"?login=failed", http.StatusFound)
			return
		}

		if err := a.Binder.Bind(w, r, user); err != nil {
			slog.Warn("session bind failed", "provider", name, "err", err)
			http.Redirect(w, r, a.LoginRedirectURL+"?login=failed", http.StatusFound)
			return
		}

		http.Redirect(w, r, a.LoginRedirectURL+"?login=success", http.StatusFound)
	}
}

// parseBodyFields reads the named string fields from a JSON or form body.
func parseBodyFields(r *http.Request, names ...string) (map[string]string, error) {
	out := map[string]string{}
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") ||
		strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseForm(); err != nil {
			return nil, errors.New("error parsing form")
		}
		for _, name := range names {
			out[name] = r.FormValue(name)
		}
		return out, nil
	}

	var data map[string]any
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil || data == nil {
		return nil, errors.New("invalid post body")
	}
	for _, name := range names {
		if v, ok := data[name].(string); ok {
			out[name] = v
		}
	}
	return out, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("error encoding response", "err", err)
	}
}
