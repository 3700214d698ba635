package oauth2_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/mailauth-io/mailauth/oauth2"
)

// mockProviderServer stands in for an OAuth provider, serving:
// - /token for the authorization-code exchange
// - /user and /user/emails for GitHub-shaped profile lookups
type mockProviderServer struct {
	server *httptest.Server

	userInfoResponse map[string]any
	emailsResponse   []map[string]any
	tokenError       bool
	userInfoError    bool
}

func newMockProviderServer() *mockProviderServer {
	mock := &mockProviderServer{
		userInfoResponse: map[string]any{
			"id":    12345,
			"login": "octocat",
			"name":  "Test User",
			"email": "testuser@example.com",
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if mock.tokenError {
			http.Error(w, "token exchange failed", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "mock_access_token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if mock.userInfoError {
			http.Error(w, "user info failed", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mock.userInfoResponse)
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mock.emailsResponse)
	})

	mock.server = httptest.NewServer(mux)
	return mock
}

func (m *mockProviderServer) Close() {
	m.server.Close()
}

// newMockedGithub wires a GithubOAuth2 at the mock server's endpoints.
func newMockedGithub(mock *mockProviderServer) *oauth2.GithubOAuth2 {
	auth := oauth2.NewGithubOAuth2("test-client-id", "test-client-secret", "http://localhost:8080/callback")
	auth.SetEndpoint(mock.server.URL+"/auth", mock.server.URL+"/token")
	auth.UserInfoURL = mock.server.URL + "/user"
	auth.UserEmailsURL = mock.server.URL + "/user/emails"
	auth.HTTPClient = mock.server.Client()
	return auth
}

// callbackRequest builds a provider callback carrying a matching state
// cookie.
func callbackRequest(state string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/callback?code=valid_code&state="+state, nil)
	req.AddCookie(&http.Cookie{Name: "oauthstate", Value: state})
	return req
}

func TestBeginAuth(t *testing.T) {
	auth := oauth2.NewGithubOAuth2("test-client-id", "test-client-secret", "http://localhost:8080/callback")

	t.Run("redirects to provider with OAuth parameters", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()

		auth.BeginAuth(rr, req)

		if rr.Code != http.StatusFound {
			t.Fatalf("Expected status %d, got %d", http.StatusFound, rr.Code)
		}
		parsedURL, err := url.Parse(rr.Header().Get("Location"))
		if err != nil {
			t.Fatalf("Failed to parse redirect URL: %v", err)
		}
		query := parsedURL.Query()
		if query.Get("client_id") != "test-client-id" {
			t.Error("Expected client_id in URL")
		}
		if query.Get("redirect_uri") != "http://localhost:8080/callback" {
			t.Error("Expected redirect_uri in URL")
		}
		if query.Get("response_type") != "code" {
			t.Error("Expected response_type=code in URL")
		}
		if query.Get("state") == "" {
			t.Error("Expected state parameter in URL")
		}
	})

	t.Run("state in URL matches cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()

		auth.BeginAuth(rr, req)

		var cookieState string
		for _, c := range rr.Result().Cookies() {
			if c.Name == "oauthstate" {
				cookieState = c.Value
				break
			}
		}
		if cookieState == "" {
			t.Fatal("Expected oauthstate cookie to be set")
		}
		parsedURL, _ := url.Parse(rr.Header().Get("Location"))
		if urlState := parsedURL.Query().Get("state"); urlState != cookieState {
			t.Errorf("State mismatch: cookie=%s, url=%s", cookieState, urlState)
		}
	})

	t.Run("generates unique state for each request", func(t *testing.T) {
		states := map[string]bool{}
		for i := 0; i < 10; i++ {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rr := httptest.NewRecorder()

			auth.BeginAuth(rr, req)

			for _, c := range rr.Result().Cookies() {
				if c.Name == "oauthstate" {
					if states[c.Value] {
						t.Errorf("Duplicate state generated: %s", c.Value)
					}
					states[c.Value] = true
					break
				}
			}
		}
		if len(states) != 10 {
			t.Errorf("Expected 10 unique states, got %d", len(states))
		}
	})

	t.Run("state cookie expires with the handshake window", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()

		auth.BeginAuth(rr, req)

		for _, c := range rr.Result().Cookies() {
			if c.Name == "oauthstate" {
				expectedExpiry := time.Now().Add(30 * time.Minute)
				if c.Expires.Before(expectedExpiry.Add(-1*time.Minute)) || c.Expires.After(expectedExpiry.Add(1*time.Minute)) {
					t.Errorf("Cookie expiry not within expected range: %v", c.Expires)
				}
				break
			}
		}
	})
}

func TestGithubCompleteAuth(t *testing.T) {
	mock := newMockProviderServer()
	defer mock.Close()

	t.Run("rejects missing state cookie", func(t *testing.T) {
		auth := newMockedGithub(mock)
		req := httptest.NewRequest(http.MethodGet, "/callback?code=test_code&state=test_state", nil)

		if _, err := auth.CompleteAuth(req); err == nil {
			t.Error("Expected error without state cookie")
		}
	})

	t.Run("rejects mismatched state", func(t *testing.T) {
		auth := newMockedGithub(mock)
		req := httptest.NewRequest(http.MethodGet, "/callback?code=test_code&state=wrong_state", nil)
		req.AddCookie(&http.Cookie{Name: "oauthstate", Value: "correct_state"})

		_, err := auth.CompleteAuth(req)
		if err == nil || !strings.Contains(err.Error(), "invalid oauth state") {
			t.Errorf("Expected invalid oauth state error, got: %v", err)
		}
	})

	t.Run("rejects missing authorization code", func(t *testing.T) {
		auth := newMockedGithub(mock)
		req := httptest.NewRequest(http.MethodGet, "/callback?state=valid_state", nil)
		req.AddCookie(&http.Cookie{Name: "oauthstate", Value: "valid_state"})

		if _, err := auth.CompleteAuth(req); err == nil {
			t.Error("Expected error without authorization code")
		}
	})

	t.Run("successful callback flow", func(t *testing.T) {
		auth := newMockedGithub(mock)

		profile, err := auth.CompleteAuth(callbackRequest("valid_state"))
		if err != nil {
			t.Fatalf("CompleteAuth failed: %v", err)
		}
		if profile.Provider != "github" {
			t.Errorf("Expected provider github, got %q", profile.Provider)
		}
		if profile.ProviderID != "12345" {
			t.Errorf("Expected provider ID 12345, got %q", profile.ProviderID)
		}
		if profile.DisplayName != "Test User" {
			t.Errorf("Expected display name from profile, got %q", profile.DisplayName)
		}
		if profile.Email != "testuser@example.com" {
			t.Errorf("Expected email from profile, got %q", profile.Email)
		}
	})

	t.Run("falls back to login when name is empty", func(t *testing.T) {
		auth := newMockedGithub(mock)
		mock.userInfoResponse = map[string]any{
			"id":    777,
			"login": "octocat",
			"email": "octocat@example.com",
		}

		profile, err := auth.CompleteAuth(callbackRequest("valid_state"))
		if err != nil {
			t.Fatalf("CompleteAuth failed: %v", err)
		}
		if profile.DisplayName != "octocat" {
			t.Errorf("Expected login fallback, got %q", profile.DisplayName)
		}
	})

	t.Run("fetches primary email when profile hides it", func(t *testing.T) {
		auth := newMockedGithub(mock)
		mock.userInfoResponse = map[string]any{
			"id":    888,
			"login": "quiet",
		}
		mock.emailsResponse = []map[string]any{
			{"email": "old@example.com", "primary": false, "verified": true},
			{"email": "primary@example.com", "primary": true, "verified": true},
		}

		profile, err := auth.CompleteAuth(callbackRequest("valid_state"))
		if err != nil {
			t.Fatalf("CompleteAuth failed: %v", err)
		}
		if profile.Email != "primary@example.com" {
			t.Errorf("Expected primary email, got %q", profile.Email)
		}
	})

	t.Run("fails on token exchange error", func(t *testing.T) {
		auth := newMockedGithub(mock)
		mock.tokenError = true
		defer func() { mock.tokenError = false }()

		if _, err := auth.CompleteAuth(callbackRequest("valid_state")); err == nil {
			t.Error("Expected error on token exchange failure")
		}
	})

	t.Run("fails on user info error", func(t *testing.T) {
		auth := newMockedGithub(mock)
		mock.userInfoError = true
		defer func() { mock.userInfoError = false }()

		if _, err := auth.CompleteAuth(callbackRequest("valid_state")); err == nil {
			t.Error("Expected error on user info failure")
		}
	})
}

func TestProviderConfiguration(t *testing.T) {
	t.Run("GitHub uses default endpoints", func(t *testing.T) {
		auth := oauth2.NewGithubOAuth2("id", "secret", "http://localhost/callback")
		if auth.UserInfoURL != "https://api.github.com/user" {
			t.Errorf("Unexpected default UserInfoURL: %s", auth.UserInfoURL)
		}
		if auth.UserEmailsURL != "https://api.github.com/user/emails" {
			t.Errorf("Unexpected default UserEmailsURL: %s", auth.UserEmailsURL)
		}
	})

	t.Run("explicit values are kept", func(t *testing.T) {
		auth := oauth2.NewGoogleOAuth2("explicit-id", "explicit-secret", "http://explicit/callback")
		if auth.ClientId != "explicit-id" || auth.ClientSecret != "explicit-secret" || auth.CallbackURL != "http://explicit/callback" {
			t.Errorf("Explicit config was not kept: %+v", auth.BaseOAuth2)
		}
	})

	t.Run("HTTP client defaults to nil and is injectable", func(t *testing.T) {
		auth := oauth2.NewGoogleOAuth2("id", "secret", "http://localhost/callback")
		if auth.HTTPClient != nil {
			t.Error("Expected HTTPClient to be nil by default")
		}
		custom := &http.Client{Timeout: 5 * time.Second}
		auth.HTTPClient = custom
		if auth.HTTPClient != custom {
			t.Error("Expected injected client to be kept")
		}
	})
}
