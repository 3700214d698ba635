package oauth2

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	ma "github.com/mailauth-io/mailauth"
	"golang.org/x/oauth2/github"
)

type GithubOAuth2 struct {
	*BaseOAuth2

	// UserInfoURL is the URL to fetch user info from. Defaults to
	// GitHub's API. Can be overridden for testing.
	UserInfoURL string

	// UserEmailsURL is queried when the profile carries no public email.
	UserEmailsURL string
}

func NewGithubOAuth2(clientId string, clientSecret string, callbackUrl string) *GithubOAuth2 {
	if clientId == "" {
		clientId = strings.TrimSpace(os.Getenv("OAUTH2_GITHUB_CLIENT_ID"))
	}
	if clientSecret == "" {
		clientSecret = strings.TrimSpace(os.Getenv("OAUTH2_GITHUB_CLIENT_SECRET"))
	}
	if callbackUrl == "" {
		callbackUrl = strings.TrimSpace(os.Getenv("OAUTH2_GITHUB_CALLBACK_URL"))
	}

	out := GithubOAuth2{
		BaseOAuth2:    NewBaseOAuth2(clientId, clientSecret, callbackUrl),
		UserInfoURL:   "https://api.github.com/user",
		UserEmailsURL: "https://api.github.com/user/emails",
	}
	out.BaseOAuth2.oauthConfig.Endpoint = github.Endpoint
	out.BaseOAuth2.oauthConfig.Scopes = []string{
		"read:user", "user:email",
	}
	return &out
}

// CompleteAuth finishes the GitHub handshake: state check, code
// exchange, then user profile and (if needed) primary email lookups.
func (g *GithubOAuth2) CompleteAuth(r *http.Request) (*ma.VerifiedProfile, error) {
	token, err := g.exchange(r)
	if err != nil {
		slog.Info("github code exchange failed", "err", err)
		return nil, err
	}

	var info struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := g.getJSON(g.UserInfoURL, token.AccessToken, &info); err != nil {
		return nil, fmt.Errorf("failed getting user info from github: %w", err)
	}
	if info.ID == 0 {
		return nil, fmt.Errorf("github userinfo has no ID")
	}

	displayName := info.Name
	if displayName == "" {
		displayName = info.Login
	}

	email := info.Email
	if email == "" {
		// Public email hidden; the primary address requires user:email.
		email = g.primaryEmail(token.AccessToken)
	}

	return &ma.VerifiedProfile{
		Provider:    "github",
		ProviderID:  strconv.FormatInt(info.ID, 10),
		DisplayName: displayName,
		Email:       email,
	}, nil
}

func (g *GithubOAuth2) primaryEmail(accessToken string) string {
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := g.getJSON(g.UserEmailsURL, accessToken, &emails); err != nil {
		slog.Info("failed fetching github emails", "err", err)
		return ""
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email
		}
	}
	return ""
}

func (g *GithubOAuth2) getJSON(url, accessToken string, out any) error {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	response, err := g.getHTTPClient().Do(req)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", response.StatusCode)
	}
	return json.NewDecoder(response.Body).Decode(out)
}
