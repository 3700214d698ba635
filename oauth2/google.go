package oauth2

import (
	"fmt"
	"log"
	"net/http"
	"os"

	ma "github.com/mailauth-io/mailauth"
	"golang.org/x/oauth2/google"
	googleoauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

type GoogleOAuth2 struct {
	*BaseOAuth2
}

func NewGoogleOAuth2(clientId string, clientSecret string, callbackUrl string) *GoogleOAuth2 {
	if clientId == "" {
		clientId = os.Getenv("OAUTH2_GOOGLE_CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("OAUTH2_GOOGLE_CLIENT_SECRET")
	}
	if callbackUrl == "" {
		callbackUrl = os.Getenv("OAUTH2_GOOGLE_CALLBACK_URL")
	}

	out := GoogleOAuth2{
		BaseOAuth2: NewBaseOAuth2(clientId, clientSecret, callbackUrl),
	}
	out.BaseOAuth2.oauthConfig.Endpoint = google.Endpoint
	out.BaseOAuth2.oauthConfig.Scopes = []string{
		"https://www.googleapis.com/auth/userinfo.email",
		"https://www.googleapis.com/auth/userinfo.profile",
	}
	return &out
}

// CompleteAuth finishes the Google handshake: state check, code
// exchange, then a userinfo fetch through the Google OAuth2 API service.
func (g *GoogleOAuth2) CompleteAuth(r *http.Request) (*ma.VerifiedProfile, error) {
	token, err := g.exchange(r)
	if err != nil {
		log.Println("google code exchange failed: ", err)
		return nil, err
	}

	ctx := g.exchangeContext(r)
	svc, err := googleoauth2.NewService(ctx,
		option.WithTokenSource(g.oauthConfig.TokenSource(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("failed creating google userinfo service: %w", err)
	}

	info, err := svc.Userinfo.Get().Do()
	if err != nil {
		return nil, fmt.Errorf("failed getting user info from google: %w", err)
	}
	if info.Id == "" {
		return nil, fmt.Errorf("google userinfo has no subject ID")
	}

	return &ma.VerifiedProfile{
		Provider:    "google",
		ProviderID:  info.Id,
		DisplayName: info.Name,
		Email:       info.Email,
	}, nil
}
