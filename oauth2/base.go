// Package oauth2 implements federated identity providers that complete
// an OAuth2 handshake and hand the core a verified profile. The core
// never sees provider credentials; it consumes a
// mailauth.VerifiedProfile and nothing else.
package oauth2

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2"
)

type BaseOAuth2 struct {
	ClientId     string
	ClientSecret string
	CallbackURL  string

	// HTTPClient is used for provider API calls. Defaults to
	// http.DefaultClient. Injectable for testing.
	HTTPClient *http.Client

	oauthConfig oauth2.Config
}

func NewBaseOAuth2(clientId string, clientSecret string, callbackUrl string) *BaseOAuth2 {
	if clientId == "" {
		clientId = os.Getenv("OAUTH2_CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("OAUTH2_CLIENT_SECRET")
	}
	if callbackUrl == "" {
		callbackUrl = os.Getenv("OAUTH2_CALLBACK_URL")
	}
	return &BaseOAuth2{
		ClientId:     clientId,
		ClientSecret: clientSecret,
		CallbackURL:  callbackUrl,
		oauthConfig: oauth2.Config{
			ClientID:     clientId,
			ClientSecret: clientSecret,
			RedirectURL:  callbackUrl,
		},
	}
}

// SetEndpoint overrides the provider's auth and token URLs.
// Can be overridden for testing.
func (b *BaseOAuth2) SetEndpoint(authURL, tokenURL string) {
	b.oauthConfig.Endpoint = oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL}
}

// BeginAuth sets the state cookie and redirects the user agent to the
// provider's consent page.
func (b *BaseOAuth2) BeginAuth(w http.ResponseWriter, r *http.Request) {
	oauthState := generateStateOauthCookie(w)
	u := b.oauthConfig.AuthCodeURL(oauthState)
	http.Redirect(w, r, u, http.StatusFound)
}

// exchange validates the callback's state and trades the authorization
// code for a token.
func (b *BaseOAuth2) exchange(r *http.Request) (*oauth2.Token, error) {
	if err := verifyStateCookie(r); err != nil {
		return nil, err
	}
	code := r.FormValue("code")
	if code == "" {
		return nil, fmt.Errorf("authorization code is missing")
	}
	token, err := b.oauthConfig.Exchange(b.exchangeContext(r), code)
	if err != nil {
		return nil, fmt.Errorf("code exchange failed: %w", err)
	}
	return token, nil
}

// exchangeContext carries the injectable HTTP client into the token
// exchange, per the contract of the oauth2 package.
func (b *BaseOAuth2) exchangeContext(r *http.Request) context.Context {
	ctx := r.Context()
	if b.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, b.HTTPClient)
	}
	return ctx
}

func (b *BaseOAuth2) getHTTPClient() *http.Client {
	if b.HTTPClient != nil {
		return b.HTTPClient
	}
	return http.DefaultClient
}
