package oauth2

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"time"
)

const stateCookieName = "oauthstate"

func generateStateOauthCookie(w http.ResponseWriter) string {
	var expiration = time.Now().Add(30 * time.Minute)
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		log.Println("Error generating rand: ", err)
	}
	state := base64.URLEncoding.EncodeToString(b)
	cookie := http.Cookie{Name: stateCookieName, Value: state, Path: "/", Expires: expiration, HttpOnly: true}
	http.SetCookie(w, &cookie)
	return state
}

// verifyStateCookie checks the callback's state parameter against the
// state cookie set when the handshake began.
func verifyStateCookie(r *http.Request) error {
	oauthState, _ := r.Cookie(stateCookieName)
	if oauthState == nil {
		return fmt.Errorf("oauth state cookie is missing")
	}
	if r.FormValue("state") != oauthState.Value {
		return fmt.Errorf("invalid oauth state: %s", r.FormValue("state"))
	}
	return nil
}
