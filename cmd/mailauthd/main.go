// Command mailauthd runs the mailauth HTTP service: email one-time-code
// login, Google/GitHub federated login and the legacy username/password
// endpoints, all over an in-memory user registry.
//
// Configuration is environment-only, loaded once at start:
//
//	ADDR                          listen address (default ":8080")
//	MAILAUTH_JWT_SECRET_KEY       HS256 secret for the auth-token cookie
//	SMTP_HOST, SMTP_PORT,         SMTP delivery for login codes; when
//	SMTP_USERNAME, SMTP_PASSWORD, SMTP_HOST is unset codes are logged
//	SMTP_FROM                     to the console instead
//	OAUTH2_GOOGLE_CLIENT_ID, OAUTH2_GOOGLE_CLIENT_SECRET,
//	OAUTH2_GOOGLE_CALLBACK_URL    Google federated login
//	OAUTH2_GITHUB_CLIENT_ID, OAUTH2_GITHUB_CLIENT_SECRET,
//	OAUTH2_GITHUB_CALLBACK_URL    GitHub federated login (optional)
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	ma "github.com/mailauth-io/mailauth"
	"github.com/mailauth-io/mailauth/oauth2"
	"github.com/mailauth-io/mailauth/stores"
)

func main() {
	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSecret := strings.TrimSpace(os.Getenv("MAILAUTH_JWT_SECRET_KEY"))
	if jwtSecret == "" {
		log.Println("MAILAUTH_JWT_SECRET_KEY not set, auth-token cookies disabled")
	}

	session := scs.New()
	session.Lifetime = 24 * time.Hour
	session.Cookie.HttpOnly = true

	users := stores.NewMemoryUserStore()
	codes := stores.NewMemoryCodeStore()

	otp := &ma.OTPAuth{
		Codes:  codes,
		Sender: newEmailSender(),
	}

	binder := &ma.ScsSessionBinder{
		Session:      session,
		JWTSecretKey: jwtSecret,
		JWTIssuer:    "mailauthd",
	}

	auth := &ma.Auth{
		Session:  session,
		Users:    users,
		OTP:      otp,
		Resolver: &ma.IdentityResolver{Users: users},
		Binder:   binder,
		Local:    &ma.LocalAuth{Users: users},
		Middleware: &ma.Middleware{
			Session:      session,
			JWTSecretKey: jwtSecret,
		},
	}

	auth.AddProvider("google", oauth2.NewGoogleOAuth2("", "", ""))
	if os.Getenv("OAUTH2_GITHUB_CLIENT_ID") != "" {
		auth.AddProvider("github", oauth2.NewGithubOAuth2("", "", ""))
	}

	mux := http.NewServeMux()
	mux.Handle("/", auth.Handler())
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "mailauthd login=%s\n", r.URL.Query().Get("login"))
	})

	log.Println("mailauthd listening on", addr)
	if err := http.ListenAndServe(addr, session.LoadAndSave(mux)); err != nil {
		log.Fatal(err)
	}
}

// newEmailSender wires SMTP delivery when configured, console logging
// otherwise.
func newEmailSender() ma.EmailSender {
	host := os.Getenv("SMTP_HOST")
	if host == "" {
		log.Println("SMTP_HOST not set, logging login codes to console")
		return &ma.ConsoleEmailSender{}
	}
	port := os.Getenv("SMTP_PORT")
	if port == "" {
		port = "587"
	}
	from := os.Getenv("SMTP_FROM")
	if from == "" {
		from = os.Getenv("SMTP_USERNAME")
	}
	return &ma.SMTPEmailSender{
		Host:     host,
		Port:     port,
		Username: os.Getenv("SMTP_USERNAME"),
		Password: os.Getenv("SMTP_PASSWORD"),
		From:     from,
	}
}
