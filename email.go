package mailauth

import (
	"fmt"
	"log"
	"net/smtp"
	"strings"
)

// EmailSender interface allows applications to provide their own email sending implementation
type EmailSender interface {
	SendLoginCode(to string, code string) error
}

// ConsoleEmailSender is a development implementation that logs emails to console
type ConsoleEmailSender struct{}

func (c *ConsoleEmailSender) SendLoginCode(to string, code string) error {
	log.Printf("\n=== EMAIL: Login Code ===")
	log.Printf("To: %s", to)
	log.Printf("Subject: Your login code")
	log.Printf("Body: Your one-time login code is: %s", code)
	log.Printf("=========================\n")
	return nil
}

// SMTPEmailSender delivers login codes over plain SMTP with AUTH PLAIN.
type SMTPEmailSender struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

func (s *SMTPEmailSender) SendLoginCode(to string, code string) error {
	msg := strings.Join([]string{
		"From: " + s.From,
		"To: " + to,
		"Subject: Your login code",
		"",
		fmt.Sprintf("Your one-time login code is: %s. It expires in 10 minutes.", code),
	}, "\r\n")

	auth := smtp.PlainAuth("", s.Username, s.Password, s.Host)
	addr := s.Host + ":" + s.Port
	if err := smtp.SendMail(addr, auth, s.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send login code to %s: %w", to, err)
	}
	return nil
}
