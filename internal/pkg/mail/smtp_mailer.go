package mail

import (
	"fmt"
	"log"
	"net/smtp"
	"strings"

	"github.com/skillmarket/SkillMarket/internal/pkg/env"
)

// SendMail sends an HTML email via SMTP
func SendMail(to string, subject string, body string) error {
	host := env.GetEnv("SMTP_HOST", "")
	port := env.GetEnv("SMTP_PORT", "")
	username := env.GetEnv("SMTP_USERNAME", "")
	password := env.GetEnv("SMTP_PASSWORD", "")
	sender := env.GetEnv("SMTP_SENDER", "")

	if host == "" {
		log.Printf("SMTP_HOST not set, skipping mail to %s (%s)", to, subject)
		return nil
	}
	if sender == "" {
		sender = fmt.Sprintf("no-reply@%s", "localhost")
		log.Printf("SMTP_SENDER not set, using default sender: %s", sender)
	}

	var auth smtp.Auth
	if username != "" && password != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	addr := fmt.Sprintf("%s:%s", host, port)

	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", sender, to, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			body,
	)

	err := smtp.SendMail(addr, auth, sender, []string{to}, msg)
	if err != nil {
		log.Printf("SMTP send error: %v", err)
	} else {
		log.Printf("Email sent to %s via %s", to, addr)
	}
	return err
}

// SendPurchaseReceipt mails a purchase confirmation. Amount is in the
// smallest currency unit.
func SendPurchaseReceipt(to string, productTitle string, amount int64, currency string) error {
	if currency == "" {
		currency = "eur"
	}
	subject := fmt.Sprintf("Your purchase: %s", productTitle)
	body := fmt.Sprintf(
		"<p>Thanks for your purchase!</p>"+
			"<p><strong>%s</strong><br>%.2f %s</p>"+
			"<p>You can access your content from your library at any time.</p>",
		productTitle, float64(amount)/100, strings.ToUpper(currency),
	)
	return SendMail(to, subject, body)
}
