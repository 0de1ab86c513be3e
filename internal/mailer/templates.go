package mailer

import (
	"fmt"
	"html/template"
	"strings"
)

var emailTmpl = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #333; max-width: 560px; margin: 0 auto;">
  <h2>{{.Heading}}</h2>
  <p>Hi {{.Name}},</p>
  <p>{{.Body}}</p>
  {{if .LinkURL}}<p><a href="{{.LinkURL}}" style="background: #4f46e5; color: #fff; padding: 10px 18px; border-radius: 6px; text-decoration: none;">{{.LinkText}}</a></p>
  <p style="color: #777; font-size: 13px;">Or paste this link into your browser: {{.LinkURL}}</p>{{end}}
  <p style="color: #777; font-size: 13px;">{{.Footer}}</p>
</body>
</html>`))

type emailData struct {
	Heading  string
	Name     string
	Body     string
	LinkURL  string
	LinkText string
	Footer   string
}

func render(data emailData) string {
	var b strings.Builder
	// The template only fails on unrenderable values, which emailData cannot contain.
	_ = emailTmpl.Execute(&b, data)
	return b.String()
}

// VerificationEmail builds the account verification message.
func VerificationEmail(to, name, verifyURL string) *Message {
	return &Message{
		To:      to,
		Subject: "Verify your TaskFlow account",
		HTMLBody: render(emailData{
			Heading:  "Welcome to TaskFlow",
			Name:     name,
			Body:     "Confirm your email address to finish setting up your account. This link expires in 24 hours.",
			LinkURL:  verifyURL,
			LinkText: "Verify email",
			Footer:   "If you didn't create a TaskFlow account, you can ignore this email.",
		}),
		TextBody: fmt.Sprintf("Hi %s,\n\nConfirm your email address to finish setting up your TaskFlow account:\n%s\n\nThis link expires in 24 hours.", name, verifyURL),
	}
}

// PasswordResetEmail builds the password reset message.
func PasswordResetEmail(to, name, resetURL string) *Message {
	return &Message{
		To:      to,
		Subject: "Reset your TaskFlow password",
		HTMLBody: render(emailData{
			Heading:  "Password reset requested",
			Name:     name,
			Body:     "We received a request to reset your password. This link expires in 1 hour.",
			LinkURL:  resetURL,
			LinkText: "Reset password",
			Footer:   "If you didn't request a reset, your password is unchanged and you can ignore this email.",
		}),
		TextBody: fmt.Sprintf("Hi %s,\n\nReset your TaskFlow password:\n%s\n\nThis link expires in 1 hour. If you didn't request a reset, ignore this email.", name, resetURL),
	}
}

// NewDeviceEmail builds the login-from-a-new-device alert.
func NewDeviceEmail(to, name, deviceName, ipAddress string) *Message {
	body := fmt.Sprintf("A new sign-in to your account was detected from %s (IP %s). If this was you, no action is needed.", deviceName, ipAddress)
	return &Message{
		To:      to,
		Subject: "New sign-in to your TaskFlow account",
		HTMLBody: render(emailData{
			Heading: "New device sign-in",
			Name:    name,
			Body:    body,
			Footer:  "If you don't recognize this sign-in, reset your password and sign out of all devices.",
		}),
		TextBody: fmt.Sprintf("Hi %s,\n\n%s\n\nIf you don't recognize this sign-in, reset your password and sign out of all devices.", name, body),
	}
}
