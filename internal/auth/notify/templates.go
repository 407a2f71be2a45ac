package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/arvicollection/authcore/internal/auth/domain"
)

type copyText struct {
	Subject string
	Title   string
	Message string
	SMS     string
}

var purposeCopy = map[domain.Purpose]copyText{
	domain.PurposePasswordReset: {
		Subject: "Password Reset Code",
		Title:   "Password Reset Request",
		Message: "You have requested to reset your password. Use the verification code below to complete the process.",
		SMS:     "your password reset code is",
	},
	domain.PurposeMFASetup: {
		Subject: "MFA Setup Verification",
		Title:   "Multi-Factor Authentication Setup",
		Message: "You are setting up multi-factor authentication for your account. Use the verification code below to complete the setup.",
		SMS:     "your MFA setup code is",
	},
	domain.PurposeMFADisable: {
		Subject: "Confirm MFA Removal",
		Title:   "Turn Off Multi-Factor Authentication",
		Message: "A request was made to remove a sign-in method from your account. Use the verification code below to confirm.",
		SMS:     "your code to remove this sign-in method is",
	},
	domain.PurposeLogin: {
		Subject: "Login Verification Code",
		Title:   "Login Verification Required",
		Message: "A login attempt was made to your account. Use the verification code below to complete the login process.",
		SMS:     "your login code is",
	},
}

var fallbackCopy = copyText{
	Subject: "Verification Code",
	Title:   "Verification Required",
	Message: "Use the verification code below to complete your request.",
	SMS:     "your verification code is",
}

func copyFor(p domain.Purpose) copyText {
	if c, ok := purposeCopy[p]; ok {
		return c
	}
	return fallbackCopy
}

var emailTemplate = template.Must(template.New("code").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <div style="text-align: center; margin-bottom: 30px;">
    <h1 style="color: #667eea;">{{.AppName}}</h1>
  </div>
  <div style="background: #f8f9fa; padding: 20px; border-radius: 8px; margin-bottom: 20px;">
    <h2 style="color: #333; margin-top: 0;">{{.Title}}</h2>
    <p style="color: #666; line-height: 1.6;">{{.Message}}</p>
    <div style="text-align: center; margin: 30px 0;">
      <div style="background: #667eea; color: white; padding: 15px 30px; border-radius: 8px; display: inline-block; font-size: 24px; font-weight: bold; letter-spacing: 3px;">{{.Code}}</div>
    </div>
    <p style="color: #999; font-size: 14px; text-align: center;">This code will expire in {{.ExpiresIn}}. If you didn't request this, please ignore this email.</p>
  </div>
  <div style="text-align: center; color: #999; font-size: 12px;">
    <p>&copy; {{.Year}} {{.AppName}}. All rights reserved.</p>
  </div>
</div>
`))

// renderEmail returns the subject and HTML body for code.
func renderEmail(appName string, code Code, now time.Time) (string, string, error) {
	c := copyFor(code.Purpose)

	var body bytes.Buffer
	err := emailTemplate.Execute(&body, map[string]any{
		"AppName":   appName,
		"Title":     c.Title,
		"Message":   c.Message,
		"Code":      code.Value,
		"ExpiresIn": humanDuration(code.ExpiresIn),
		"Year":      now.Year(),
	})
	if err != nil {
		return "", "", fmt.Errorf("notify: render email: %w", err)
	}
	return appName + " - " + c.Subject, body.String(), nil
}

// renderSMS returns the text message body for code.
func renderSMS(appName string, code Code) string {
	return fmt.Sprintf("%s: %s %s. It expires in %s.", appName, copyFor(code.Purpose).SMS, code.Value, humanDuration(code.ExpiresIn))
}

func humanDuration(d time.Duration) string {
	minutes := int(d.Round(time.Minute) / time.Minute)
	if minutes == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}
