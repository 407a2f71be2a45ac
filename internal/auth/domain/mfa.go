package domain

import (
	"fmt"
	"time"
)

// Method is a second authentication factor.
type Method string

const (
	MethodTOTP  Method = "totp"
	MethodSMS   Method = "sms"
	MethodEmail Method = "email"
)

// Methods lists every method in the order they are offered to users.
var Methods = []Method{MethodTOTP, MethodSMS, MethodEmail}

// ParseMethod validates a method name supplied by a caller.
func ParseMethod(s string) (Method, error) {
	switch m := Method(s); m {
	case MethodTOTP, MethodSMS, MethodEmail:
		return m, nil
	default:
		return "", fmt.Errorf("unknown mfa method %q", s)
	}
}

// MethodConfig is one entry of User.MFASettings. Secret and PhoneNumber are
// encrypted at rest by the store; BackupCodes hold keyed fingerprints of the
// unused codes.
type MethodConfig struct {
	Enabled     bool       `json:"enabled"`
	Secret      string     `json:"secret,omitempty"`
	PhoneNumber string     `json:"phoneNumber,omitempty"`
	BackupCodes []string   `json:"backupCodes,omitempty"`
	SetupAt     time.Time  `json:"setupAt"`
	VerifiedAt  *time.Time `json:"verifiedAt,omitempty"`
	DisabledAt  *time.Time `json:"disabledAt,omitempty"`
}

// MFAChallenge is a pending second-factor step of a login. ChallengeID is
// the only identifier handed to callers.
type MFAChallenge struct {
	ID               string     `json:"-"`
	ChallengeID      string     `json:"challengeId"`
	UserID           string     `json:"userId"`
	AvailableMethods []Method   `json:"availableMethods"`
	ExpiresAt        time.Time  `json:"expiresAt"`
	Attempts         int        `json:"attempts"`
	MaxAttempts      int        `json:"maxAttempts"`
	Completed        bool       `json:"completed"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
	Method           Method     `json:"method,omitempty"`
	BackupCode       bool       `json:"backupCode,omitempty"`
	CreatedAt        time.Time  `json:"-"`
}

// Offers reports whether m may be used to answer the challenge.
func (c MFAChallenge) Offers(m Method) bool {
	for _, available := range c.AvailableMethods {
		if available == m {
			return true
		}
	}
	return false
}

// MFASetupResult is returned once, when a method is first set up. Secret,
// OTPAuthURL, QRCode and BackupCodes are only populated for TOTP.
type MFASetupResult struct {
	Method      Method   `json:"method"`
	Secret      string   `json:"secret,omitempty"`
	OTPAuthURL  string   `json:"otpauthUrl,omitempty"`
	QRCode      string   `json:"qrCode,omitempty"` // data:image/png;base64,...
	BackupCodes []string `json:"backupCodes,omitempty"`
	Destination string   `json:"destination,omitempty"` // masked phone or email
}

// MFAChallengeResponse tells the caller whether a second factor is needed.
type MFAChallengeResponse struct {
	Required    bool     `json:"required"`
	ChallengeID string   `json:"challengeId,omitempty"`
	Methods     []Method `json:"methods,omitempty"`
}

// MFAStatus summarises a user's MFA configuration without secrets.
type MFAStatus struct {
	Enabled bool                    `json:"enabled"`
	Methods map[Method]MethodStatus `json:"methods"`
}

// MethodStatus is the public view of a MethodConfig.
type MethodStatus struct {
	Enabled              bool       `json:"enabled"`
	Verified             bool       `json:"verified"`
	VerifiedAt           *time.Time `json:"verifiedAt,omitempty"`
	Destination          string     `json:"destination,omitempty"`
	BackupCodesRemaining int        `json:"backupCodesRemaining,omitempty"`
}
