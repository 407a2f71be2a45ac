package domain

import (
	"fmt"
	"time"
)

// Purpose scopes a verification code to the flow that issued it.
type Purpose string

const (
	PurposeLogin         Purpose = "login"
	PurposeMFASetup      Purpose = "mfa_setup"
	PurposeMFADisable    Purpose = "mfa_disable"
	PurposePasswordReset Purpose = "password_reset"
)

// ParsePurpose validates a purpose name supplied by a caller.
func ParsePurpose(s string) (Purpose, error) {
	switch p := Purpose(s); p {
	case PurposeLogin, PurposeMFASetup, PurposeMFADisable, PurposePasswordReset:
		return p, nil
	default:
		return "", fmt.Errorf("unknown code purpose %q", s)
	}
}

// VerificationCode is a one-time numeric code delivered over SMS or email.
// Only its keyed fingerprint is stored.
type VerificationCode struct {
	ID          string     `json:"-"`
	UserID      string     `json:"userId"`
	CodeHash    string     `json:"codeHash"`
	Method      Method     `json:"method"`
	Purpose     Purpose    `json:"purpose"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"maxAttempts"`
	ExpiresAt   time.Time  `json:"expiresAt"`
	Used        bool       `json:"used"`
	Locked      bool       `json:"locked"`
	VerifiedAt  *time.Time `json:"verifiedAt,omitempty"`
	RetiredAt   *time.Time `json:"retiredAt,omitempty"`
	LockedAt    *time.Time `json:"lockedAt,omitempty"`
	CreatedAt   time.Time  `json:"-"`
}

// Open reports whether the code has been neither used nor locked.
func (c VerificationCode) Open() bool {
	return !c.Used && !c.Locked
}

// ActiveAt reports whether the code can still be redeemed at now.
func (c VerificationCode) ActiveAt(now time.Time) bool {
	return c.Open() && now.Before(c.ExpiresAt) && c.Attempts < c.MaxAttempts
}

// PasswordResetRequest tracks one forgot-password flow. ResetToken is handed
// to the caller; the code itself is only stored as a fingerprint. Requests
// for unknown emails are stored with an empty UserID so they behave exactly
// like real ones without ever verifying.
type PasswordResetRequest struct {
	ID            string     `json:"-"`
	UserID        string     `json:"userId"`
	Email         string     `json:"email"`
	ResetToken    string     `json:"resetToken"`
	ResetCodeHash string     `json:"resetCodeHash"`
	ExpiresAt     time.Time  `json:"expiresAt"`
	Attempts      int        `json:"attempts"`
	MaxAttempts   int        `json:"maxAttempts"`
	LastAttemptAt *time.Time `json:"lastAttemptAt,omitempty"`
	Verified      bool       `json:"verified"`
	VerifiedAt    *time.Time `json:"verifiedAt,omitempty"`
	Used          bool       `json:"used"`
	UsedAt        *time.Time `json:"usedAt,omitempty"`
	CreatedAt     time.Time  `json:"-"`
}

// PasswordResetInitiation is returned for every reset request, whether or
// not the email belongs to an account.
type PasswordResetInitiation struct {
	Message    string `json:"message"`
	ResetToken string `json:"resetToken"`
}

// LoginResult is the outcome of a successful password check. When
// MFARequired is set the caller must answer ChallengeID before a session is
// issued.
type LoginResult struct {
	UserID      string   `json:"userId"`
	MFARequired bool     `json:"mfaRequired"`
	ChallengeID string   `json:"challengeId,omitempty"`
	Methods     []Method `json:"methods,omitempty"`
	Session     *Session `json:"session,omitempty"`
}

// Session is a signed session grant.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}
