package domain

import "time"

// User is a storefront account as seen by the credential and MFA core.
// Phone is personal data and is encrypted at rest by the store.
type User struct {
	ID                string                  `json:"-"`
	Email             string                  `json:"email"` // lower-cased, unique
	Name              string                  `json:"name,omitempty"`
	Phone             string                  `json:"phone,omitempty"`
	PasswordHash      string                  `json:"password"` // argon2id PHC, or legacy bcrypt
	MFAEnabled        bool                    `json:"mfaEnabled"`
	MFASettings       map[Method]MethodConfig `json:"mfaSettings,omitempty"`
	LoginAttempts     int                     `json:"loginAttempts"`
	AccountLocked     bool                    `json:"accountLocked"`
	LockUntil         *time.Time              `json:"lockUntil,omitempty"`
	LastLogin         *time.Time              `json:"lastLogin,omitempty"`
	TokenVersion      int                     `json:"tokenVersion"`
	PasswordChangedAt *time.Time              `json:"passwordChangedAt,omitempty"`
	CreatedAt         time.Time               `json:"-"`
	UpdatedAt         time.Time               `json:"-"`
}

// Method returns the configuration for m and whether one exists.
func (u User) Method(m Method) (MethodConfig, bool) {
	cfg, ok := u.MFASettings[m]
	return cfg, ok
}

// EnabledMethods lists the user's enabled MFA methods in canonical order.
func (u User) EnabledMethods() []Method {
	var out []Method
	for _, m := range Methods {
		if cfg, ok := u.MFASettings[m]; ok && cfg.Enabled {
			out = append(out, m)
		}
	}
	return out
}

// HasEnabledMethod reports whether any MFA method is enabled.
func (u User) HasEnabledMethod() bool {
	return len(u.EnabledMethods()) > 0
}

// LockedAt reports whether the account is locked at now.
func (u User) LockedAt(now time.Time) bool {
	return u.AccountLocked && u.LockUntil != nil && now.Before(*u.LockUntil)
}
