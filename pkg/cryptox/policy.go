package cryptox

import (
	"regexp"
	"unicode"
	"unicode/utf8"
)

// Password length bounds, counted in characters.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 128
)

// Strength is an informational rating of a password.
type Strength string

const (
	StrengthVeryWeak   Strength = "very-weak"
	StrengthWeak       Strength = "weak"
	StrengthMedium     Strength = "medium"
	StrengthStrong     Strength = "strong"
	StrengthVeryStrong Strength = "very-strong"
)

// PasswordValidation is the outcome of ValidatePassword. Errors holds one
// human readable message per violated rule.
type PasswordValidation struct {
	Valid    bool
	Errors   []string
	Score    int
	Strength Strength
}

var commonSequence = regexp.MustCompile(`(?i)123456|654321|qwerty|password|admin`)

// ValidatePassword checks a candidate password against the storefront
// policy and rates its strength. The rating never affects Valid.
func ValidatePassword(password string) PasswordValidation {
	var errs []string

	length := utf8.RuneCountInString(password)
	if length < MinPasswordLength {
		errs = append(errs, "Password must be at least 8 characters long")
	}
	if length > MaxPasswordLength {
		errs = append(errs, "Password must be less than 128 characters")
	}

	classes := classify(password)
	if !classes.upper {
		errs = append(errs, "Password must contain at least one uppercase letter")
	}
	if !classes.lower {
		errs = append(errs, "Password must contain at least one lowercase letter")
	}
	if !classes.digit {
		errs = append(errs, "Password must contain at least one number")
	}
	if !classes.special {
		errs = append(errs, "Password must contain at least one special character")
	}
	if hasRepeatedRun(password, 3) {
		errs = append(errs, "Password must not repeat the same character three or more times in a row")
	}
	if commonSequence.MatchString(password) {
		errs = append(errs, "Password must not contain common sequences")
	}

	score := scorePassword(password, length, classes)
	return PasswordValidation{
		Valid:    len(errs) == 0,
		Errors:   errs,
		Score:    score,
		Strength: strengthFor(score),
	}
}

type charClasses struct {
	upper, lower, digit, special bool
}

func classify(password string) charClasses {
	var c charClasses
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			c.upper = true
		case unicode.IsLower(r):
			c.lower = true
		case unicode.IsDigit(r):
			c.digit = true
		case unicode.IsSpace(r), unicode.IsLetter(r):
		default:
			c.special = true
		}
	}
	return c
}

// hasRepeatedRun reports whether the same rune occurs n or more times in a row.
func hasRepeatedRun(s string, n int) bool {
	var prev rune
	run := 0
	for i, r := range []rune(s) {
		if i > 0 && r == prev {
			run++
		} else {
			run = 1
		}
		if run >= n {
			return true
		}
		prev = r
	}
	return false
}

func scorePassword(password string, length int, c charClasses) int {
	score := min(length*2, 20)
	if c.lower {
		score += 5
	}
	if c.upper {
		score += 5
	}
	if c.digit {
		score += 5
	}
	if c.special {
		score += 10
	}

	unique := make(map[rune]struct{}, length)
	for _, r := range password {
		unique[r] = struct{}{}
	}
	score += len(unique) * 2

	if hasRepeatedRun(password, 3) {
		score -= 10
	}
	if commonSequence.MatchString(password) {
		score -= 20
	}
	return max(0, min(100, score))
}

func strengthFor(score int) Strength {
	switch {
	case score >= 80:
		return StrengthVeryStrong
	case score >= 60:
		return StrengthStrong
	case score >= 40:
		return StrengthMedium
	case score >= 20:
		return StrengthWeak
	default:
		return StrengthVeryWeak
	}
}
