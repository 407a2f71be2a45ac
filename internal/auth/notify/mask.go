package notify

import "strings"

// MaskPhone hides all but the first three and last four characters of a
// phone number: "+15551234567" becomes "+15*****4567".
func MaskPhone(phone string) string {
	r := []rune(phone)
	if len(r) <= 7 {
		return strings.Repeat("*", len(r))
	}
	return string(r[:3]) + strings.Repeat("*", len(r)-7) + string(r[len(r)-4:])
}

// MaskEmail keeps the first two characters of the local part:
// "shopper@example.com" becomes "sh*****@example.com".
func MaskEmail(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at < 0 {
		return MaskPhone(email)
	}
	local := []rune(email[:at])
	keep := min(2, len(local))
	return string(local[:keep]) + strings.Repeat("*", len(local)-keep) + email[at:]
}

// MaskDestination masks to according to the channel it belongs to.
func MaskDestination(channel, to string) string {
	if channel == "sms" {
		return MaskPhone(to)
	}
	return MaskEmail(to)
}
