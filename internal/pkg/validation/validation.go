package validation

import "regexp"

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func IsValidEmail(email string) bool {
	return emailRe.MatchString(email)
}

// IsValidPassword requires a minimum length of 6, matching the mobile
// client's registration form.
func IsValidPassword(password string) bool {
	return len(password) >= 6
}
