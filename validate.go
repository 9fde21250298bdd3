package stellarauth

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

var emailPattern = regexp.MustCompile(
	`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`,
)

// commonPasswords are rejected outright regardless of composition.
var commonPasswords = map[string]struct{}{
	"password":    {},
	"123456":      {},
	"12345678":    {},
	"qwerty":      {},
	"abc123":      {},
	"password123": {},
	"password1":   {},
	"letmein":     {},
}

// foldEmail normalizes an email for storage and lookup.
func foldEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	if email == "" || len(email) > 254 {
		return false
	}
	local, _, found := strings.Cut(email, "@")
	if !found || len(local) > 64 {
		return false
	}
	if strings.Contains(email, "..") || strings.Contains(email, ".@") || strings.Contains(email, "@.") {
		return false
	}
	return emailPattern.MatchString(email)
}

// checkPasswordPolicy enforces the account password policy: 8-128
// characters with at least one uppercase letter, one lowercase letter,
// and one digit, and not on the common-password blacklist. Violation
// details are safe to surface to the account holder.
func checkPasswordPolicy(pw string) error {
	var problems []string

	if len(pw) < 8 {
		problems = append(problems, "at least 8 characters")
	}
	if len(pw) > 128 {
		problems = append(problems, "maximum 128 characters")
	}

	var hasUpper, hasLower, hasDigit bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasUpper {
		problems = append(problems, "at least one uppercase letter")
	}
	if !hasLower {
		problems = append(problems, "at least one lowercase letter")
	}
	if !hasDigit {
		problems = append(problems, "at least one number")
	}

	if _, common := commonPasswords[strings.ToLower(pw)]; common {
		problems = append(problems, "not a commonly used password")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: password must be %s", ErrPasswordPolicy, strings.Join(problems, ", "))
	}
	return nil
}

// sanitizeInput strips control characters and markup-significant
// characters from free-text input before it reaches storage or logs.
func sanitizeInput(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if r < 0x20 || r == 0x7F {
			continue
		}
		switch r {
		case '<', '>', '"', '\'', '&':
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
