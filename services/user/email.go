package user

import (
	"net/mail"
	"strings"
)

const maxEmailLength = 254

// NormalizeEmail trims and lower-cases an address after checking it is a bare
// addr-spec. Display-name forms such as "Alice <a@example.com>" are rejected.
func NormalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" || len(email) > maxEmailLength {
		return "", ErrInvalidEmail
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return "", ErrInvalidEmail
	}

	at := strings.LastIndexByte(email, '@')
	if at <= 0 || !strings.Contains(email[at+1:], ".") {
		return "", ErrInvalidEmail
	}

	return email, nil
}
