package domain

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const MinContactLength = 10

// Unanchored on purpose: the address only has to contain this shape.
var emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)

func trim(s string) string {
	return strings.TrimSpace(s)
}

func isBlank(s string) bool {
	return trim(s) == ""
}

func validateContact(contact string) error {
	c := trim(contact)
	if c == "" {
		return invalid("contact", "is required")
	}
	if utf8.RuneCountInString(c) < MinContactLength {
		return invalid("contact", "must be at least 10 characters")
	}
	return nil
}

func validateEmail(email string) error {
	e := trim(email)
	if e == "" {
		return nil
	}
	if !emailPattern.MatchString(e) {
		return invalid("email", "must be a valid email address")
	}
	return nil
}
