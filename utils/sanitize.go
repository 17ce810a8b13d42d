package utils

import (
	"errors"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ErrTitleMarkup is returned for titles that still spell out markup once
// tags are stripped and entities decoded, e.g. "&lt;script&gt;".
var ErrTitleMarkup = errors.New("must not contain markup")

var (
	plainPolicy = bluemonday.StrictPolicy()
	richPolicy  = bluemonday.UGCPolicy()
)

// SanitizeTitle strips all markup from single-line fields such as titles.
// The result is plain text without angle brackets, so it is stored decoded
// and its length matches what users typed.
func SanitizeTitle(input string) (string, error) {
	plain := html.UnescapeString(plainPolicy.Sanitize(input))
	if strings.ContainsAny(plain, "<>") {
		return "", ErrTitleMarkup
	}
	return strings.TrimSpace(plain), nil
}

// Sanitize cleans HTML content to prevent XSS attacks.
func Sanitize(input string) string {
	return richPolicy.Sanitize(input)
}
