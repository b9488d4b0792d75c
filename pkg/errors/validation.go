package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// symbolicNameRegex matches bundle symbolic names (reverse domain style,
// dashes and underscores allowed).
var symbolicNameRegex = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9._-]*$`)

// ValidateModuleName validates a module symbolic name before it is used to
// build file names or provider URLs.
//
// The rules are conservative:
//   - No empty names
//   - No control characters
//   - No path traversal sequences or separators
//   - Maximum length of 256 characters
func ValidateModuleName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidInput, "module name cannot be empty")
	}
	if len(name) > 256 {
		return New(ErrCodeInvalidInput, "module name too long (max 256 characters)")
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "module name contains invalid control characters")
		}
	}
	for _, pattern := range []string{"..", "/", "\\", "\x00"} {
		if strings.Contains(name, pattern) {
			return New(ErrCodeInvalidInput, "module name contains invalid characters: %q", pattern)
		}
	}
	if !symbolicNameRegex.MatchString(name) {
		return New(ErrCodeInvalidInput, "invalid module name: %q", name)
	}
	return nil
}

// ValidateVersionText validates the version segment of a download request.
// "latest" is accepted as a keyword.
func ValidateVersionText(v string) error {
	if v == "" {
		return New(ErrCodeInvalidVersion, "version cannot be empty")
	}
	if strings.ContainsAny(v, "/\\\x00") || strings.Contains(v, "..") {
		return New(ErrCodeInvalidVersion, "version contains invalid characters: %q", v)
	}
	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}
	return nil
}
