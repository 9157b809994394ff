// Package privacy removes credentials and tokens from text that ends up in
// logs, notifications and telemetry.
package privacy

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	// scheme://anything-up-to-whitespace; covers shoutrrr service URLs and broker addresses.
	urlPattern = regexp.MustCompile(`\b[a-zA-Z][a-zA-Z0-9+.\-]*://[^\s"'<>]+`)

	// user:password@tcp(host:port)/db style MySQL DSNs.
	dsnPattern = regexp.MustCompile(`([^\s:/@]+):([^\s@]+)@(tcp|unix)\(`)
)

// ScrubMessage replaces every URL in message with its redacted form and
// masks DSN passwords.
func ScrubMessage(message string) string {
	message = dsnPattern.ReplaceAllString(message, "$1:***@$3(")
	return urlPattern.ReplaceAllStringFunc(message, RedactURL)
}

// RedactURL keeps the scheme and host of rawURL and drops credentials, path
// and query, which carry tokens for most push services.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" {
		return "[redacted-url]"
	}
	var b strings.Builder
	b.WriteString(u.Scheme)
	b.WriteString("://")
	if u.User != nil {
		b.WriteString("***@")
	}
	b.WriteString(u.Host)
	if (u.Path != "" && u.Path != "/") || u.RawQuery != "" || u.Opaque != "" {
		b.WriteString("/***")
	}
	return b.String()
}

// SanitizedError keeps the original error chain but reports a scrubbed message.
type SanitizedError struct {
	original     error
	sanitizedMsg string
}

func (e *SanitizedError) Error() string { return e.sanitizedMsg }
func (e *SanitizedError) Unwrap() error { return e.original }

// WrapError scrubs err's message. A nil error stays nil.
func WrapError(err error) error {
	if err == nil {
		return nil
	}
	return &SanitizedError{original: err, sanitizedMsg: ScrubMessage(err.Error())}
}
