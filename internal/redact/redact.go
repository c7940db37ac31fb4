// Package redact scrubs credential shapes out of driver error text and
// caps its length before it is surfaced to callers.
package redact

import (
	"regexp"
	"unicode/utf8"
)

// maxMessageLength caps surfaced error text. Driver messages can embed
// whole connection strings; callers never need more than this.
const maxMessageLength = 500

type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

var rules = []rule{
	// key=value credential fields in libpq-style conninfo strings
	{regexp.MustCompile(`(?i)(password|passwd|pwd)=\S+`), "$1=***"},
	// userinfo in connection URLs
	{regexp.MustCompile(`://([^:/@\s]+):[^@\s]+@`), "://$1:***@"},
}

// Message returns a version of msg safe to surface: known credential
// shapes are masked and the text is capped at a rune boundary.
func Message(msg string) string {
	for _, r := range rules {
		msg = r.pattern.ReplaceAllString(msg, r.replacement)
	}
	if len(msg) <= maxMessageLength {
		return msg
	}
	cut := maxMessageLength
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut] + "...[truncated]"
}
