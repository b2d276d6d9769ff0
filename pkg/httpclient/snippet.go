package httpclient

import "strings"

const snippetMaxLen = 512

// Snippet trims a response body for inclusion in error messages.
func Snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > snippetMaxLen {
		return s[:snippetMaxLen] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}
