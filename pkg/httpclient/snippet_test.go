package httpclient

import (
	"strings"
	"testing"
)

func TestSnippet(t *testing.T) {
	if got := Snippet([]byte("  \n")); got != "<empty>" {
		t.Fatalf("Snippet(blank) = %q", got)
	}
	if got := Snippet([]byte(" rate limited \n")); got != "rate limited" {
		t.Fatalf("Snippet = %q", got)
	}
	long := Snippet([]byte(strings.Repeat("x", 600)))
	if len(long) != snippetMaxLen+3 || !strings.HasSuffix(long, "...") {
		t.Fatalf("long body not truncated: %d bytes", len(long))
	}
}
