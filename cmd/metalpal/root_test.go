package main

import "testing"

func TestRootCommandFlags(t *testing.T) {
	cmd := newRootCommand()
	for _, name := range []string{
		"debug", "spotify-client-id", "spotify-client-secret", "slack-token", "slack-channels",
		"whitelisted-genre-keywords", "blacklisted-genre-keywords", "config-path",
		"interactive", "disable-slack", "force-fetch",
	} {
		if cmd.Flags().Lookup(name) == nil {
			t.Fatalf("flag --%s not registered", name)
		}
	}
	if cmd.Flags().ShorthandLookup("c") == nil || cmd.Flags().ShorthandLookup("i") == nil {
		t.Fatalf("short flags missing")
	}
}

func TestRootCommandRejectsArgs(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"unexpected"})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected positional arguments to be rejected")
	}
}
