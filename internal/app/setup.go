package app

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/samvad-hq/metalpal/internal/config"
)

// Prompter asks the user for settings. current holds what is already known
// and is offered as the default answer.
type Prompter func(current config.Settings) (config.Settings, error)

// TerminalPrompt prompts on stdin and stdout.
func TerminalPrompt(current config.Settings) (config.Settings, error) {
	return Prompt(os.Stdin, os.Stdout, current)
}

// Prompt runs the interactive setup. The Spotify credentials are required
// and asked for again until given; everything else may be left empty. An
// empty answer keeps the current value.
func Prompt(in io.Reader, out io.Writer, current config.Settings) (config.Settings, error) {
	p := &prompter{in: bufio.NewScanner(in), out: out}
	s := current

	var err error
	if s.SpotifyClientID, err = p.required("Spotify client id", current.SpotifyClientID, false); err != nil {
		return current, err
	}
	if s.SpotifyClientSecret, err = p.required("Spotify client secret", current.SpotifyClientSecret, true); err != nil {
		return current, err
	}
	if s.SlackBotToken, err = p.optional("Slack bot token", current.SlackBotToken, true); err != nil {
		return current, err
	}
	if s.SlackChannels, err = p.list("Slack channels", current.SlackChannels); err != nil {
		return current, err
	}
	if s.WhitelistedGenreKeywords, err = p.list("Whitelisted genre keywords", current.WhitelistedGenreKeywords); err != nil {
		return current, err
	}
	if s.BlacklistedGenreKeywords, err = p.list("Blacklisted genre keywords", current.BlacklistedGenreKeywords); err != nil {
		return current, err
	}
	return s.Sanitize(), nil
}

type prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

const maskedValue = "****"

// ask prints label with the current value as default. Secrets are masked.
func (p *prompter) ask(label, current string, secret bool) (string, error) {
	shown := current
	if secret && shown != "" {
		shown = maskedValue
	}
	if shown != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", label, shown)
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
		}
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), io.ErrUnexpectedEOF)
	}
	answer := strings.TrimSpace(p.in.Text())
	if answer == "" {
		return current, nil
	}
	return answer, nil
}

func (p *prompter) required(label, current string, secret bool) (string, error) {
	for {
		v, err := p.ask(label, current, secret)
		if err != nil {
			return "", err
		}
		if v != "" {
			return v, nil
		}
		fmt.Fprintf(p.out, "%s is required\n", label)
	}
}

func (p *prompter) optional(label, current string, secret bool) (string, error) {
	v, err := p.ask(label+" (optional)", current, secret)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return current, nil
	}
	return v, err
}

func (p *prompter) list(label string, current []string) ([]string, error) {
	v, err := p.optional(label+", comma separated", strings.Join(current, ","), false)
	if err != nil {
		return current, err
	}
	if v == "" {
		return nil, nil
	}
	return strings.Split(v, ","), nil
}
