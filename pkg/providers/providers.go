package providers

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Package providers contains the external metadata sources used to enrich
// releases.

const (
	TypeSpotify  = "spotify"
	TypeMetallum = "metallum"
)

// Provider describes how to reach one metadata source.
type Provider struct {
	ID             string         `json:"id" yaml:"id"`
	Name           string         `json:"name" yaml:"name"`
	Type           string         `json:"type" yaml:"type"`
	BaseURL        string         `json:"base_url" yaml:"base_url"`
	RequestDelayMs int            `json:"request_delay_ms" yaml:"request_delay_ms"`
	Config         map[string]any `json:"config" yaml:"config"`
}

// ProviderError reports a transport, authentication or decoding failure
// while talking to a provider. Callers treat it as soft: the affected
// candidate or release is skipped and the run continues.
type ProviderError struct {
	Provider   string
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode != 0:
		return fmt.Sprintf("%s %s: status %d: %v", e.Provider, e.Op, e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
	default:
		return fmt.Sprintf("%s %s returned status %d body: %s", e.Provider, e.Op, e.StatusCode, e.Body)
	}
}

func (e *ProviderError) Unwrap() error { return e.Err }

func sanitizeProvider(p Provider) Provider {
	p.ID = strings.TrimSpace(p.ID)
	p.Name = strings.TrimSpace(p.Name)
	p.Type = strings.ToLower(strings.TrimSpace(p.Type))
	p.BaseURL = strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")

	if p.ID == "" {
		p.ID = p.Type
	}
	if p.Name == "" {
		p.Name = p.ID
	}
	if p.Config == nil {
		p.Config = map[string]any{}
	}
	if p.RequestDelayMs < 0 {
		p.RequestDelayMs = 0
	}
	return p
}

func validateProvider(p Provider, wantType string) error {
	if p.ID == "" {
		return errors.New("id is required")
	}
	if p.Type != wantType {
		return fmt.Errorf("provider %q has type %q, want %q", p.ID, p.Type, wantType)
	}
	if p.BaseURL == "" {
		return fmt.Errorf("base_url is required for provider %q", p.ID)
	}
	return nil
}

// RequestDelay returns the minimum spacing between two requests to the provider.
func (p Provider) RequestDelay() time.Duration {
	if p.RequestDelayMs <= 0 {
		return 0
	}
	return time.Duration(p.RequestDelayMs) * time.Millisecond
}
