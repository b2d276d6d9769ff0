package publishers

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRegistryEnabledFilter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "publishers.yaml")
	raw := `
publishers:
  - id: http1
    type: http
    enabled: false
    http:
      url: https://example.com
  - id: http2
    type: http
    enabled: true
    http:
      url: https://example.com/2
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	enabled := reg.Enabled()
	if len(enabled) != 1 || enabled[0].ID != "http2" {
		t.Fatalf("expected only http2 enabled, got %#v", enabled)
	}
}

func TestValidatePublisherConfigRejectsMissingHTTP(t *testing.T) {
	err := validatePublisherConfig(PublisherConfig{
		ID:   "h1",
		Type: TypeHTTP,
	})
	if err == nil {
		t.Fatalf("expected validation error for missing http block")
	}
}

func TestSanitizeSlackConfigDefaults(t *testing.T) {
	cfg := sanitizePublisherConfig(PublisherConfig{
		ID:    " slack ",
		Type:  "SLACK",
		Slack: &SlackPublisherConfig{Token: " xoxb ", Channels: []string{" releases ", "", "releases", "metal"}},
	})
	if cfg.ID != "slack" || cfg.Type != TypeSlack {
		t.Fatalf("unexpected id/type %q/%q", cfg.ID, cfg.Type)
	}
	if cfg.Slack.APIURL != slackDefaultAPIURL || cfg.Slack.TimeoutSeconds != slackDefaultTimeoutSeconds {
		t.Fatalf("defaults not applied %#v", cfg.Slack)
	}
	if len(cfg.Slack.Channels) != 2 || cfg.Slack.Channels[0] != "releases" || cfg.Slack.Channels[1] != "metal" {
		t.Fatalf("channels = %#v", cfg.Slack.Channels)
	}
	if err := validatePublisherConfig(cfg); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidatePublisherConfigRequiredFields(t *testing.T) {
	cases := []PublisherConfig{
		{ID: "s", Type: TypeSlack, Slack: &SlackPublisherConfig{Channels: []string{"c"}}},
		{ID: "s", Type: TypeSlack, Slack: &SlackPublisherConfig{Token: "t"}},
		{ID: "n", Type: TypeSNS, SNS: &SNSPublisherConfig{TopicARN: "arn"}},
		{ID: "p", Type: TypePubSub, PubSub: &PubSubPublisherConfig{ProjectID: "proj"}},
		{ID: "q", Type: TypeSQS, SQS: &SQSPublisherConfig{Region: "eu-west-1"}},
	}
	for _, cfg := range cases {
		if err := validatePublisherConfig(cfg); err == nil {
			t.Fatalf("expected validation error for %#v", cfg)
		}
	}
}
