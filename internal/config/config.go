package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	envPrefix = "METALPAL"

	DefaultCalendarURL      = "https://loudwire.com/{year}-hard-rock-metal-album-release-calendar/"
	DefaultCalendarSelector = "div.pod-content > p"
	DefaultSpotifyAPIURL    = "https://api.spotify.com/v1"
	DefaultSpotifyTokenURL  = "https://accounts.spotify.com/api/token"
	DefaultMetallumURL      = "https://www.metal-archives.com"
	DefaultUserAgent        = "metalpal"
)

// Config holds the runtime configuration loaded from flags, environment
// variables and .env files.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	LogLevel string `mapstructure:"log_level"`
	Debug    bool   `mapstructure:"debug"`

	StateType          string        `mapstructure:"state_type"`
	StatePath          string        `mapstructure:"config_path"`
	StateRetentionDays int64         `mapstructure:"state_retention_days"`
	StateRetention     time.Duration `mapstructure:"-"`

	CalendarURL        string        `mapstructure:"calendar_url"`
	CalendarSelector   string        `mapstructure:"calendar_selector"`
	FetchIntervalHours int64         `mapstructure:"fetch_interval_hours"`
	FetchInterval      time.Duration `mapstructure:"-"`
	HTTPTimeoutSeconds int64         `mapstructure:"http_timeout_seconds"`
	HTTPTimeout        time.Duration `mapstructure:"-"`
	UserAgent          string        `mapstructure:"user_agent"`

	SpotifyAPIURL     string `mapstructure:"spotify_api_url"`
	SpotifyTokenURL   string `mapstructure:"spotify_token_url"`
	MetallumURL       string `mapstructure:"metallum_url"`
	EnrichConcurrency int    `mapstructure:"enrich_concurrency"`

	PublishersFile string `mapstructure:"publishers_file"`
	DisableSlack   bool   `mapstructure:"disable_slack"`
	ForceFetch     bool   `mapstructure:"force_fetch"`
	Interactive    bool   `mapstructure:"interactive"`

	// Settings carries the values supplied on this invocation. They are
	// merged over whatever the state store already holds.
	Settings Settings `mapstructure:",squash"`
}

// Settings are the user-facing preferences persisted alongside the release
// history.
type Settings struct {
	SpotifyClientID          string   `mapstructure:"spotify_client_id" json:"spotify_client_id" validate:"required"`
	SpotifyClientSecret      string   `mapstructure:"spotify_client_secret" json:"spotify_client_secret" validate:"required"`
	SlackBotToken            string   `mapstructure:"slack_token" json:"slack_bot_token"`
	SlackChannels            []string `mapstructure:"slack_channels" json:"slack_channels" validate:"omitempty,dive,required"`
	WhitelistedGenreKeywords []string `mapstructure:"whitelisted_genre_keywords" json:"whitelisted_genre_keywords" validate:"omitempty,dive,required"`
	BlacklistedGenreKeywords []string `mapstructure:"blacklisted_genre_keywords" json:"blacklisted_genre_keywords" validate:"omitempty,dive,required"`
}

// ConfigError reports invalid or missing configuration. It is always fatal.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("config: %v", e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// flagBindings maps viper keys to CLI flag names.
var flagBindings = map[string]string{
	"debug":                      "debug",
	"spotify_client_id":          "spotify-client-id",
	"spotify_client_secret":      "spotify-client-secret",
	"slack_token":                "slack-token",
	"slack_channels":             "slack-channels",
	"whitelisted_genre_keywords": "whitelisted-genre-keywords",
	"blacklisted_genre_keywords": "blacklisted-genre-keywords",
	"config_path":                "config-path",
	"interactive":                "interactive",
	"disable_slack":              "disable-slack",
	"force_fetch":                "force-fetch",
}

// RegisterFlags declares the CLI surface on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.BoolP("debug", "d", false, "Enable debug output")
	fs.String("spotify-client-id", "", "Spotify client id")
	fs.String("spotify-client-secret", "", "Spotify client secret")
	fs.String("slack-token", "", "Slack bot token")
	fs.StringSlice("slack-channels", nil, "Slack channels to notify (comma separated)")
	fs.StringSlice("whitelisted-genre-keywords", nil, "Genre keywords that force a release to be kept")
	fs.StringSlice("blacklisted-genre-keywords", nil, "Genre keywords that force a release to be skipped")
	fs.StringP("config-path", "c", "", "Path to metalpal state file")
	fs.BoolP("interactive", "i", false, "Run in interactive mode")
	fs.Bool("disable-slack", false, "Disable slack notifications")
	fs.Bool("force-fetch", false, "Fetch the release calendar even if the stored copy is fresh")
}

// Load reads configuration from the .env file, environment variables and
// flags. flags may be nil.
func Load(flags *pflag.FlagSet) (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "metalpal")
	v.SetDefault("log_level", "info")
	v.SetDefault("debug", false)
	v.SetDefault("state_type", "json")
	v.SetDefault("config_path", "")
	v.SetDefault("state_retention_days", 0)
	v.SetDefault("calendar_url", DefaultCalendarURL)
	v.SetDefault("calendar_selector", DefaultCalendarSelector)
	v.SetDefault("fetch_interval_hours", 24)
	v.SetDefault("http_timeout_seconds", 30)
	v.SetDefault("user_agent", DefaultUserAgent)
	v.SetDefault("spotify_api_url", DefaultSpotifyAPIURL)
	v.SetDefault("spotify_token_url", DefaultSpotifyTokenURL)
	v.SetDefault("metallum_url", DefaultMetallumURL)
	v.SetDefault("enrich_concurrency", 1)
	v.SetDefault("publishers_file", "")
	v.SetDefault("disable_slack", false)
	v.SetDefault("force_fetch", false)
	v.SetDefault("interactive", false)
	v.SetDefault("spotify_client_id", "")
	v.SetDefault("spotify_client_secret", "")
	v.SetDefault("slack_token", "")
	v.SetDefault("slack_channels", []string{})
	v.SetDefault("whitelisted_genre_keywords", []string{})
	v.SetDefault("blacklisted_genre_keywords", []string{})

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if flags != nil {
		for key, name := range flagBindings {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, &ConfigError{Field: key, Err: err}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigError{Err: fmt.Errorf("unmarshal config: %w", err)}
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	if c.FetchIntervalHours <= 0 {
		return &ConfigError{Field: "fetch_interval_hours", Err: errors.New("must be positive hours")}
	}
	c.FetchInterval = time.Duration(c.FetchIntervalHours) * time.Hour

	if c.HTTPTimeoutSeconds <= 0 {
		return &ConfigError{Field: "http_timeout_seconds", Err: errors.New("must be positive seconds")}
	}
	c.HTTPTimeout = time.Duration(c.HTTPTimeoutSeconds) * time.Second

	if c.StateRetentionDays < 0 {
		return &ConfigError{Field: "state_retention_days", Err: errors.New("must not be negative")}
	}
	c.StateRetention = time.Duration(c.StateRetentionDays) * 24 * time.Hour

	if c.EnrichConcurrency <= 0 {
		c.EnrichConcurrency = 1
	}

	c.StateType = strings.ToLower(strings.TrimSpace(c.StateType))
	c.StatePath = strings.TrimSpace(c.StatePath)
	if c.StatePath == "" {
		c.StatePath = defaultStatePath(c.StateType)
	}
	if strings.TrimSpace(c.CalendarURL) == "" {
		return &ConfigError{Field: "calendar_url", Err: errors.New("calendar url is empty")}
	}

	c.Settings = c.Settings.Sanitize()
	return nil
}

// defaultStateFiles names the state file in the home directory per backend.
var defaultStateFiles = map[string]string{
	"json":   ".metalpal.json",
	"bbolt":  ".metalpal.db",
	"sqlite": ".metalpal.sqlite",
}

func defaultStatePath(stateType string) string {
	name, ok := defaultStateFiles[stateType]
	if !ok {
		name = defaultStateFiles["json"]
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return name
	}
	return filepath.Join(home, name)
}

// Sanitize trims values and drops empty list entries.
func (s Settings) Sanitize() Settings {
	s.SpotifyClientID = strings.TrimSpace(s.SpotifyClientID)
	s.SpotifyClientSecret = strings.TrimSpace(s.SpotifyClientSecret)
	s.SlackBotToken = strings.TrimSpace(s.SlackBotToken)
	s.SlackChannels = cleanList(s.SlackChannels)
	s.WhitelistedGenreKeywords = cleanList(s.WhitelistedGenreKeywords)
	s.BlacklistedGenreKeywords = cleanList(s.BlacklistedGenreKeywords)
	return s
}

// IsZero reports whether no setting has been supplied.
func (s Settings) IsZero() bool {
	return s.SpotifyClientID == "" && s.SpotifyClientSecret == "" && s.SlackBotToken == "" &&
		len(s.SlackChannels) == 0 && len(s.WhitelistedGenreKeywords) == 0 && len(s.BlacklistedGenreKeywords) == 0
}

// Merge returns s with every non-empty field of override applied on top.
func (s Settings) Merge(override Settings) Settings {
	if override.SpotifyClientID != "" {
		s.SpotifyClientID = override.SpotifyClientID
	}
	if override.SpotifyClientSecret != "" {
		s.SpotifyClientSecret = override.SpotifyClientSecret
	}
	if override.SlackBotToken != "" {
		s.SlackBotToken = override.SlackBotToken
	}
	if len(override.SlackChannels) > 0 {
		s.SlackChannels = override.SlackChannels
	}
	if len(override.WhitelistedGenreKeywords) > 0 {
		s.WhitelistedGenreKeywords = override.WhitelistedGenreKeywords
	}
	if len(override.BlacklistedGenreKeywords) > 0 {
		s.BlacklistedGenreKeywords = override.BlacklistedGenreKeywords
	}
	return s
}

// Validate checks that the settings can drive a run.
func (s Settings) Validate() error {
	if err := validator.New().Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &ConfigError{Field: verrs[0].Field(), Err: fmt.Errorf("failed %q validation", verrs[0].Tag())}
		}
		return &ConfigError{Err: err}
	}
	return nil
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, raw := range in {
		for _, part := range strings.Split(raw, ",") {
			if v := strings.TrimSpace(part); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}
