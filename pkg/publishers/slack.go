package publishers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/samvad-hq/metalpal/internal/domain"
	"github.com/samvad-hq/metalpal/pkg/httpclient"
)

const (
	slackPostMessage = "chat.postMessage"
	slackColor       = "#36a64f"
	slackFooter      = "Metalpal"
	slackFooterIcon  = "https://emojis.slackmojis.com/emojis/images/1648645351/56886/metal.png?1648645351"
)

// slackPublisher announces the digest on every configured channel: one
// header message followed by one attachment message per release.
type slackPublisher struct {
	id       string
	token    string
	apiURL   string
	channels []string
	client   *resty.Client
	now      func() time.Time
	log      Logger
}

type slackMessage struct {
	Channel     string            `json:"channel"`
	Text        string            `json:"text,omitempty"`
	Attachments []slackAttachment `json:"attachments,omitempty"`
}

type slackAttachment struct {
	Color      string       `json:"color"`
	Title      string       `json:"title"`
	TitleLink  string       `json:"title_link,omitempty"`
	ThumbURL   string       `json:"thumb_url,omitempty"`
	Fields     []slackField `json:"fields"`
	Footer     string       `json:"footer"`
	FooterIcon string       `json:"footer_icon"`
	Ts         int64        `json:"ts"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func newSlackPublisher(_ context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	if cfg.Slack == nil {
		return nil, fmt.Errorf("publisher %q missing slack configuration", cfg.ID)
	}

	apiURL := cfg.Slack.APIURL
	if apiURL == "" {
		apiURL = slackDefaultAPIURL
	}
	timeout := cfg.Slack.TimeoutSeconds
	if timeout <= 0 {
		timeout = slackDefaultTimeoutSeconds
	}

	return &slackPublisher{
		id:       cfg.ID,
		token:    cfg.Slack.Token,
		apiURL:   apiURL,
		channels: append([]string(nil), cfg.Slack.Channels...),
		client:   httpclient.NewRestyHTTPClient(time.Duration(timeout) * time.Second),
		now:      time.Now,
		log:      ensureLogger(log),
	}, nil
}

func (s *slackPublisher) ID() string   { return s.id }
func (s *slackPublisher) Type() string { return TypeSlack }

// Publish posts the digest. Replies that cannot be decoded are collected
// as ErrMalformedResponse and do not stop delivery; any other failure
// aborts immediately.
func (s *slackPublisher) Publish(ctx context.Context, evt Event) error {
	if len(evt.Releases) == 0 {
		return nil
	}

	var malformed []error
	post := func(msg slackMessage) error {
		err := s.post(ctx, msg)
		if errors.Is(err, ErrMalformedResponse) {
			s.log.WarnObj("slack reply could not be decoded", "publisher_slack_malformed", map[string]any{
				"publisher_id": s.id,
				"channel":      msg.Channel,
				"error":        err.Error(),
			})
			malformed = append(malformed, err)
			return nil
		}
		return err
	}

	ts := s.now().Unix()
	for _, ch := range s.channels {
		header := slackMessage{
			Channel: ch,
			Text:    fmt.Sprintf(":tada: There are *%d* releases today! :tada:", len(evt.Releases)),
		}
		if err := post(header); err != nil {
			return err
		}
		for i, r := range evt.Releases {
			msg := slackMessage{
				Channel:     ch,
				Attachments: []slackAttachment{releaseAttachment(i+1, r, ts)},
			}
			if err := post(msg); err != nil {
				return err
			}
		}
		s.log.InfoObj("slack digest posted", "publisher_slack_delivery", map[string]any{
			"publisher_id": s.id,
			"channel":      ch,
			"releases":     len(evt.Releases),
		})
	}
	return errors.Join(malformed...)
}

func (s *slackPublisher) post(ctx context.Context, msg slackMessage) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(s.token).
		SetHeader("Content-Type", "application/json; charset=utf-8").
		SetBody(msg).
		Post(s.apiURL + "/" + slackPostMessage)
	if err != nil {
		return fmt.Errorf("slack %s to %s: %w", slackPostMessage, msg.Channel, err)
	}
	if resp.IsError() {
		return fmt.Errorf("slack %s to %s: status %d: %s", slackPostMessage, msg.Channel, resp.StatusCode(), httpclient.Snippet(resp.Body()))
	}

	var out slackResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return fmt.Errorf("%w: slack %s to %s: %v", ErrMalformedResponse, slackPostMessage, msg.Channel, err)
	}
	if !out.OK {
		return &SlackAPIError{Method: slackPostMessage, Channel: msg.Channel, Code: out.Error}
	}
	return nil
}

func releaseAttachment(pos int, r domain.Release, ts int64) slackAttachment {
	att := slackAttachment{
		Color:      slackColor,
		Title:      fmt.Sprintf("%d. %s - %s", pos, r.Artist, r.Album),
		Footer:     slackFooter,
		FooterIcon: slackFooterIcon,
		Ts:         ts,
	}

	var genre, country string
	if r.Archive != nil {
		att.TitleLink = r.Archive.URL
		att.ThumbURL = r.Archive.ImageURL
		genre = r.Archive.Genre
		country = r.Archive.CountryOrigin
	}
	var popularity, followers, artistID string
	if r.Popularity != nil {
		popularity = strconv.Itoa(r.Popularity.Popularity)
		followers = strconv.FormatInt(r.Popularity.Followers, 10)
		artistID = r.Popularity.ID
	}

	att.Fields = []slackField{
		{Title: "Release Date", Value: r.Date.String(), Short: true},
		{Title: "Genres", Value: genre, Short: true},
		{Title: "Country", Value: country, Short: true},
		{Title: "Spotify Popularity", Value: popularity, Short: true},
		{Title: "Spotify Followers", Value: followers, Short: true},
		{Title: "Spotify Artist ID", Value: artistID, Short: true},
	}
	return att
}
