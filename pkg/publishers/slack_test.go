package publishers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/samvad-hq/metalpal/internal/domain"
)

type recordedSlackPost struct {
	auth string
	msg  slackMessage
}

type slackServer struct {
	mu    sync.Mutex
	posts []recordedSlackPost
	reply func(n int) (int, string)
}

func (s *slackServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/chat.postMessage" {
		http.NotFound(w, r)
		return
	}
	var msg slackMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.posts = append(s.posts, recordedSlackPost{auth: r.Header.Get("Authorization"), msg: msg})
	n := len(s.posts)
	s.mu.Unlock()

	status, body := http.StatusOK, `{"ok":true}`
	if s.reply != nil {
		status, body = s.reply(n)
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func newTestSlackPublisher(t *testing.T, url string, channels ...string) *slackPublisher {
	t.Helper()
	cfg := sanitizePublisherConfig(PublisherConfig{
		ID:    "slack",
		Type:  TypeSlack,
		Slack: &SlackPublisherConfig{Token: "xoxb-test", Channels: channels, APIURL: url + "/"},
	})
	pub, err := newSlackPublisher(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("newSlackPublisher: %v", err)
	}
	sp := pub.(*slackPublisher)
	sp.now = func() time.Time { return time.Unix(1704441600, 0) }
	return sp
}

func slackEvent() Event {
	date := civil.Date{Year: 2024, Month: time.January, Day: 5}
	return NewEvent("run-1", date, 3, []domain.Release{
		{
			Date:       date,
			Artist:     "Wolfheart",
			Album:      "Skull Soup",
			Popularity: &domain.PopularityMetadata{ID: "w1", Popularity: 45, Followers: 120000},
			Archive: &domain.ArchiveMetadata{
				URL:           "https://www.metal-archives.com/bands/Wolfheart/3540351045",
				ImageURL:      "https://www.metal-archives.com/images/wolfheart.jpg",
				Genre:         "Melodic Death Metal",
				CountryOrigin: "Finland",
			},
		},
		{Date: date, Artist: "Hath", Album: "All That Was Promised"},
	})
}

func TestSlackPublisherPostsHeaderAndAttachments(t *testing.T) {
	srv := &slackServer{}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	pub := newTestSlackPublisher(t, ts.URL, "releases", "metal")
	if err := pub.Publish(context.Background(), slackEvent()); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if len(srv.posts) != 6 {
		t.Fatalf("expected 6 posts (2 channels x header + 2 releases), got %d", len(srv.posts))
	}
	for _, p := range srv.posts {
		if p.auth != "Bearer xoxb-test" {
			t.Fatalf("Authorization = %q", p.auth)
		}
	}

	header := srv.posts[0].msg
	if header.Channel != "releases" || header.Text != ":tada: There are *2* releases today! :tada:" {
		t.Fatalf("unexpected header %#v", header)
	}

	first := srv.posts[1].msg
	if len(first.Attachments) != 1 {
		t.Fatalf("expected one attachment, got %#v", first)
	}
	att := first.Attachments[0]
	if att.Title != "1. Wolfheart - Skull Soup" || att.Color != slackColor || att.Footer != slackFooter {
		t.Fatalf("unexpected attachment %#v", att)
	}
	if att.TitleLink != "https://www.metal-archives.com/bands/Wolfheart/3540351045" || att.ThumbURL == "" {
		t.Fatalf("archive links missing %#v", att)
	}
	if att.Ts != 1704441600 {
		t.Fatalf("Ts = %d", att.Ts)
	}
	want := map[string]string{
		"Release Date":       "2024-01-05",
		"Genres":             "Melodic Death Metal",
		"Country":            "Finland",
		"Spotify Popularity": "45",
		"Spotify Followers":  "120000",
		"Spotify Artist ID":  "w1",
	}
	if len(att.Fields) != len(want) {
		t.Fatalf("fields = %#v", att.Fields)
	}
	for _, f := range att.Fields {
		if want[f.Title] != f.Value || !f.Short {
			t.Fatalf("field %q = %q", f.Title, f.Value)
		}
	}

	second := srv.posts[2].msg.Attachments[0]
	if second.Title != "2. Hath - All That Was Promised" || second.TitleLink != "" {
		t.Fatalf("unexpected second attachment %#v", second)
	}
	if srv.posts[3].msg.Channel != "metal" {
		t.Fatalf("second channel header missing: %#v", srv.posts[3].msg)
	}
}

func TestSlackPublisherSkipsEmptyDigest(t *testing.T) {
	srv := &slackServer{}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	pub := newTestSlackPublisher(t, ts.URL, "releases")
	if err := pub.Publish(context.Background(), Event{RunID: "r"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(srv.posts) != 0 {
		t.Fatalf("expected no posts, got %d", len(srv.posts))
	}
}

func TestSlackPublisherAPIError(t *testing.T) {
	srv := &slackServer{reply: func(int) (int, string) {
		return http.StatusOK, `{"ok":false,"error":"channel_not_found"}`
	}}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	pub := newTestSlackPublisher(t, ts.URL, "nope")
	err := pub.Publish(context.Background(), slackEvent())
	var apiErr *SlackAPIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected SlackAPIError, got %v", err)
	}
	if apiErr.Code != "channel_not_found" || apiErr.Channel != "nope" {
		t.Fatalf("unexpected api error %#v", apiErr)
	}
	if len(srv.posts) != 1 {
		t.Fatalf("delivery must stop after the first failure, got %d posts", len(srv.posts))
	}
	if IgnoreMalformed(err) == nil {
		t.Fatalf("api errors must not be ignored")
	}
}

func TestSlackPublisherMalformedReplyContinues(t *testing.T) {
	srv := &slackServer{reply: func(n int) (int, string) {
		if n == 2 {
			return http.StatusOK, `<html>gateway</html>`
		}
		return http.StatusOK, `{"ok":true}`
	}}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	pub := newTestSlackPublisher(t, ts.URL, "releases")
	err := pub.Publish(context.Background(), slackEvent())
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
	if len(srv.posts) != 3 {
		t.Fatalf("expected delivery to continue, got %d posts", len(srv.posts))
	}
	if IgnoreMalformed(err) != nil {
		t.Fatalf("malformed reply should be ignorable: %v", err)
	}
}

func TestSlackPublisherHTTPStatusError(t *testing.T) {
	srv := &slackServer{reply: func(int) (int, string) {
		return http.StatusInternalServerError, "down"
	}}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	pub := newTestSlackPublisher(t, ts.URL, "releases")
	err := pub.Publish(context.Background(), slackEvent())
	if err == nil || errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected a fatal status error, got %v", err)
	}
}
