package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/samvad-hq/metalpal/pkg/httpclient"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const spotifySearchLimit = 10

// ArtistCandidate is one artist returned by a popularity search.
type ArtistCandidate struct {
	ID         string
	Name       string
	URL        string
	Genres     []string
	Popularity int
	Followers  int64
}

// Spotify searches the Spotify Web API for artists. The HTTP client passed
// in is expected to attach a bearer token, see SpotifyHTTPClient.
type Spotify struct {
	cfg      Provider
	client   HTTPClient
	headers  map[string]string
	throttle *throttle
}

// NewSpotify validates cfg and returns a Spotify provider.
func NewSpotify(cfg Provider, client HTTPClient) (*Spotify, error) {
	if cfg.Type == "" {
		cfg.Type = TypeSpotify
	}
	cfg = sanitizeProvider(cfg)
	if err := validateProvider(cfg, TypeSpotify); err != nil {
		return nil, err
	}
	if client == nil {
		return nil, fmt.Errorf("spotify provider %q: http client is nil", cfg.ID)
	}

	headers := Headers(cfg)
	if _, ok := headers["Accept"]; !ok {
		headers["Accept"] = "application/json"
	}

	return &Spotify{
		cfg:      cfg,
		client:   client,
		headers:  headers,
		throttle: &throttle{delay: cfg.RequestDelay()},
	}, nil
}

// SpotifyHTTPClient returns an http.Client that obtains and refreshes an
// access token with the client credentials grant. base, when non-nil, is
// used for both the token exchange and the API calls.
func SpotifyHTTPClient(ctx context.Context, clientID, clientSecret, tokenURL string, base *http.Client) *http.Client {
	cc := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
	}
	if base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	}
	return cc.Client(ctx)
}

func (s *Spotify) ID() string { return s.cfg.ID }

type spotifySearchResponse struct {
	Artists struct {
		Items []spotifyArtist `json:"items"`
	} `json:"artists"`
}

type spotifyArtist struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Href         string   `json:"href"`
	Genres       []string `json:"genres"`
	Popularity   int      `json:"popularity"`
	ExternalURLs struct {
		Spotify string `json:"spotify"`
	} `json:"external_urls"`
	Followers struct {
		Total int64 `json:"total"`
	} `json:"followers"`
}

// SearchArtists returns up to ten artists matching name, in the order the
// API ranks them.
func (s *Spotify) SearchArtists(ctx context.Context, name string) ([]ArtistCandidate, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	if err := s.throttle.wait(ctx); err != nil {
		return nil, &ProviderError{Provider: s.cfg.ID, Op: "search artists", Err: err}
	}

	q := url.Values{}
	q.Set("q", name)
	q.Set("type", "artist")
	q.Set("limit", strconv.Itoa(spotifySearchLimit))
	endpoint := s.cfg.BaseURL + "/search?" + q.Encode()

	resp, err := s.client.Get(ctx, endpoint, s.headers)
	if err != nil {
		return nil, &ProviderError{Provider: s.cfg.ID, Op: "search artists", Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &ProviderError{
			Provider:   s.cfg.ID,
			Op:         "search artists",
			StatusCode: resp.StatusCode(),
			Body:       httpclient.Snippet(resp.Body()),
		}
	}

	var decoded spotifySearchResponse
	if err := json.Unmarshal(resp.Body(), &decoded); err != nil {
		return nil, &ProviderError{
			Provider:   s.cfg.ID,
			Op:         "decode search response",
			StatusCode: resp.StatusCode(),
			Err:        err,
		}
	}

	out := make([]ArtistCandidate, 0, len(decoded.Artists.Items))
	for _, item := range decoded.Artists.Items {
		link := item.ExternalURLs.Spotify
		if link == "" {
			link = item.Href
		}
		out = append(out, ArtistCandidate{
			ID:         item.ID,
			Name:       item.Name,
			URL:        link,
			Genres:     item.Genres,
			Popularity: item.Popularity,
			Followers:  item.Followers.Total,
		})
	}
	return out, nil
}
