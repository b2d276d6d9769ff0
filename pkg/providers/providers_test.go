package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/samvad-hq/metalpal/pkg/httpclient"
)

func TestSpotifySearchArtistsUsesClientCredentials(t *testing.T) {
	var gotQuery string
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.Form.Get("grant_type") != "client_credentials" {
			t.Errorf("grant_type = %q", r.Form.Get("grant_type"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"artists":{"items":[
			{"id":"a1","name":"Wolfheart","genres":["melodic death metal"],"popularity":45,
			 "followers":{"total":120000},"external_urls":{"spotify":"https://open.spotify.com/artist/a1"}},
			{"id":"a2","name":"Wolfheart Tribute","genres":[],"popularity":1,
			 "followers":{"total":3},"href":"https://api.spotify.com/v1/artists/a2"}
		]}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx := context.Background()
	hc := SpotifyHTTPClient(ctx, "id", "secret", srv.URL+"/token", srv.Client())
	sp, err := NewSpotify(Provider{BaseURL: srv.URL + "/v1"}, httpclient.NewRestyClientFrom(hc, 5*time.Second))
	if err != nil {
		t.Fatalf("NewSpotify: %v", err)
	}
	if sp.ID() != TypeSpotify {
		t.Fatalf("ID = %q", sp.ID())
	}

	got, err := sp.SearchArtists(ctx, "Wolfheart")
	if err != nil {
		t.Fatalf("SearchArtists: %v", err)
	}
	if !strings.Contains(gotQuery, "type=artist") || !strings.Contains(gotQuery, "limit=10") || !strings.Contains(gotQuery, "q=Wolfheart") {
		t.Fatalf("unexpected query %q", gotQuery)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[0].Followers != 120000 || got[0].URL != "https://open.spotify.com/artist/a1" {
		t.Fatalf("unexpected first candidate %#v", got[0])
	}
	if got[1].URL != "https://api.spotify.com/v1/artists/a2" {
		t.Fatalf("expected href fallback, got %q", got[1].URL)
	}
}

func TestSpotifySearchArtistsNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("slow down"))
	}))
	defer srv.Close()

	sp, err := NewSpotify(Provider{BaseURL: srv.URL}, httpclient.NewRestyClient(5*time.Second))
	if err != nil {
		t.Fatalf("NewSpotify: %v", err)
	}

	_, err = sp.SearchArtists(context.Background(), "Wolfheart")
	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if provErr.StatusCode != http.StatusTooManyRequests || provErr.Body != "slow down" {
		t.Fatalf("unexpected error %#v", provErr)
	}
}

func TestSpotifyTokenFailureIsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	hc := SpotifyHTTPClient(ctx, "id", "wrong", srv.URL+"/token", srv.Client())
	sp, err := NewSpotify(Provider{BaseURL: srv.URL}, httpclient.NewRestyClientFrom(hc, 5*time.Second))
	if err != nil {
		t.Fatalf("NewSpotify: %v", err)
	}

	_, err = sp.SearchArtists(ctx, "Wolfheart")
	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
}

func TestNewSpotifyRejectsWrongType(t *testing.T) {
	_, err := NewSpotify(Provider{Type: TypeMetallum, BaseURL: "http://x"}, httpclient.NewRestyClient(time.Second))
	if err == nil {
		t.Fatalf("expected error for mismatched type")
	}
	if _, err := NewSpotify(Provider{}, httpclient.NewRestyClient(time.Second)); err == nil {
		t.Fatalf("expected error for missing base url")
	}
}

const bandPage = `<html><body>
<h1 class="band_name"><a href="https://www.metal-archives.com/bands/Wolfheart/3540363387">Wolfheart</a></h1>
<div id="band_stats"><dl><dt>Country of origin:</dt><dd><a href="/lists/FI">Finland</a></dd></dl></div>
</body></html>`

func TestMetallumSearchAndDetail(t *testing.T) {
	var gotUA string
	mux := http.NewServeMux()
	mux.HandleFunc("/search/ajax-band-search/", func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		if r.URL.Query().Get("field") != "name" || r.URL.Query().Get("query") != "Wolfheart" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error":"","iTotalRecords":2,"aaData":[
			["<a href=\"https://www.metal-archives.com/bands/Wolfheart/3540363387\">Wolfheart</a>  <!-- 4.0 -->","Melodic Death Metal","Finland"],
			["broken row"]
		]}`))
	})
	mux.HandleFunc("/bands/Wolfheart/3540363387", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(bandPage))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	m, err := NewMetallum(Provider{
		BaseURL: srv.URL,
		Config:  map[string]any{ConfigUserAgentKey: "metalpal"},
	}, httpclient.NewRestyClient(5*time.Second))
	if err != nil {
		t.Fatalf("NewMetallum: %v", err)
	}

	ctx := context.Background()
	bands, err := m.SearchBands(ctx, "Wolfheart")
	if err != nil {
		t.Fatalf("SearchBands: %v", err)
	}
	if gotUA != "metalpal" {
		t.Fatalf("User-Agent = %q", gotUA)
	}
	if len(bands) != 1 {
		t.Fatalf("expected 1 band, got %d", len(bands))
	}
	if bands[0].Genre != "Melodic Death Metal" || bands[0].Country != "Finland" || bands[0].Name() != "Wolfheart" {
		t.Fatalf("unexpected band %#v", bands[0])
	}

	doc, err := m.FetchDetail(ctx, srv.URL+"/bands/Wolfheart/3540363387")
	if err != nil {
		t.Fatalf("FetchDetail: %v", err)
	}
	if got := doc.Find("h1.band_name a").Text(); got != "Wolfheart" {
		t.Fatalf("band name = %q", got)
	}
}

func TestMetallumFetchDetailNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	m, err := NewMetallum(Provider{BaseURL: srv.URL}, httpclient.NewRestyClient(5*time.Second))
	if err != nil {
		t.Fatalf("NewMetallum: %v", err)
	}

	_, err = m.FetchDetail(context.Background(), srv.URL+"/bands/missing/1")
	var provErr *ProviderError
	if !errors.As(err, &provErr) || provErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 ProviderError, got %v", err)
	}
}

func TestBandCandidateDetailURL(t *testing.T) {
	cases := []struct {
		name   string
		html   string
		want   string
		wantOK bool
	}{
		{name: "absolute", html: `<a href="https://www.metal-archives.com/bands/X/1">X</a>`, want: "https://www.metal-archives.com/bands/X/1", wantOK: true},
		{name: "relative", html: `<a href="/bands/X/1">X</a>`},
		{name: "no anchor", html: `X`},
		{name: "empty", html: ``},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := BandCandidate{NameHTML: tc.html}.DetailURL()
			if ok != tc.wantOK || got != tc.want {
				t.Fatalf("DetailURL() = %q, %v", got, ok)
			}
		})
	}
}

func TestThrottleHonoursContext(t *testing.T) {
	th := &throttle{delay: time.Hour}
	if err := th.wait(context.Background()); err != nil {
		t.Fatalf("first wait should not block: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := th.wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestHeadersSkipsEmptyValues(t *testing.T) {
	h := Headers(Provider{Config: map[string]any{ConfigUserAgentKey: " metalpal ", ConfigAcceptKey: ""}})
	if len(h) != 1 || h["User-Agent"] != "metalpal" {
		t.Fatalf("unexpected headers %#v", h)
	}
}
