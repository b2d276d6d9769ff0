package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/samvad-hq/metalpal/pkg/httpclient"
)

// BandCandidate is one row of the archive band search index. NameHTML is
// the raw anchor markup pointing at the band detail page.
type BandCandidate struct {
	NameHTML string
	Genre    string
	Country  string
}

// Name returns the anchor text of NameHTML.
func (c BandCandidate) Name() string {
	sel := c.anchor()
	if sel == nil {
		return ""
	}
	return strings.TrimSpace(sel.Text())
}

// DetailURL resolves the band detail page from NameHTML. ok is false when
// the markup carries no usable absolute link.
func (c BandCandidate) DetailURL() (string, bool) {
	sel := c.anchor()
	if sel == nil {
		return "", false
	}
	href, ok := sel.Attr("href")
	if !ok {
		return "", false
	}
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil || !u.IsAbs() || u.Host == "" {
		return "", false
	}
	return u.String(), true
}

func (c BandCandidate) anchor() *goquery.Selection {
	if strings.TrimSpace(c.NameHTML) == "" {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(c.NameHTML))
	if err != nil {
		return nil
	}
	sel := doc.Find("a").First()
	if sel.Length() == 0 {
		return nil
	}
	return sel
}

// Metallum queries the Encyclopaedia Metallum band search and band pages.
type Metallum struct {
	cfg      Provider
	client   HTTPClient
	headers  map[string]string
	throttle *throttle
}

// NewMetallum validates cfg and returns a Metallum provider.
func NewMetallum(cfg Provider, client HTTPClient) (*Metallum, error) {
	if cfg.Type == "" {
		cfg.Type = TypeMetallum
	}
	cfg = sanitizeProvider(cfg)
	if err := validateProvider(cfg, TypeMetallum); err != nil {
		return nil, err
	}
	if client == nil {
		return nil, fmt.Errorf("metallum provider %q: http client is nil", cfg.ID)
	}

	return &Metallum{
		cfg:      cfg,
		client:   client,
		headers:  Headers(cfg),
		throttle: &throttle{delay: cfg.RequestDelay()},
	}, nil
}

func (m *Metallum) ID() string { return m.cfg.ID }

type metallumSearchResponse struct {
	Error  string     `json:"error"`
	AAData [][]string `json:"aaData"`
}

// SearchBands runs a band name search and returns the rows in index order.
func (m *Metallum) SearchBands(ctx context.Context, name string) ([]BandCandidate, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	q := url.Values{}
	q.Set("field", "name")
	q.Set("query", name)
	body, err := m.get(ctx, "search bands", m.cfg.BaseURL+"/search/ajax-band-search/?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var decoded metallumSearchResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, &ProviderError{Provider: m.cfg.ID, Op: "decode band search", Err: err}
	}
	if decoded.Error != "" {
		return nil, &ProviderError{Provider: m.cfg.ID, Op: "search bands", Err: errors.New(decoded.Error)}
	}

	out := make([]BandCandidate, 0, len(decoded.AAData))
	for _, row := range decoded.AAData {
		if len(row) < 3 {
			continue
		}
		out = append(out, BandCandidate{
			NameHTML: row[0],
			Genre:    strings.TrimSpace(row[1]),
			Country:  strings.TrimSpace(row[2]),
		})
	}
	return out, nil
}

// FetchDetail downloads and parses a band detail page.
func (m *Metallum) FetchDetail(ctx context.Context, detailURL string) (*goquery.Document, error) {
	body, err := m.get(ctx, "fetch band detail", detailURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &ProviderError{Provider: m.cfg.ID, Op: "parse band detail", Err: err}
	}
	doc.Url, _ = url.Parse(detailURL)
	return doc, nil
}

func (m *Metallum) get(ctx context.Context, op, endpoint string) ([]byte, error) {
	if err := m.throttle.wait(ctx); err != nil {
		return nil, &ProviderError{Provider: m.cfg.ID, Op: op, Err: err}
	}

	resp, err := m.client.Get(ctx, endpoint, m.headers)
	if err != nil {
		return nil, &ProviderError{Provider: m.cfg.ID, Op: op, Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &ProviderError{
			Provider:   m.cfg.ID,
			Op:         op,
			StatusCode: resp.StatusCode(),
			Body:       httpclient.Snippet(resp.Body()),
		}
	}
	return resp.Body(), nil
}
