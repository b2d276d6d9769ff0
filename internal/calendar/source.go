package calendar

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/samvad-hq/metalpal/pkg/httpclient"
)

const yearPlaceholder = "{year}"

// FetchError reports that the calendar page could not be retrieved. Without
// the calendar there is nothing to process, so it is fatal for the run.
type FetchError struct {
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch calendar %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch calendar %s: status %d body: %s", e.URL, e.StatusCode, e.Body)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Source downloads the release calendar page.
type Source struct {
	client      httpclient.Client
	urlTemplate string
	headers     map[string]string
	now         func() time.Time
}

// NewSource builds a calendar source. The URL may contain a {year}
// placeholder which is replaced with the current year at fetch time.
func NewSource(client httpclient.Client, urlTemplate string, headers map[string]string) *Source {
	return newSourceWithClock(client, urlTemplate, headers, time.Now)
}

func newSourceWithClock(client httpclient.Client, urlTemplate string, headers map[string]string, now func() time.Time) *Source {
	if now == nil {
		now = time.Now
	}
	return &Source{
		client:      client,
		urlTemplate: strings.TrimSpace(urlTemplate),
		headers:     headers,
		now:         now,
	}
}

// URL returns the calendar URL for the current year.
func (s *Source) URL() string {
	return strings.ReplaceAll(s.urlTemplate, yearPlaceholder, strconv.Itoa(s.now().Year()))
}

// Fetch returns the raw calendar markup.
func (s *Source) Fetch(ctx context.Context) ([]byte, error) {
	url := s.URL()
	resp, err := s.client.Get(ctx, url, s.headers)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode(), Body: httpclient.Snippet(resp.Body())}
	}
	return resp.Body(), nil
}

// Fragments parses the calendar page and returns the serialized markup of
// every node matching selector whose first child is a bold date marker, in
// document order.
func Fragments(body []byte, selector string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse calendar html: %w", err)
	}

	var fragments []string
	var renderErr error
	doc.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if !startsWithBold(sel) {
			return true
		}
		markup, err := goquery.OuterHtml(sel)
		if err != nil {
			renderErr = fmt.Errorf("render calendar fragment: %w", err)
			return false
		}
		fragments = append(fragments, markup)
		return true
	})
	if renderErr != nil {
		return nil, renderErr
	}
	return fragments, nil
}

func startsWithBold(sel *goquery.Selection) bool {
	first := sel.Contents().FilterFunction(func(_ int, c *goquery.Selection) bool {
		return goquery.NodeName(c) != "#text" || strings.TrimSpace(c.Text()) != ""
	}).First()
	switch goquery.NodeName(first) {
	case "strong", "b":
		return true
	default:
		return false
	}
}

