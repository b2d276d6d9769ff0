package enrich

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/samvad-hq/metalpal/internal/domain"
)

const (
	archiveFieldCount = 8
	shortBioRunes     = 280
	notAvailable      = "N/A"
)

// Positions of the band info fields on the detail page.
const (
	fieldCountry = iota
	fieldLocation
	fieldStatus
	fieldFormedIn
	fieldGenre
	fieldThemes
	fieldLastLabel
	fieldYearsActive
)

// FieldCountError means a detail page did not have the expected info block
// layout. The candidate is dropped and the next one is tried.
type FieldCountError struct {
	URL  string
	Want int
	Got  int
}

func (e *FieldCountError) Error() string {
	return fmt.Sprintf("band page %s: expected %d info fields, found %d", e.URL, e.Want, e.Got)
}

// ParseArchiveDetail extracts archive metadata from a band detail page.
func ParseArchiveDetail(doc *goquery.Document, url string) (*domain.ArchiveMetadata, error) {
	fields := doc.Find("#band_stats dd")
	if fields.Length() != archiveFieldCount {
		return nil, &FieldCountError{URL: url, Want: archiveFieldCount, Got: fields.Length()}
	}

	text := func(i int) string { return collapse(fields.Eq(i).Text()) }
	anchor := func(i int) string {
		a := fields.Eq(i).Find("a").First()
		if a.Length() == 0 {
			return notAvailable
		}
		if v := collapse(a.Text()); v != "" {
			return v
		}
		return notAvailable
	}

	long, short := biography(doc.Find(".band_comment").First())
	image, _ := doc.Find("a#photo").First().Attr("href")

	name := collapse(doc.Find("h1.band_name a").First().Text())
	if name == "" {
		name = collapse(doc.Find("h1.band_name").First().Text())
	}

	return &domain.ArchiveMetadata{
		Name:             name,
		URL:              url,
		DescriptionShort: short,
		DescriptionLong:  long,
		CountryOrigin:    anchor(fieldCountry),
		Location:         text(fieldLocation),
		Status:           text(fieldStatus),
		FormedIn:         text(fieldFormedIn),
		Genre:            text(fieldGenre),
		Themes:           text(fieldThemes),
		LastLabel:        anchor(fieldLastLabel),
		YearsActive:      text(fieldYearsActive),
		ImageURL:         strings.TrimSpace(image),
	}, nil
}

// biography returns the markup-free comment text and its first paragraph
// truncated for previews.
func biography(sel *goquery.Selection) (long, short string) {
	if sel.Length() == 0 {
		return "", ""
	}

	var paragraphs []string
	sel.Find("p").Each(func(_ int, p *goquery.Selection) {
		if v := collapse(p.Text()); v != "" {
			paragraphs = append(paragraphs, v)
		}
	})
	if len(paragraphs) == 0 {
		for _, line := range strings.Split(sel.Text(), "\n") {
			if v := collapse(line); v != "" {
				paragraphs = append(paragraphs, v)
			}
		}
	}
	if len(paragraphs) == 0 {
		return "", ""
	}

	return strings.Join(paragraphs, "\n\n"), truncateRunes(paragraphs[0], shortBioRunes)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
