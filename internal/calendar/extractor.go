package calendar

import (
	"fmt"
	"html"
	"regexp"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/samvad-hq/metalpal/internal/domain"
	"github.com/samvad-hq/metalpal/internal/logger"
)

const dateLayout = "January 2, 2006"

// Patterns are the regular expressions used to pull releases out of a
// calendar day block.
type Patterns struct {
	// Date must be anchored at the start of the fragment and capture the
	// "Month Day, Year" text in group 1.
	Date string
	// Entry captures artist, album and label in groups 1-3.
	Entry string
	// LineBreak separates release lines within a fragment.
	LineBreak string
}

// DefaultPatterns matches the loudwire calendar markup.
func DefaultPatterns() Patterns {
	return Patterns{
		Date:      `^\s*(?:<p[^>]*>)?\s*<(?:strong|b)>\s*([A-Za-z]+ \d{1,2}, \d{4})\s*</(?:strong|b)>`,
		Entry:     `^(.+) - <em>(.+)</em>\s*\(?(.+)\)\s*(?:</p>)?$`,
		LineBreak: `<br\s*/?>`,
	}
}

// PatternError is returned when an extraction pattern does not compile.
// It points at a programming or configuration defect and is fatal.
type PatternError struct {
	Name    string
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("compile %s pattern %q: %v", e.Name, e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error { return e.Err }

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// Extractor turns calendar fragments into draft releases.
type Extractor struct {
	date      *regexp.Regexp
	entry     *regexp.Regexp
	lineBreak *regexp.Regexp
	log       logger.Logger
}

// NewExtractor compiles the patterns up front so a broken pattern fails the
// run before any work is done.
func NewExtractor(p Patterns, log logger.Logger) (*Extractor, error) {
	compile := func(name, pattern string) (*regexp.Regexp, error) {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, &PatternError{Name: name, Pattern: pattern, Err: err}
		}
		return re, nil
	}

	date, err := compile("date", p.Date)
	if err != nil {
		return nil, err
	}
	entry, err := compile("entry", p.Entry)
	if err != nil {
		return nil, err
	}
	lineBreak, err := compile("line break", p.LineBreak)
	if err != nil {
		return nil, err
	}
	if date.NumSubexp() < 1 {
		return nil, &PatternError{Name: "date", Pattern: p.Date, Err: fmt.Errorf("expected 1 capture group")}
	}
	if entry.NumSubexp() < 3 {
		return nil, &PatternError{Name: "entry", Pattern: p.Entry, Err: fmt.Errorf("expected 3 capture groups")}
	}

	return &Extractor{
		date:      date,
		entry:     entry,
		lineBreak: lineBreak,
		log:       logger.Ensure(log),
	}, nil
}

// Extract parses every fragment and returns the drafts sorted by date.
// Fragments without a leading date and lines that do not look like a release
// are skipped silently.
func (e *Extractor) Extract(fragments []string) []domain.Release {
	var drafts []domain.Release
	for _, fragment := range fragments {
		drafts = append(drafts, e.parseFragment(fragment)...)
	}

	sort.SliceStable(drafts, func(i, j int) bool {
		return drafts[i].Date.Before(drafts[j].Date)
	})
	return drafts
}

func (e *Extractor) parseFragment(fragment string) []domain.Release {
	loc := e.date.FindStringSubmatchIndex(fragment)
	if loc == nil {
		e.log.DebugObj("calendar fragment has no date", "fragment", snippet(fragment))
		return nil
	}

	raw := fragment[loc[2]:loc[3]]
	parsed, err := time.Parse(dateLayout, raw)
	if err != nil {
		e.log.DebugObj("calendar fragment date unparseable", "fragment_date", map[string]any{
			"date":  raw,
			"error": err.Error(),
		})
		return nil
	}
	date := civil.DateOf(parsed)

	var drafts []domain.Release
	for _, line := range e.lineBreak.Split(fragment[loc[1]:], -1) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		caps := e.entry.FindStringSubmatch(line)
		if caps == nil {
			continue
		}

		artist := cleanField(caps[1])
		album := cleanField(caps[2])
		label := cleanField(strings.NewReplacer("(", "", ")", "").Replace(caps[3]))
		if artist == "" || album == "" {
			continue
		}

		drafts = append(drafts, domain.Release{
			Date:        date,
			Artist:      artist,
			Album:       album,
			Label:       label,
			SkipReasons: []string{},
		})
	}
	return drafts
}

func cleanField(s string) string {
	s = tagPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(html.UnescapeString(s))
}

func snippet(s string) string {
	const maxLen = 120
	s = strings.TrimSpace(s)
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}
