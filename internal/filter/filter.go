// Package filter decides which of today's releases are worth announcing.
package filter

import (
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/samvad-hq/metalpal/internal/domain"
	"github.com/samvad-hq/metalpal/internal/logger"
	"github.com/samvad-hq/metalpal/internal/textmatch"
)

// Skip reasons recorded by the filters.
const (
	ReasonNoPopularity   = "no popularity data available"
	ReasonLowFollowers   = "follower count too low"
	ReasonNoGenres       = "no genres available"
	ReasonNoArchive      = "no archive data available"
	ReasonNoArchiveGenre = "no archive genre available"
)

// DefaultMinFollowers is the follower floor below which a release is skipped.
const DefaultMinFollowers = 1000

// Engine applies the keyword filters. Only releases dated Today are judged.
type Engine struct {
	Whitelist    []string
	Blacklist    []string
	Today        civil.Date
	MinFollowers int64

	log logger.Logger
}

// NewEngine returns an engine with the default follower floor.
func NewEngine(whitelist, blacklist []string, today civil.Date, log logger.Logger) *Engine {
	return &Engine{
		Whitelist:    cleanKeywords(whitelist),
		Blacklist:    cleanKeywords(blacklist),
		Today:        today,
		MinFollowers: DefaultMinFollowers,
		log:          logger.Ensure(log),
	}
}

// ApplyPopularity judges releases on their popularity metadata. Releases
// are updated in place.
func (e *Engine) ApplyPopularity(releases []domain.Release) {
	for i := range releases {
		r := &releases[i]
		if !e.applies(r) {
			continue
		}

		switch {
		case r.Popularity == nil:
			e.skip(r, ReasonNoPopularity)
		case r.Popularity.Followers < e.MinFollowers:
			e.skip(r, ReasonLowFollowers)
		case len(r.Popularity.Genres) == 0:
			e.skip(r, ReasonNoGenres)
		default:
			e.applyKeywords(r, r.Popularity.Genres)
		}
	}
}

// ApplyArchive judges releases on their archive metadata. The archive genre
// text is treated as a single tag.
func (e *Engine) ApplyArchive(releases []domain.Release) {
	for i := range releases {
		r := &releases[i]
		if !e.applies(r) {
			continue
		}

		switch {
		case r.Archive == nil:
			e.skip(r, ReasonNoArchive)
		case strings.TrimSpace(r.Archive.Genre) == "":
			e.skip(r, ReasonNoArchiveGenre)
		default:
			e.applyKeywords(r, []string{r.Archive.Genre})
		}
	}
}

func (e *Engine) applies(r *domain.Release) bool {
	return r.Date == e.Today && !r.Skip
}

// applyKeywords walks the tags in order. Per tag, the blacklist is checked
// before the whitelist. The first hit of either kind settles the release.
// No hit leaves the release accepted.
func (e *Engine) applyKeywords(r *domain.Release, tags []string) {
	for _, tag := range tags {
		for _, kw := range e.Blacklist {
			if textmatch.ContainsFold(tag, kw) {
				e.skip(r, fmt.Sprintf("blacklisted genre keyword %q found in genre %q", kw, tag))
				return
			}
		}
		for _, kw := range e.Whitelist {
			if textmatch.ContainsFold(tag, kw) {
				e.log.DebugObj("release whitelisted", "filter_accept", map[string]any{
					"artist":  r.Artist,
					"album":   r.Album,
					"keyword": kw,
					"genre":   tag,
				})
				return
			}
		}
	}
}

func (e *Engine) skip(r *domain.Release, reason string) {
	r.MarkSkip(reason)
	e.log.DebugObj("release skipped", "filter_skip", map[string]any{
		"artist": r.Artist,
		"album":  r.Album,
		"reason": reason,
	})
}

func cleanKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	for _, kw := range in {
		if kw = strings.TrimSpace(kw); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}
