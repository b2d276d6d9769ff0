package domain

import (
	"slices"

	"cloud.google.com/go/civil"
)

// Domain contains core models shared by the pipeline stages.

// Release is a single album announcement. It starts life as a draft produced
// by the calendar extractor and picks up provider metadata and skip decisions
// as it moves through the pipeline.
type Release struct {
	Date        civil.Date          `json:"date"`
	Artist      string              `json:"artist"`
	Album       string              `json:"album"`
	Label       string              `json:"label"`
	Skip        bool                `json:"skip"`
	SkipReasons []string            `json:"skip_reasons"`
	Popularity  *PopularityMetadata `json:"spotify,omitempty"`
	Archive     *ArchiveMetadata    `json:"metallum,omitempty"`
}

// ReleaseKey identifies a release within a run.
type ReleaseKey struct {
	Artist string
	Album  string
}

// Key returns the release identity. Artist and album are compared verbatim:
// no trimming and no case folding, so "Wolfheart" and "wolfheart" are two
// different releases.
func (r Release) Key() ReleaseKey {
	return ReleaseKey{Artist: r.Artist, Album: r.Album}
}

// MarkSkip flags the release as skipped and records why. Reasons are only
// ever appended and Skip is never cleared once set.
func (r *Release) MarkSkip(reason string) {
	r.Skip = true
	r.SkipReasons = append(r.SkipReasons, reason)
}

// Clone returns a deep copy so callers can hand releases across stages
// without aliasing reasons or metadata.
func (r Release) Clone() Release {
	out := r
	out.SkipReasons = slices.Clone(r.SkipReasons)
	if r.Popularity != nil {
		p := *r.Popularity
		p.Genres = slices.Clone(r.Popularity.Genres)
		out.Popularity = &p
	}
	if r.Archive != nil {
		a := *r.Archive
		out.Archive = &a
	}
	return out
}

// PopularityMetadata is the streaming-service view of an artist.
type PopularityMetadata struct {
	ID         string   `json:"id"`
	URL        string   `json:"url"`
	Genres     []string `json:"genres"`
	Popularity int      `json:"popularity"`
	Followers  int64    `json:"followers"`
}

// NewPopularityMetadata builds metadata with duplicate genre tags removed.
func NewPopularityMetadata(id, url string, genres []string, popularity int, followers int64) *PopularityMetadata {
	if followers < 0 {
		followers = 0
	}
	return &PopularityMetadata{
		ID:         id,
		URL:        url,
		Genres:     uniqueGenres(genres),
		Popularity: popularity,
		Followers:  followers,
	}
}

func uniqueGenres(genres []string) []string {
	out := make([]string, 0, len(genres))
	seen := make(map[string]struct{}, len(genres))
	for _, g := range genres {
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		out = append(out, g)
	}
	return out
}

// ArchiveMetadata is the catalog view of an artist.
type ArchiveMetadata struct {
	Name             string `json:"name"`
	URL              string `json:"url"`
	DescriptionShort string `json:"description_short"`
	DescriptionLong  string `json:"description_long"`
	CountryOrigin    string `json:"country_origin"`
	Location         string `json:"locations"`
	YearsActive      string `json:"years_active"`
	FormedIn         string `json:"formed_in"`
	Genre            string `json:"genre"`
	Themes           string `json:"themes"`
	ImageURL         string `json:"img_url"`
	Status           string `json:"status"`
	LastLabel        string `json:"last_label"`
}
