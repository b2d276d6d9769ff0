package enrich

import (
	"sort"

	"github.com/samvad-hq/metalpal/internal/textmatch"
	"github.com/samvad-hq/metalpal/pkg/providers"
)

// Candidate acceptance policy.
const (
	MinCandidatePopularity = 10
	MinCandidateFollowers  = 1000
	MaxAcceptedCandidates  = 3
	RequiredGenreKeyword   = "metal"
)

// Disambiguate picks the plausible artists for query out of a search result.
//
// Candidates whose name equals query under case folding are always kept. The
// rest are kept only when they clear the popularity and follower floors and
// carry at least one genre tag mentioning metal. At most
// MaxAcceptedCandidates are returned, ordered by followers, highest first;
// exact matches are never cut by the cap.
func Disambiguate(query string, candidates []providers.ArtistCandidate) []providers.ArtistCandidate {
	sorted := make([]providers.ArtistCandidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Followers > sorted[j].Followers
	})

	var exact, plausible int
	keep := make([]bool, len(sorted))
	for i, c := range sorted {
		if textmatch.EqualFold(c.Name, query) && exact < MaxAcceptedCandidates {
			keep[i] = true
			exact++
		}
	}
	for i, c := range sorted {
		if keep[i] || exact+plausible >= MaxAcceptedCandidates {
			continue
		}
		if !textmatch.EqualFold(c.Name, query) && plausibleArtist(c) {
			keep[i] = true
			plausible++
		}
	}

	accepted := make([]providers.ArtistCandidate, 0, exact+plausible)
	for i, c := range sorted {
		if keep[i] {
			accepted = append(accepted, c)
		}
	}
	return accepted
}

func plausibleArtist(c providers.ArtistCandidate) bool {
	if c.Popularity < MinCandidatePopularity || c.Followers < MinCandidateFollowers {
		return false
	}
	for _, g := range c.Genres {
		if textmatch.ContainsFold(g, RequiredGenreKeyword) {
			return true
		}
	}
	return false
}
