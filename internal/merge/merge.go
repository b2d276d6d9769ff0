// Package merge folds freshly extracted and enriched releases into the
// persisted history.
package merge

import (
	"slices"

	"cloud.google.com/go/civil"
	"github.com/samvad-hq/metalpal/internal/domain"
)

// Append adds drafts whose key is not yet in history and returns the
// extended history with the number of releases added. Existing entries keep
// their metadata. Duplicate keys among drafts are added once.
func Append(history, drafts []domain.Release) ([]domain.Release, int) {
	seen := make(map[domain.ReleaseKey]struct{}, len(history)+len(drafts))
	for _, r := range history {
		seen[r.Key()] = struct{}{}
	}

	added := 0
	for _, d := range drafts {
		if _, ok := seen[d.Key()]; ok {
			continue
		}
		seen[d.Key()] = struct{}{}
		history = append(history, d.Clone())
		added++
	}
	return history, added
}

// Reconcile copies the enrichment state of each today release onto the
// matching history entry. Releases in today with no counterpart in history
// are ignored. Running it twice with the same input changes nothing the
// second time. It returns the number of history entries updated.
func Reconcile(history, today []domain.Release) int {
	idx := make(map[domain.ReleaseKey]int, len(history))
	for i, r := range history {
		if _, ok := idx[r.Key()]; !ok {
			idx[r.Key()] = i
		}
	}

	updated := 0
	for _, t := range today {
		i, ok := idx[t.Key()]
		if !ok {
			continue
		}
		src := t.Clone()
		h := &history[i]
		h.Popularity = src.Popularity
		h.Archive = src.Archive
		h.Skip = src.Skip
		h.SkipReasons = src.SkipReasons
		if h.SkipReasons == nil {
			h.SkipReasons = []string{}
		}
		updated++
	}
	return updated
}

// Today returns copies of the history entries dated date, in history order.
func Today(history []domain.Release, date civil.Date) []domain.Release {
	var out []domain.Release
	for _, r := range history {
		if r.Date == date {
			out = append(out, r.Clone())
		}
	}
	return out
}

// Accepted returns the releases that survived filtering.
func Accepted(releases []domain.Release) []domain.Release {
	return slices.DeleteFunc(slices.Clone(releases), func(r domain.Release) bool { return r.Skip })
}
