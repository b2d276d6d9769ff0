package publishers

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/samvad-hq/metalpal/internal/domain"
)

// Event is the daily digest published downstream: the releases that
// survived filtering for one calendar day.
type Event struct {
	RunID       string           `json:"run_id"`
	Date        civil.Date       `json:"date"`
	Total       int              `json:"total_releases"`
	Releases    []domain.Release `json:"releases"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// NewEvent constructs an Event. total is the number of releases dated date
// before filtering; accepted are the ones worth announcing.
func NewEvent(runID string, date civil.Date, total int, accepted []domain.Release) Event {
	releases := make([]domain.Release, len(accepted))
	for i, r := range accepted {
		releases[i] = r.Clone()
	}
	return Event{
		RunID:       runID,
		Date:        date,
		Total:       total,
		Releases:    releases,
		GeneratedAt: time.Now().UTC(),
	}
}
