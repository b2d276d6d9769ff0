package merge

import (
	"reflect"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/samvad-hq/metalpal/internal/domain"
)

var (
	day1 = civil.Date{Year: 2024, Month: time.January, Day: 5}
	day2 = civil.Date{Year: 2024, Month: time.January, Day: 12}
)

func draft(date civil.Date, artist, album string) domain.Release {
	return domain.Release{Date: date, Artist: artist, Album: album, Label: "L", SkipReasons: []string{}}
}

func TestAppendKeepsExistingEntries(t *testing.T) {
	existing := draft(day1, "Wolfheart", "Skull Soup")
	existing.Popularity = &domain.PopularityMetadata{ID: "w1"}
	history := []domain.Release{existing}

	drafts := []domain.Release{
		draft(day1, "Wolfheart", "Skull Soup"),
		draft(day2, "Kerry King", "From Hell I Rise"),
		draft(day2, "Kerry King", "From Hell I Rise"),
		draft(day2, "wolfheart", "Skull Soup"),
	}

	got, added := Append(history, drafts)
	if added != 2 || len(got) != 3 {
		t.Fatalf("added=%d len=%d", added, len(got))
	}
	if got[0].Popularity == nil || got[0].Popularity.ID != "w1" {
		t.Fatalf("existing enrichment lost: %#v", got[0])
	}
	if got[2].Artist != "wolfheart" {
		t.Fatalf("keys must be case-sensitive, got %#v", got[2])
	}
}

func TestReconcileCopiesEnrichmentState(t *testing.T) {
	history := []domain.Release{
		draft(day1, "Wolfheart", "Skull Soup"),
		draft(day1, "Other", "Record"),
	}

	enriched := draft(day1, "Wolfheart", "Skull Soup")
	enriched.Popularity = &domain.PopularityMetadata{ID: "w1", Genres: []string{"melodic death metal"}}
	enriched.Archive = &domain.ArchiveMetadata{Genre: "Melodic Death Metal"}
	skipped := draft(day1, "Other", "Record")
	skipped.MarkSkip("follower count too low")
	stray := draft(day1, "Stray", "Not In History")

	updated := Reconcile(history, []domain.Release{enriched, skipped, stray})
	if updated != 2 {
		t.Fatalf("updated = %d", updated)
	}
	if len(history) != 2 {
		t.Fatalf("unmatched today release must not be inserted")
	}
	if history[0].Popularity.ID != "w1" || history[0].Archive.Genre != "Melodic Death Metal" {
		t.Fatalf("metadata not copied: %#v", history[0])
	}
	if !history[1].Skip || history[1].SkipReasons[0] != "follower count too low" {
		t.Fatalf("skip state not copied: %#v", history[1])
	}

	enriched.Popularity.Genres[0] = "mutated"
	skipped.SkipReasons[0] = "mutated"
	if history[0].Popularity.Genres[0] == "mutated" || history[1].SkipReasons[0] == "mutated" {
		t.Fatalf("history aliases today's releases")
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	history := []domain.Release{draft(day1, "Wolfheart", "Skull Soup"), draft(day2, "Later", "Album")}
	today := Today(history, day1)
	today[0].MarkSkip("no archive data available")

	Reconcile(history, today)
	once := make([]domain.Release, len(history))
	for i, r := range history {
		once[i] = r.Clone()
	}
	Reconcile(history, today)

	if !reflect.DeepEqual(once, history) {
		t.Fatalf("second reconcile changed history:\n%#v\n%#v", once, history)
	}
}

func TestTodayReturnsCopies(t *testing.T) {
	history := []domain.Release{
		draft(day1, "A", "1"),
		draft(day2, "B", "2"),
		draft(day1, "C", "3"),
	}

	got := Today(history, day1)
	if len(got) != 2 || got[0].Artist != "A" || got[1].Artist != "C" {
		t.Fatalf("unexpected today set %#v", got)
	}

	got[0].MarkSkip("x")
	if history[0].Skip || len(history[0].SkipReasons) != 0 {
		t.Fatalf("Today must not alias history")
	}

	if got := Today(history, civil.Date{Year: 2030, Month: time.January, Day: 1}); len(got) != 0 {
		t.Fatalf("expected no releases, got %#v", got)
	}
}

func TestAccepted(t *testing.T) {
	a := draft(day1, "A", "1")
	b := draft(day1, "B", "2")
	b.MarkSkip("x")

	in := []domain.Release{a, b}
	got := Accepted(in)
	if len(got) != 1 || got[0].Artist != "A" {
		t.Fatalf("unexpected accepted set %#v", got)
	}
	if len(in) != 2 || in[1].Artist != "B" {
		t.Fatalf("input modified")
	}
}
