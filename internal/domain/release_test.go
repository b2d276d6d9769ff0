package domain

import (
	"testing"

	"cloud.google.com/go/civil"
)

func TestReleaseKeyIsExactMatch(t *testing.T) {
	a := Release{Artist: "Wolfheart", Album: "Skull Soup"}
	b := Release{Artist: "wolfheart", Album: "Skull Soup"}
	c := Release{Artist: "Wolfheart ", Album: "Skull Soup"}

	if a.Key() == b.Key() {
		t.Fatalf("keys must differ by case")
	}
	if a.Key() == c.Key() {
		t.Fatalf("keys must differ by trailing whitespace")
	}
	if a.Key() != (Release{Artist: "Wolfheart", Album: "Skull Soup", Label: "Napalm"}).Key() {
		t.Fatalf("label must not participate in identity")
	}
}

func TestMarkSkipAppendsReasons(t *testing.T) {
	var r Release
	r.MarkSkip("first")
	r.MarkSkip("second")

	if !r.Skip {
		t.Fatalf("expected skip to be set")
	}
	if len(r.SkipReasons) != 2 || r.SkipReasons[0] != "first" || r.SkipReasons[1] != "second" {
		t.Fatalf("unexpected reasons %v", r.SkipReasons)
	}
}

func TestCloneDoesNotAlias(t *testing.T) {
	r := Release{
		Date:        civil.Date{Year: 2024, Month: 1, Day: 5},
		SkipReasons: []string{"a"},
		Popularity:  NewPopularityMetadata("id", "url", []string{"metal"}, 50, 2000),
		Archive:     &ArchiveMetadata{Genre: "Death Metal"},
	}
	c := r.Clone()
	c.SkipReasons[0] = "changed"
	c.Popularity.Genres[0] = "pop"
	c.Archive.Genre = "Pop"

	if r.SkipReasons[0] != "a" || r.Popularity.Genres[0] != "metal" || r.Archive.Genre != "Death Metal" {
		t.Fatalf("clone aliased original: %+v", r)
	}
}

func TestNewPopularityMetadataDedupesGenres(t *testing.T) {
	m := NewPopularityMetadata("id", "url", []string{"death metal", "death metal", "thrash metal"}, 10, -5)
	if len(m.Genres) != 2 {
		t.Fatalf("expected 2 genres, got %v", m.Genres)
	}
	if m.Followers != 0 {
		t.Fatalf("expected negative followers clamped to 0, got %d", m.Followers)
	}
}
