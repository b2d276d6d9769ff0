package textmatch

import "testing"

func TestEqualFold(t *testing.T) {
	if !EqualFold("Motörhead", "MOTÖRHEAD") {
		t.Fatalf("expected unicode case-insensitive match")
	}
	if !EqualFold("Straße", "STRASSE") {
		t.Fatalf("expected full case folding")
	}
	if EqualFold("Wolfheart", "Wolfheart ") {
		t.Fatalf("whitespace must be significant")
	}
}

func TestContainsFold(t *testing.T) {
	if !ContainsFold("Atmospheric Black Metal", "black") {
		t.Fatalf("expected substring match")
	}
	if ContainsFold("deathcore", "metal") {
		t.Fatalf("unexpected match")
	}
}
