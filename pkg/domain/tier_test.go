package domain

import "testing"

func TestTierLimits(t *testing.T) {
	cases := []struct {
		tier          Tier
		booksPerMonth int
		maxChapters   int
	}{
		{TierExplorer, 1, 5},
		{TierWriter, 5, 20},
		{TierAuthor, 15, Unlimited},
		{TierPublisher, Unlimited, Unlimited},
	}
	for _, tc := range cases {
		if got := tc.tier.BooksPerMonth(); got != tc.booksPerMonth {
			t.Fatalf("%s books per month: got %d, want %d", tc.tier, got, tc.booksPerMonth)
		}
		if got := tc.tier.MaxChapters(); got != tc.maxChapters {
			t.Fatalf("%s max chapters: got %d, want %d", tc.tier, got, tc.maxChapters)
		}
	}
}

func TestParseTierFallsBackToExplorer(t *testing.T) {
	if got := ParseTier("Writer"); got != TierWriter {
		t.Fatalf("Writer should parse, got %s", got)
	}
	if got := ParseTier("publisher"); got != TierPublisher {
		t.Fatalf("parse should be case-insensitive, got %s", got)
	}
	if got := ParseTier("platinum"); got != TierExplorer {
		t.Fatalf("unknown tier should fall back to Explorer, got %s", got)
	}
	if got := ParseTier(""); got != TierExplorer {
		t.Fatalf("empty tier should fall back to Explorer, got %s", got)
	}
}

func TestAllowanceLabel(t *testing.T) {
	if got := TierWriter.AllowanceLabel(); got != "5 books" {
		t.Fatalf("writer label: got %q", got)
	}
	if got := TierPublisher.AllowanceLabel(); got != "unlimited books" {
		t.Fatalf("publisher label: got %q", got)
	}
}
