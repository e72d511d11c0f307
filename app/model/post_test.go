package model

import (
	"testing"
	"time"
)

func TestDerivePostIDDeterministic(t *testing.T) {
	published := time.Date(2023, 7, 3, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		name      string
		link      string
		guid      string
		published *time.Time
	}{
		{"link only", "https://example.com/item1", "", nil},
		{"guid only", "", "item-1", nil},
		{"published only", "", "", &published},
		{"all present", "https://example.com/item1", "item-1", &published},
	}

	for _, tc := range cases {
		first := DerivePostID(tc.link, tc.guid, tc.published)
		second := DerivePostID(tc.link, tc.guid, tc.published)

		if first != second {
			t.Errorf("%s: expected identical ids across calls, got %s and %s", tc.name, first, second)
		}
		if len(first) != PostIDLength {
			t.Errorf("%s: expected id length %d, got %d", tc.name, PostIDLength, len(first))
		}
	}
}

func TestDerivePostIDSelectorPrecedence(t *testing.T) {
	published := time.Date(2023, 7, 3, 10, 0, 0, 0, time.UTC)

	withLink := DerivePostID("https://example.com/item1", "item-1", &published)
	linkOnly := DerivePostID("https://example.com/item1", "", nil)
	if withLink != linkOnly {
		t.Errorf("expected link to dominate guid and published date")
	}

	withGUID := DerivePostID("", "item-1", &published)
	guidOnly := DerivePostID("", "item-1", nil)
	if withGUID != guidOnly {
		t.Errorf("expected guid to dominate published date when link is empty")
	}

	if linkOnly == guidOnly {
		t.Errorf("expected different selectors to yield different ids")
	}
}

func TestDerivePostIDRandomFallback(t *testing.T) {
	first := DerivePostID("", "", nil)
	second := DerivePostID("", "", nil)

	if first == second {
		t.Errorf("expected random fallback ids to differ, both were %s", first)
	}
	if len(first) != PostIDLength {
		t.Errorf("expected id length %d, got %d", PostIDLength, len(first))
	}
}

func TestDeriveFeedID(t *testing.T) {
	cases := []struct {
		url      string
		expected string
	}{
		{"https://example.com/feed.xml", "example-com"},
		{"https://Example.COM/other/path", "example-com"},
		{"https://news.example.com:8080/rss", "news-example-com-8080"},
		{"not a url", "not a url"},
	}

	for _, tc := range cases {
		if got := DeriveFeedID(tc.url); got != tc.expected {
			t.Errorf("DeriveFeedID(%q) = %q, expected %q", tc.url, got, tc.expected)
		}
	}
}

func TestDeriveFeedIDStableAcrossPaths(t *testing.T) {
	a := DeriveFeedID("https://example.com/feed.xml")
	b := DeriveFeedID("https://example.com/feed.xml?page=2")
	if a != b {
		t.Errorf("expected same host to map to same feed id, got %q and %q", a, b)
	}
}
