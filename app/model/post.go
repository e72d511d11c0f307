package model

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PostIDLength is the number of hex characters kept from the identity digest.
const PostIDLength = 24

// Post is an immutable record of a feed item seen by the poller. The
// (FeedID, PostID) pair is unique; once written, a post is never mutated.
type Post struct {
	FeedID          string     `json:"feed_id"`
	PostID          string     `json:"post_id"`
	Title           string     `json:"title"`
	Link            string     `json:"link"`
	PublishedAt     *time.Time `json:"published_at,omitempty"`
	SummaryFromFeed string     `json:"summary_from_feed"`
	FetchedAt       time.Time  `json:"fetched_at"`
	Source          string     `json:"source"`
}

// DerivePostID builds the deterministic item identity used for
// deduplication: the first 24 hex characters of SHA-256 over the first
// non-empty selector of link, guid, published timestamp. Items exposing
// none of the three get a random identity and are never deduplicated.
func DerivePostID(link, guid string, published *time.Time) string {
	var seed string
	switch {
	case link != "":
		seed = link
	case guid != "":
		seed = guid
	case published != nil:
		seed = published.UTC().Format(time.RFC3339)
	default:
		seed = uuid.NewString()
	}

	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])[:PostIDLength]
}

// DeriveFeedID maps a feed URL to its partition key. The key is derived
// from the host component only, so re-polling the same feed always lands
// in the same partition regardless of path or query changes.
func DeriveFeedID(feedURL string) string {
	host := ""
	if u, err := url.Parse(feedURL); err == nil {
		host = u.Host
	}
	if host == "" {
		host = feedURL
	}

	host = strings.ToLower(host)
	replacer := strings.NewReplacer(".", "-", ":", "-", "/", "-")
	return replacer.Replace(host)
}
