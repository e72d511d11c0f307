package model

import "time"

const (
	// TweetCharLimit bounds the tweet field of every summary result.
	TweetCharLimit = 320
	// MaxHashtags bounds the hashtag list of every summary result.
	MaxHashtags = 6
)

// SummaryResult is the structured output requested from the model and the
// JSON shape of the summary artifact.
type SummaryResult struct {
	Summary  string   `json:"summary"`
	Hashtags []string `json:"hashtags"`
	Tweet    string   `json:"tweet"`
}

// SummaryRecord is the queryable record persisted per post. Upserted by
// post id; redelivery overwrites the earlier write.
type SummaryRecord struct {
	PostID    string    `json:"post_id"`
	FeedID    string    `json:"feed_id"`
	Summary   string    `json:"summary"`
	Hashtags  []string  `json:"hashtags"`
	Tweet     string    `json:"tweet"`
	CreatedAt time.Time `json:"created_at"`
}

// Clamped enforces the length bounds: summary to charLimit characters,
// tweet to TweetCharLimit, hashtags to MaxHashtags entries. A nil hashtag
// list becomes an empty one so the JSON shape stays stable.
func (r SummaryResult) Clamped(charLimit int) SummaryResult {
	r.Summary = Truncate(r.Summary, charLimit)
	r.Tweet = Truncate(r.Tweet, TweetCharLimit)
	if r.Hashtags == nil {
		r.Hashtags = []string{}
	}
	if len(r.Hashtags) > MaxHashtags {
		r.Hashtags = r.Hashtags[:MaxHashtags]
	}
	return r
}

// Truncate shortens s to at most limit characters, counting runes so a
// multibyte character is never split.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
