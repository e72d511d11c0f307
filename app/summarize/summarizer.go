package summarize

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"feedpipe/app/blob"
	"feedpipe/app/model"
	"feedpipe/app/store"
)

// Summarizer reacts to text-artifact creation notifications: it reads
// the extracted text, obtains a structured summary from the model (or
// the deterministic fallback), and persists both the summary artifact
// and the queryable record. Malformed model output is always recovered
// locally; only network and store failures propagate to the retry loop.
type Summarizer struct {
	blobs     *blob.Store
	summaries store.SummaryStore
	client    ModelClient

	skipModel    bool
	charLimit    int
	promptBudget int
	maxAttempts  int
}

func New(blobs *blob.Store, summaries store.SummaryStore, client ModelClient,
	skipModel bool, charLimit, promptBudget int) *Summarizer {
	return &Summarizer{
		blobs:        blobs,
		summaries:    summaries,
		client:       client,
		skipModel:    skipModel,
		charLimit:    charLimit,
		promptBudget: promptBudget,
		maxAttempts:  3,
	}
}

// Run consumes creation notifications until the channel closes or the
// context ends. A failing notification is retried with backoff up to
// the attempt budget, then dropped with an error log so no unit of work
// disappears unaccounted.
func (s *Summarizer) Run(ctx context.Context, events <-chan blob.CreateEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			s.process(ctx, event)
		}
	}
}

func (s *Summarizer) process(ctx context.Context, event blob.CreateEvent) {
	delay := time.Second
	for attempt := 1; ; attempt++ {
		err := s.Handle(ctx, event.Path)
		if err == nil {
			return
		}

		if attempt >= s.maxAttempts {
			slog.Error("Summarization abandoned after maximum attempts",
				"path", event.Path, "attempts", attempt, "error", err)
			return
		}

		slog.Warn("Summarization failed, retrying",
			"path", event.Path, "attempt", attempt, "delay", delay.String(), "error", err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
	}
}

// Handle summarizes the post behind one text-artifact path. Empty text
// and non-text artifacts are no-ops, not errors.
func (s *Summarizer) Handle(ctx context.Context, path string) error {
	feedID, postID, name, err := blob.SplitArtifactPath(path)
	if err != nil {
		slog.Warn("Notification with unrecognized path dropped", "path", path, "error", err)
		return nil
	}
	if name != blob.ArtifactText {
		return nil
	}

	data, err := s.blobs.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to read text artifact: %w", err)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		slog.Debug("Empty text artifact skipped", "feed_id", feedID, "post_id", postID)
		return nil
	}

	result, err := s.summarize(ctx, text)
	if err != nil {
		return err
	}

	artifact, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode summary artifact: %w", err)
	}

	summaryPath := blob.ArtifactPath(feedID, postID, blob.ArtifactSummary)
	if err := s.blobs.Put(ctx, summaryPath, artifact); err != nil {
		return fmt.Errorf("failed to store summary artifact: %w", err)
	}

	record := model.SummaryRecord{
		PostID:    postID,
		FeedID:    feedID,
		Summary:   result.Summary,
		Hashtags:  result.Hashtags,
		Tweet:     result.Tweet,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.summaries.Upsert(ctx, record); err != nil {
		return fmt.Errorf("failed to upsert summary record: %w", err)
	}

	slog.Info("Post summarized", "feed_id", feedID, "post_id", postID,
		"summary_chars", len(result.Summary), "hashtags", len(result.Hashtags))

	return nil
}

// summarize produces a bounded result. Model invocation failures are
// returned for retry; malformed output never is.
func (s *Summarizer) summarize(ctx context.Context, text string) (model.SummaryResult, error) {
	if s.skipModel || s.client == nil {
		return Fallback(text, s.charLimit), nil
	}

	prompt := buildPrompt(model.Truncate(text, s.promptBudget),
		s.charLimit, model.MaxHashtags, model.TweetCharLimit)

	raw, err := s.client.Complete(ctx, prompt)
	if err != nil {
		return model.SummaryResult{}, fmt.Errorf("model invocation failed: %w", err)
	}

	return ParseModelOutput(raw, text, s.charLimit), nil
}
