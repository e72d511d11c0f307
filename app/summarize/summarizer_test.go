package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"feedpipe/app/blob"
	"feedpipe/app/model"
)

type memorySummaryStore struct {
	records map[string]model.SummaryRecord
	upserts int
	failing bool
}

func newMemorySummaryStore() *memorySummaryStore {
	return &memorySummaryStore{records: make(map[string]model.SummaryRecord)}
}

func (m *memorySummaryStore) Upsert(_ context.Context, record model.SummaryRecord) error {
	if m.failing {
		return errors.New("store unavailable")
	}
	m.upserts++
	m.records[record.PostID] = record
	return nil
}

func (m *memorySummaryStore) Get(_ context.Context, postID string) (*model.SummaryRecord, error) {
	record, ok := m.records[postID]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

func (m *memorySummaryStore) List(_ context.Context, _ int) ([]model.SummaryRecord, error) {
	out := make([]model.SummaryRecord, 0, len(m.records))
	for _, record := range m.records {
		out = append(out, record)
	}
	return out, nil
}

func (m *memorySummaryStore) Count(_ context.Context) (int, error) {
	return len(m.records), nil
}

type stubModelClient struct {
	response string
	err      error
	calls    int
}

func (s *stubModelClient) Complete(_ context.Context, _ string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func newTestBlobs(t *testing.T) *blob.Store {
	t.Helper()

	blobs, err := blob.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create blob store: %v", err)
	}
	t.Cleanup(blobs.Close)
	return blobs
}

func putText(t *testing.T, blobs *blob.Store, feedID, postID, text string) string {
	t.Helper()

	path := blob.ArtifactPath(feedID, postID, blob.ArtifactText)
	if err := blobs.Put(context.Background(), path, []byte(text)); err != nil {
		t.Fatalf("failed to seed text artifact: %v", err)
	}
	return path
}

func TestHandleSkipModel(t *testing.T) {
	blobs := newTestBlobs(t)
	summaries := newMemorySummaryStore()
	summarizer := New(blobs, summaries, nil, true, 280, 12000)

	path := putText(t, blobs, "example-com", "abc123", "Hello world")

	if err := summarizer.Handle(context.Background(), path); err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	record := summaries.records["abc123"]
	if record.Summary != "Hello world" {
		t.Errorf("expected summary 'Hello world', got %q", record.Summary)
	}
	if len(record.Hashtags) != 0 {
		t.Errorf("expected no hashtags, got %v", record.Hashtags)
	}
	if record.Tweet != "Hello world" {
		t.Errorf("expected tweet 'Hello world', got %q", record.Tweet)
	}
	if record.FeedID != "example-com" {
		t.Errorf("expected feed id persisted, got %q", record.FeedID)
	}

	artifact, err := blobs.Get(context.Background(),
		blob.ArtifactPath("example-com", "abc123", blob.ArtifactSummary))
	if err != nil {
		t.Fatalf("expected summary artifact written: %v", err)
	}

	var result model.SummaryResult
	if err := json.Unmarshal(artifact, &result); err != nil {
		t.Fatalf("summary artifact is not valid JSON: %v", err)
	}
	if result.Summary != "Hello world" {
		t.Errorf("expected artifact summary 'Hello world', got %q", result.Summary)
	}
}

func TestHandleModelPath(t *testing.T) {
	blobs := newTestBlobs(t)
	summaries := newMemorySummaryStore()
	client := &stubModelClient{
		response: `{"summary": "Model summary.", "hashtags": ["#go"], "tweet": "Model tweet."}`,
	}
	summarizer := New(blobs, summaries, client, false, 280, 12000)

	path := putText(t, blobs, "example-com", "abc123", "An article about Go.")

	if err := summarizer.Handle(context.Background(), path); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if client.calls != 1 {
		t.Errorf("expected one model call, got %d", client.calls)
	}

	record := summaries.records["abc123"]
	if record.Summary != "Model summary." {
		t.Errorf("expected model summary persisted, got %q", record.Summary)
	}
	if len(record.Hashtags) != 1 || record.Hashtags[0] != "#go" {
		t.Errorf("expected model hashtags persisted, got %v", record.Hashtags)
	}
}

func TestHandleMalformedModelOutput(t *testing.T) {
	blobs := newTestBlobs(t)
	summaries := newMemorySummaryStore()
	client := &stubModelClient{response: "I refuse to answer in JSON."}
	summarizer := New(blobs, summaries, client, false, 280, 12000)

	path := putText(t, blobs, "example-com", "abc123", "Source body text.")

	if err := summarizer.Handle(context.Background(), path); err != nil {
		t.Fatalf("malformed model output must not surface an error, got %v", err)
	}

	record := summaries.records["abc123"]
	if record.Summary != "Source body text." {
		t.Errorf("expected fallback summary from source text, got %q", record.Summary)
	}
	if len(record.Hashtags) != 0 {
		t.Errorf("expected empty hashtags from fallback, got %v", record.Hashtags)
	}
}

func TestHandleModelFailureRetriable(t *testing.T) {
	blobs := newTestBlobs(t)
	summaries := newMemorySummaryStore()
	client := &stubModelClient{err: errors.New("connection refused")}
	summarizer := New(blobs, summaries, client, false, 280, 12000)

	path := putText(t, blobs, "example-com", "abc123", "Some text.")

	if err := summarizer.Handle(context.Background(), path); err == nil {
		t.Fatal("expected model invocation failure to propagate")
	}
	if summaries.upserts != 0 {
		t.Errorf("expected no record written after model failure, got %d upserts", summaries.upserts)
	}
}

func TestHandleEmptyTextSkipped(t *testing.T) {
	blobs := newTestBlobs(t)
	summaries := newMemorySummaryStore()
	client := &stubModelClient{}
	summarizer := New(blobs, summaries, client, false, 280, 12000)

	path := putText(t, blobs, "example-com", "abc123", "   \n\t ")

	if err := summarizer.Handle(context.Background(), path); err != nil {
		t.Fatalf("empty text must be a no-op, got %v", err)
	}
	if client.calls != 0 {
		t.Errorf("expected no model call for empty text, got %d", client.calls)
	}
	if summaries.upserts != 0 {
		t.Errorf("expected no record for empty text, got %d upserts", summaries.upserts)
	}
}

func TestHandleIgnoresNonTextArtifacts(t *testing.T) {
	blobs := newTestBlobs(t)
	summaries := newMemorySummaryStore()
	summarizer := New(blobs, summaries, nil, true, 280, 12000)

	path := blob.ArtifactPath("example-com", "abc123", blob.ArtifactRaw)
	if err := blobs.Put(context.Background(), path, []byte("<html>raw</html>")); err != nil {
		t.Fatalf("failed to seed raw artifact: %v", err)
	}

	if err := summarizer.Handle(context.Background(), path); err != nil {
		t.Fatalf("raw artifact must be a no-op, got %v", err)
	}
	if summaries.upserts != 0 {
		t.Errorf("expected no record for raw artifact, got %d upserts", summaries.upserts)
	}
}

func TestHandleUnrecognizedPathDropped(t *testing.T) {
	blobs := newTestBlobs(t)
	summarizer := New(blobs, newMemorySummaryStore(), nil, true, 280, 12000)

	if err := summarizer.Handle(context.Background(), "not/a/valid/artifact/path"); err != nil {
		t.Fatalf("unrecognized path must be dropped without error, got %v", err)
	}
}

func TestHandleBoundsHold(t *testing.T) {
	blobs := newTestBlobs(t)
	summaries := newMemorySummaryStore()
	client := &stubModelClient{response: fmt.Sprintf(
		`{"summary": %q, "hashtags": ["#1","#2","#3","#4","#5","#6","#7"], "tweet": %q}`,
		longString(600), longString(500))}
	summarizer := New(blobs, summaries, client, false, 280, 12000)

	path := putText(t, blobs, "example-com", "abc123", longString(2000))

	if err := summarizer.Handle(context.Background(), path); err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	record := summaries.records["abc123"]
	if len(record.Summary) > 280 {
		t.Errorf("summary exceeds limit: %d chars", len(record.Summary))
	}
	if len(record.Tweet) > model.TweetCharLimit {
		t.Errorf("tweet exceeds limit: %d chars", len(record.Tweet))
	}
	if len(record.Hashtags) > model.MaxHashtags {
		t.Errorf("hashtags exceed limit: %d", len(record.Hashtags))
	}
}

func TestRunConsumesUntilClose(t *testing.T) {
	blobs := newTestBlobs(t)
	summaries := newMemorySummaryStore()
	summarizer := New(blobs, summaries, nil, true, 280, 12000)

	pathA := putText(t, blobs, "example-com", "post-a", "First body")
	pathB := putText(t, blobs, "example-com", "post-b", "Second body")

	events := make(chan blob.CreateEvent, 2)
	events <- blob.CreateEvent{Path: pathA}
	events <- blob.CreateEvent{Path: pathB}
	close(events)

	summarizer.Run(context.Background(), events)

	if summaries.upserts != 2 {
		t.Errorf("expected both events processed, got %d upserts", summaries.upserts)
	}
}

func longString(n int) string {
	out := make([]byte, n)
	for i := range out {
		out[i] = 'x'
	}
	return string(out)
}
