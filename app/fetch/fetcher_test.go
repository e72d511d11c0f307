package fetch

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"feedpipe/app/blob"
	"feedpipe/app/model"
)

const articleHTML = `<html><head><title>Article</title>
<script>trackPageview();</script>
</head><body>
<article>
<h1>Article Title</h1>
<p>This is the article body with enough text to be useful to a summarizer. It explains the topic in detail across a few sentences so extraction has something to work with.</p>
</article>
</body></html>`

func newTestBlobs(t *testing.T) *blob.Store {
	t.Helper()
	store, err := blob.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create blob store: %v", err)
	}
	return store
}

func newTestFetcher(blobs *blob.Store, sizeLimit int64) *Fetcher {
	return New(nil, blobs, &http.Client{}, "feedpipe-test/1.0", sizeLimit, 10*time.Second, 1)
}

func TestHandleWritesRawAndTextArtifacts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(articleHTML))
	}))
	defer server.Close()

	blobs := newTestBlobs(t)
	fetcher := newTestFetcher(blobs, 4*1024*1024)
	ctx := context.Background()

	task := model.FetchTask{FeedID: "example-com", PostID: "abc123", Link: server.URL + "/article"}
	if err := fetcher.Handle(ctx, task); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	raw, err := blobs.Get(ctx, blob.ArtifactPath("example-com", "abc123", blob.ArtifactRaw))
	if err != nil {
		t.Fatalf("expected raw artifact, got: %v", err)
	}
	if string(raw) != articleHTML {
		t.Error("expected raw artifact to hold the exact fetched bytes")
	}

	text, err := blobs.Get(ctx, blob.ArtifactPath("example-com", "abc123", blob.ArtifactText))
	if err != nil {
		t.Fatalf("expected text artifact, got: %v", err)
	}
	if !strings.Contains(string(text), "article body") {
		t.Errorf("expected extracted text to contain body content, got %q", text)
	}
	if strings.Contains(string(text), "trackPageview") {
		t.Errorf("expected script content stripped from text artifact, got %q", text)
	}
}

func TestHandleIdempotentOnRedelivery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(articleHTML))
	}))
	defer server.Close()

	blobs := newTestBlobs(t)
	fetcher := newTestFetcher(blobs, 4*1024*1024)
	ctx := context.Background()

	task := model.FetchTask{FeedID: "example-com", PostID: "abc123", Link: server.URL + "/article"}

	if err := fetcher.Handle(ctx, task); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	firstRaw, _ := blobs.Get(ctx, blob.ArtifactPath("example-com", "abc123", blob.ArtifactRaw))
	firstText, _ := blobs.Get(ctx, blob.ArtifactPath("example-com", "abc123", blob.ArtifactText))

	if err := fetcher.Handle(ctx, task); err != nil {
		t.Fatalf("expected redelivery to succeed, got: %v", err)
	}
	secondRaw, _ := blobs.Get(ctx, blob.ArtifactPath("example-com", "abc123", blob.ArtifactRaw))
	secondText, _ := blobs.Get(ctx, blob.ArtifactPath("example-com", "abc123", blob.ArtifactText))

	if !bytes.Equal(firstRaw, secondRaw) {
		t.Error("expected byte-identical raw artifacts across redeliveries")
	}
	if !bytes.Equal(firstText, secondText) {
		t.Error("expected byte-identical text artifacts across redeliveries")
	}
}

func TestHandleServerErrorFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	blobs := newTestBlobs(t)
	fetcher := newTestFetcher(blobs, 4*1024*1024)
	ctx := context.Background()

	task := model.FetchTask{FeedID: "example-com", PostID: "abc123", Link: server.URL + "/article"}
	if err := fetcher.Handle(ctx, task); err == nil {
		t.Fatal("expected error for HTTP 500 response")
	}

	if _, err := blobs.Get(ctx, blob.ArtifactPath("example-com", "abc123", blob.ArtifactRaw)); err == nil {
		t.Error("expected no raw artifact after fetch failure")
	}
}

func TestHandleOversizeResponseFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bytes.Repeat([]byte("x"), 1024))
	}))
	defer server.Close()

	blobs := newTestBlobs(t)
	fetcher := newTestFetcher(blobs, 256)
	ctx := context.Background()

	task := model.FetchTask{FeedID: "example-com", PostID: "abc123", Link: server.URL + "/article"}
	if err := fetcher.Handle(ctx, task); err == nil {
		t.Fatal("expected error for oversize response")
	}
}
