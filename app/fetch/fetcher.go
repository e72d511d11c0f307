package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"feedpipe/app/blob"
	"feedpipe/app/model"
	"feedpipe/app/queue"
)

// Fetcher consumes fetch tasks, retrieves article content, extracts
// plain text, and writes the raw and text artifacts. Each task is
// handled independently and idempotently; a failed task is simply not
// acknowledged, leaving recovery to the queue's lease expiry and
// dead-letter policy. The fetcher itself never retries.
type Fetcher struct {
	queue     *queue.Queue
	blobs     *blob.Store
	client    *http.Client
	userAgent string

	sizeLimit int64
	timeout   time.Duration
	workers   int
	idle      time.Duration
}

func New(q *queue.Queue, blobs *blob.Store, client *http.Client, userAgent string,
	sizeLimit int64, timeout time.Duration, workers int) *Fetcher {
	return &Fetcher{
		queue:     q,
		blobs:     blobs,
		client:    client,
		userAgent: userAgent,
		sizeLimit: sizeLimit,
		timeout:   timeout,
		workers:   workers,
		idle:      time.Second,
	}
}

// Run starts the worker pool and blocks until the context ends.
func (f *Fetcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < f.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			f.worker(ctx, id)
		}(i)
	}
	wg.Wait()
}

func (f *Fetcher) worker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, err := f.queue.Receive(ctx)
		if errors.Is(err, queue.ErrEmpty) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(f.idle):
			}
			continue
		}
		if err != nil {
			slog.Error("Worker failed to receive task", "worker_id", id, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(f.idle):
			}
			continue
		}

		if err := f.Handle(ctx, msg.Task); err != nil {
			// No ack: the lease expires and the queue redelivers or
			// dead-letters per its delivery budget.
			slog.Error("Fetch task failed", "worker_id", id, "id", msg.ID,
				"post_id", msg.Task.PostID, "delivery", msg.DeliveryCount, "error", err)
			continue
		}

		if err := f.queue.Ack(ctx, msg.ID); err != nil {
			slog.Error("Failed to ack task", "worker_id", id, "id", msg.ID, "error", err)
		}
	}
}

// Handle processes one task: fetch the page, write the raw artifact,
// extract text, write the text artifact. Both writes are unconditional
// overwrites, so redelivering the same task produces identical
// artifacts.
func (f *Fetcher) Handle(ctx context.Context, task model.FetchTask) error {
	data, err := f.fetchPage(ctx, task.Link)
	if err != nil {
		return fmt.Errorf("failed to fetch content: %w", err)
	}

	rawPath := blob.ArtifactPath(task.FeedID, task.PostID, blob.ArtifactRaw)
	if err := f.blobs.Put(ctx, rawPath, data); err != nil {
		return fmt.Errorf("failed to store raw artifact: %w", err)
	}

	text := ExtractText(data, task.Link)

	textPath := blob.ArtifactPath(task.FeedID, task.PostID, blob.ArtifactText)
	if err := f.blobs.Put(ctx, textPath, []byte(text)); err != nil {
		return fmt.Errorf("failed to store text artifact: %w", err)
	}

	slog.Debug("Content fetched", "post_id", task.PostID, "raw_bytes", len(data), "text_chars", len(text))

	return nil
}

func (f *Fetcher) fetchPage(ctx context.Context, url string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.sizeLimit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(data)) > f.sizeLimit {
		return nil, fmt.Errorf("response exceeds size limit of %d bytes", f.sizeLimit)
	}

	return data, nil
}
