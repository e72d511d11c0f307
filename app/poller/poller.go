package poller

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"

	"feedpipe/app/model"
	"feedpipe/app/registry"
	"feedpipe/app/store"
)

// Report is the outcome of one poll cycle. Accepted and duplicate
// counts come strictly from the conditional-write outcome.
type Report struct {
	FeedsProcessed int `json:"feeds_processed"`
	FeedsFailed    int `json:"feeds_failed"`
	ItemsAccepted  int `json:"items_accepted"`
	ItemsDuplicate int `json:"items_duplicate"`
}

// Poller fetches every registered feed, parses its items, and registers
// each one as a post through the store's conditional insert. Concurrency
// is bounded at two levels: feeds in flight across the cycle, and items
// in flight per feed.
type Poller struct {
	registry  *registry.Registry
	posts     store.PostStore
	client    *http.Client
	parser    *gofeed.Parser
	userAgent string

	feedLimit int
	itemLimit int
	sizeLimit int64
	timeout   time.Duration
}

func New(reg *registry.Registry, posts store.PostStore, client *http.Client,
	userAgent string, feedLimit, itemLimit int, sizeLimit int64, timeout time.Duration) *Poller {
	return &Poller{
		registry:  reg,
		posts:     posts,
		client:    client,
		parser:    gofeed.NewParser(),
		userAgent: userAgent,
		feedLimit: feedLimit,
		itemLimit: itemLimit,
		sizeLimit: sizeLimit,
		timeout:   timeout,
	}
}

// Run executes one poll cycle over the registry's feed list. A failing
// feed is counted and logged without aborting its siblings.
func (p *Poller) Run(ctx context.Context) Report {
	feeds := p.registry.Feeds()

	var mu sync.Mutex
	var report Report

	sem := make(chan struct{}, p.feedLimit)
	var wg sync.WaitGroup

	for _, feed := range feeds {
		wg.Add(1)
		sem <- struct{}{}
		go func(feed registry.Feed) {
			defer wg.Done()
			defer func() { <-sem }()

			accepted, duplicate, err := p.pollFeed(ctx, feed)

			mu.Lock()
			defer mu.Unlock()
			report.FeedsProcessed++
			if err != nil {
				report.FeedsFailed++
				slog.Error("Feed poll failed", "feed", feed.URL, "error", err)
				return
			}
			report.ItemsAccepted += accepted
			report.ItemsDuplicate += duplicate
		}(feed)
	}

	wg.Wait()

	slog.Info("Poll cycle complete",
		"feeds_processed", report.FeedsProcessed,
		"feeds_failed", report.FeedsFailed,
		"items_accepted", report.ItemsAccepted,
		"items_duplicate", report.ItemsDuplicate)

	return report
}

func (p *Poller) pollFeed(ctx context.Context, feed registry.Feed) (accepted, duplicate int, err error) {
	data, err := p.fetchFeed(ctx, feed.URL)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to fetch feed: %w", err)
	}

	parsed, err := p.parser.ParseString(string(data))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to parse feed: %w", err)
	}

	feedID := model.DeriveFeedID(feed.URL)
	fetchedAt := time.Now().UTC()

	var mu sync.Mutex
	var firstErr error

	sem := make(chan struct{}, p.itemLimit)
	var wg sync.WaitGroup

	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(item *gofeed.Item) {
			defer wg.Done()
			defer func() { <-sem }()

			post := model.Post{
				FeedID:          feedID,
				PostID:          model.DerivePostID(item.Link, item.GUID, item.PublishedParsed),
				Title:           item.Title,
				Link:            item.Link,
				PublishedAt:     item.PublishedParsed,
				SummaryFromFeed: item.Description,
				FetchedAt:       fetchedAt,
				Source:          feed.URL,
			}

			ok, err := p.posts.InsertIfAbsent(ctx, post)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			if ok {
				accepted++
			} else {
				duplicate++
			}
		}(item)
	}

	wg.Wait()

	if firstErr != nil {
		return accepted, duplicate, fmt.Errorf("failed to register items: %w", firstErr)
	}

	slog.Debug("Feed polled", "feed", feed.URL, "items", len(parsed.Items),
		"accepted", accepted, "duplicates", duplicate)

	return accepted, duplicate, nil
}

func (p *Poller) fetchFeed(ctx context.Context, url string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, p.sizeLimit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(data)) > p.sizeLimit {
		return nil, fmt.Errorf("feed exceeds size limit of %d bytes", p.sizeLimit)
	}

	return data, nil
}
