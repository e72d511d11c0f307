package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"feedpipe/app/model"
)

var _ PostStore = (*PostRepository)(nil)

// PostRepository persists posts and emits a change event for every
// accepted insert. The conditional insert is the pipeline's only
// serialization point: among concurrent attempts to register the same
// (feed_id, post_id) exactly one wins.
type PostRepository struct {
	db     *DB
	events chan model.ChangeEvent
}

func NewPostRepository(db *DB, eventBuffer int) *PostRepository {
	return &PostRepository{
		db:     db,
		events: make(chan model.ChangeEvent, eventBuffer),
	}
}

// Events returns the stream of change events. Events are delivered in
// write order per producer; consumers must drain the channel or inserts
// will block once the buffer fills.
func (r *PostRepository) Events() <-chan model.ChangeEvent {
	return r.events
}

// CloseEvents closes the event stream. Call only after all writers have
// stopped.
func (r *PostRepository) CloseEvents() {
	close(r.events)
}

// InsertIfAbsent registers a post unless its (feed_id, post_id) key is
// already present. A rejected write is not an error; it reports
// accepted=false so callers can count duplicates from the actual write
// outcome.
func (r *PostRepository) InsertIfAbsent(ctx context.Context, post model.Post) (bool, error) {
	var publishedAt sql.NullString
	if post.PublishedAt != nil {
		publishedAt = sql.NullString{String: post.PublishedAt.UTC().Format(time.RFC3339Nano), Valid: true}
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO posts (feed_id, post_id, title, link, published_at, summary_from_feed, fetched_at, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (feed_id, post_id) DO NOTHING
	`, post.FeedID, post.PostID, post.Title, post.Link, publishedAt,
		post.SummaryFromFeed, post.FetchedAt.UTC().Format(time.RFC3339Nano), post.Source)
	if err != nil {
		return false, fmt.Errorf("failed to insert post: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert outcome: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	snapshot := post
	event := model.ChangeEvent{Kind: model.EventInsert, Snapshot: &snapshot}
	select {
	case r.events <- event:
	case <-ctx.Done():
		// The post is durable either way; the dispatcher will not see
		// this insert, which redelivery cannot fix, so surface it.
		return true, fmt.Errorf("post accepted but change event not delivered: %w", ctx.Err())
	}

	return true, nil
}

func (r *PostRepository) GetPost(ctx context.Context, feedID, postID string) (*model.Post, error) {
	var post model.Post
	var publishedAt sql.NullString
	var fetchedAt string

	err := r.db.QueryRowContext(ctx, `
		SELECT feed_id, post_id, title, link, published_at, summary_from_feed, fetched_at, source
		FROM posts
		WHERE feed_id = ? AND post_id = ?
	`, feedID, postID).Scan(&post.FeedID, &post.PostID, &post.Title, &post.Link,
		&publishedAt, &post.SummaryFromFeed, &fetchedAt, &post.Source)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}

	if publishedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, publishedAt.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse published_at: %w", err)
		}
		post.PublishedAt = &t
	}

	t, err := time.Parse(time.RFC3339Nano, fetchedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fetched_at: %w", err)
	}
	post.FetchedAt = t

	return &post, nil
}

func (r *PostRepository) CountPosts(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM posts").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count posts: %w", err)
	}
	return count, nil
}
