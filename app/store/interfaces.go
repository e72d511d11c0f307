package store

import (
	"context"

	"feedpipe/app/model"
)

// PostStore is the write-once-per-key store backing deduplication.
type PostStore interface {
	InsertIfAbsent(ctx context.Context, post model.Post) (accepted bool, err error)
	GetPost(ctx context.Context, feedID, postID string) (*model.Post, error)
	CountPosts(ctx context.Context) (int, error)
}

// SummaryStore is the queryable store of enriched results, keyed by post
// id with last-writer-wins upsert semantics.
type SummaryStore interface {
	Upsert(ctx context.Context, record model.SummaryRecord) error
	Get(ctx context.Context, postID string) (*model.SummaryRecord, error)
	List(ctx context.Context, limit int) ([]model.SummaryRecord, error)
	Count(ctx context.Context) (int, error)
}
