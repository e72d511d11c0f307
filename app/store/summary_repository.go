package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"feedpipe/app/model"
)

var _ SummaryStore = (*SummaryRepository)(nil)

// SummaryRepository persists summary records keyed by post id. Writes
// are upserts so redelivered summarization work overwrites instead of
// duplicating.
type SummaryRepository struct {
	db *DB
}

func NewSummaryRepository(db *DB) *SummaryRepository {
	return &SummaryRepository{db: db}
}

func (r *SummaryRepository) Upsert(ctx context.Context, record model.SummaryRecord) error {
	hashtags := record.Hashtags
	if hashtags == nil {
		hashtags = []string{}
	}
	encoded, err := json.Marshal(hashtags)
	if err != nil {
		return fmt.Errorf("failed to encode hashtags: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO summaries (post_id, feed_id, summary, hashtags, tweet, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (post_id) DO UPDATE SET
			feed_id = excluded.feed_id,
			summary = excluded.summary,
			hashtags = excluded.hashtags,
			tweet = excluded.tweet,
			created_at = excluded.created_at
	`, record.PostID, record.FeedID, record.Summary, string(encoded),
		record.Tweet, record.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to upsert summary: %w", err)
	}

	return nil
}

func (r *SummaryRepository) Get(ctx context.Context, postID string) (*model.SummaryRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT post_id, feed_id, summary, hashtags, tweet, created_at
		FROM summaries
		WHERE post_id = ?
	`, postID)

	record, err := scanSummary(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (r *SummaryRepository) List(ctx context.Context, limit int) ([]model.SummaryRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT post_id, feed_id, summary, hashtags, tweet, created_at
		FROM summaries
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list summaries: %w", err)
	}
	defer rows.Close()

	var records []model.SummaryRecord
	for rows.Next() {
		record, err := scanSummary(rows.Scan)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating summary rows: %w", err)
	}

	return records, nil
}

func (r *SummaryRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM summaries").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count summaries: %w", err)
	}
	return count, nil
}

func scanSummary(scan func(dest ...any) error) (*model.SummaryRecord, error) {
	var record model.SummaryRecord
	var hashtags string
	var createdAt string

	err := scan(&record.PostID, &record.FeedID, &record.Summary, &hashtags, &record.Tweet, &createdAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan summary row: %w", err)
	}

	if err := json.Unmarshal([]byte(hashtags), &record.Hashtags); err != nil {
		return nil, fmt.Errorf("failed to decode hashtags: %w", err)
	}

	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	record.CreatedAt = t

	return &record, nil
}
