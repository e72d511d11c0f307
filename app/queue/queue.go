package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"feedpipe/app/model"
)

// Task statuses. A pending task is deliverable; an inflight task is
// leased to a consumer until lease_until; a dead task exceeded its
// delivery budget and waits for manual inspection.
const (
	statusPending  = "pending"
	statusInflight = "inflight"
	statusDead     = "dead"
)

// ErrEmpty reports that no task is ready for delivery. It is a normal
// idle signal, not a failure.
var ErrEmpty = errors.New("no tasks ready for delivery")

// Message is one delivery of a fetch task. The same task may be
// delivered more than once; consumers must be idempotent.
type Message struct {
	ID            string
	Task          model.FetchTask
	DeliveryCount int
}

// Queue is a durable at-least-once task queue backed by the pipeline
// database. Delivery uses visibility leases: a claimed task becomes
// invisible until its lease expires, and an unacknowledged task is
// redelivered after expiry. Tasks whose delivery count exceeds the
// configured maximum are routed to the dead-letter status instead of
// being delivered again.
type Queue struct {
	db            *sql.DB
	visibility    time.Duration
	maxDeliveries int
	now           func() time.Time
}

func New(db *sql.DB, visibility time.Duration, maxDeliveries int) *Queue {
	return &Queue{
		db:            db,
		visibility:    visibility,
		maxDeliveries: maxDeliveries,
		now:           time.Now,
	}
}

// Enqueue adds a task. Duplicate tasks for the same post are permitted;
// downstream idempotence absorbs them.
func (q *Queue) Enqueue(ctx context.Context, task model.FetchTask) (string, error) {
	body, err := json.Marshal(task)
	if err != nil {
		return "", fmt.Errorf("failed to encode task: %w", err)
	}

	id := uuid.NewString()
	now := q.now().UTC().UnixNano()

	_, err = q.db.ExecContext(ctx, `
		INSERT INTO fetch_tasks (id, body, status, delivery_count, lease_until, created_at, updated_at)
		VALUES (?, ?, ?, 0, 0, ?, ?)
	`, id, string(body), statusPending, now, now)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue task: %w", err)
	}

	return id, nil
}

// Receive claims the oldest deliverable task, increments its delivery
// count, and leases it for the visibility timeout. Tasks found over the
// delivery budget are dead-lettered during the scan. Returns ErrEmpty
// when nothing is deliverable.
func (q *Queue) Receive(ctx context.Context) (*Message, error) {
	for {
		msg, deadLettered, err := q.claimOne(ctx)
		if err != nil {
			return nil, err
		}
		if deadLettered {
			continue
		}
		return msg, nil
	}
}

func (q *Queue) claimOne(ctx context.Context) (*Message, bool, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin claim: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := q.now().UTC().UnixNano()

	var id, body string
	var deliveryCount int
	err = tx.QueryRowContext(ctx, `
		SELECT id, body, delivery_count
		FROM fetch_tasks
		WHERE status != ? AND (status = ? OR lease_until <= ?)
		ORDER BY created_at
		LIMIT 1
	`, statusDead, statusPending, now).Scan(&id, &body, &deliveryCount)
	if err == sql.ErrNoRows {
		return nil, false, ErrEmpty
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to select task: %w", err)
	}

	if deliveryCount >= q.maxDeliveries {
		_, err = tx.ExecContext(ctx, `
			UPDATE fetch_tasks SET status = ?, updated_at = ? WHERE id = ?
		`, statusDead, now, id)
		if err != nil {
			return nil, false, fmt.Errorf("failed to dead-letter task: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, false, fmt.Errorf("failed to commit dead-letter: %w", err)
		}
		slog.Warn("Task dead-lettered", "id", id, "deliveries", deliveryCount)
		return nil, true, nil
	}

	leaseUntil := q.now().UTC().Add(q.visibility).UnixNano()
	_, err = tx.ExecContext(ctx, `
		UPDATE fetch_tasks
		SET status = ?, delivery_count = delivery_count + 1, lease_until = ?, updated_at = ?
		WHERE id = ?
	`, statusInflight, leaseUntil, now, id)
	if err != nil {
		return nil, false, fmt.Errorf("failed to lease task: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit claim: %w", err)
	}

	var task model.FetchTask
	if err := json.Unmarshal([]byte(body), &task); err != nil {
		return nil, false, fmt.Errorf("failed to decode task %s: %w", id, err)
	}

	return &Message{ID: id, Task: task, DeliveryCount: deliveryCount + 1}, false, nil
}

// Ack removes a completed task. Acking an already-removed task is a
// no-op so redelivered work can complete safely.
func (q *Queue) Ack(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, "DELETE FROM fetch_tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to ack task: %w", err)
	}
	return nil
}

// Depth reports the number of live (pending or inflight) tasks.
func (q *Queue) Depth(ctx context.Context) (int, error) {
	var count int
	err := q.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM fetch_tasks WHERE status != ?", statusDead).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return count, nil
}

// DeadLetterCount reports the number of tasks parked after exceeding
// their delivery budget.
func (q *Queue) DeadLetterCount(ctx context.Context) (int, error) {
	var count int
	err := q.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM fetch_tasks WHERE status = ?", statusDead).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count dead-lettered tasks: %w", err)
	}
	return count, nil
}

// DeadLettered returns tasks that exceeded their delivery budget, for
// operator inspection.
func (q *Queue) DeadLettered(ctx context.Context) ([]Message, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, body, delivery_count
		FROM fetch_tasks
		WHERE status = ?
		ORDER BY created_at
	`, statusDead)
	if err != nil {
		return nil, fmt.Errorf("failed to list dead-lettered tasks: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var msg Message
		var body string
		if err := rows.Scan(&msg.ID, &body, &msg.DeliveryCount); err != nil {
			return nil, fmt.Errorf("failed to scan dead-lettered task: %w", err)
		}
		if err := json.Unmarshal([]byte(body), &msg.Task); err != nil {
			return nil, fmt.Errorf("failed to decode dead-lettered task %s: %w", msg.ID, err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dead-lettered tasks: %w", err)
	}

	return messages, nil
}
