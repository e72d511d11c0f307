package dispatch

import (
	"context"
	"log/slog"
	"time"

	"feedpipe/app/model"
)

// TaskQueue is the dispatcher's view of the fetch queue.
type TaskQueue interface {
	Enqueue(ctx context.Context, task model.FetchTask) (string, error)
}

// Dispatcher forwards post-store insert events to the fetch queue. For
// every insert event with a snapshot and a link it emits one fetch task;
// every other event is dropped. Enqueueing is retried until it succeeds,
// so delivery toward the queue is at-least-once and downstream stages
// must absorb duplicates.
type Dispatcher struct {
	events <-chan model.ChangeEvent
	queue  TaskQueue
}

func New(events <-chan model.ChangeEvent, queue TaskQueue) *Dispatcher {
	return &Dispatcher{events: events, queue: queue}
}

// Run consumes events until the stream closes or the context ends.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-d.events:
			if !ok {
				return
			}
			d.handle(ctx, event)
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, event model.ChangeEvent) {
	if event.Kind != model.EventInsert || event.Snapshot == nil {
		slog.Debug("Change event dropped", "kind", event.Kind, "has_snapshot", event.Snapshot != nil)
		return
	}
	if event.Snapshot.Link == "" {
		slog.Debug("Insert event without link dropped",
			"feed_id", event.Snapshot.FeedID, "post_id", event.Snapshot.PostID)
		return
	}

	task := model.FetchTask{
		FeedID: event.Snapshot.FeedID,
		PostID: event.Snapshot.PostID,
		Link:   event.Snapshot.Link,
	}

	delay := time.Second
	for {
		id, err := d.queue.Enqueue(ctx, task)
		if err == nil {
			slog.Debug("Fetch task enqueued", "id", id, "feed_id", task.FeedID, "post_id", task.PostID)
			return
		}

		slog.Warn("Failed to enqueue fetch task, retrying",
			"feed_id", task.FeedID, "post_id", task.PostID, "delay", delay.String(), "error", err)

		select {
		case <-ctx.Done():
			slog.Error("Fetch task abandoned on shutdown", "feed_id", task.FeedID, "post_id", task.PostID)
			return
		case <-time.After(delay):
		}

		delay *= 2
		if delay > 30*time.Second {
			delay = 30 * time.Second
		}
	}
}
