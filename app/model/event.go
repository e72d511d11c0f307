package model

type EventKind string

const (
	EventInsert EventKind = "insert"
	EventModify EventKind = "modify"
	EventRemove EventKind = "remove"
)

// ChangeEvent is emitted by the post store for every write it observes.
// Only insert events with a non-empty snapshot are meaningful downstream.
type ChangeEvent struct {
	Kind     EventKind `json:"event_kind"`
	Snapshot *Post     `json:"snapshot,omitempty"`
}

// FetchTask is the wire message placed on the fetch queue, one per
// observed insert. It may be delivered more than once.
type FetchTask struct {
	FeedID string `json:"feed_id"`
	PostID string `json:"post_id"`
	Link   string `json:"link"`
}
