package blob

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Artifact names under the {feed_id}/{post_id}/ prefix.
const (
	ArtifactRaw     = "raw"
	ArtifactText    = "text"
	ArtifactSummary = "summary"
)

// CreateEvent notifies subscribers that an artifact was written.
type CreateEvent struct {
	Path string
}

// Store is a filesystem-backed object store addressed by the canonical
// {feed_id}/{post_id}/{artifact_name} path convention. Writes are
// atomic overwrites with last-writer-wins semantics; every put emits a
// creation notification to subscribers whose suffix filter matches.
type Store struct {
	root string

	mu   sync.RWMutex
	subs []subscription
}

type subscription struct {
	suffix string
	ch     chan CreateEvent
}

func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact root: %w", err)
	}
	return &Store{root: root}, nil
}

// ArtifactPath builds the canonical artifact path. It is the only place
// the convention is assembled; SplitArtifactPath is the only place it is
// parsed.
func ArtifactPath(feedID, postID, name string) string {
	return feedID + "/" + postID + "/" + name
}

// SplitArtifactPath parses a canonical artifact path back into its
// components.
func SplitArtifactPath(path string) (feedID, postID, name string, err error) {
	parts := strings.Split(path, "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", fmt.Errorf("artifact path %q does not match {feed_id}/{post_id}/{name}", path)
	}
	return parts[0], parts[1], parts[2], nil
}

// Put writes an artifact, replacing any previous content, and notifies
// matching subscribers. The write is temp-file-plus-rename so readers
// never observe a partial artifact.
func (s *Store) Put(ctx context.Context, path string, data []byte) error {
	if err := validatePath(path); err != nil {
		return err
	}

	target := filepath.Join(s.root, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".put-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to finalize artifact: %w", err)
	}

	slog.Debug("Artifact written", "path", path, "bytes", len(data))

	s.notify(ctx, CreateEvent{Path: path})
	return nil
}

// Get reads an artifact. A missing artifact is an error; callers that
// tolerate absence should check with os.IsNotExist via errors.Is.
func (s *Store) Get(ctx context.Context, path string) ([]byte, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(path)))
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", path, err)
	}
	return data, nil
}

// Subscribe registers for creation notifications on paths ending with
// suffix. The returned channel is buffered; subscribers must drain it or
// writers will block once the buffer fills.
func (s *Store) Subscribe(suffix string, buffer int) <-chan CreateEvent {
	ch := make(chan CreateEvent, buffer)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, subscription{suffix: suffix, ch: ch})

	return ch
}

// Close closes all subscriber channels. Call only after all writers have
// stopped.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		close(sub.ch)
	}
	s.subs = nil
}

func (s *Store) notify(ctx context.Context, event CreateEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.subs {
		if !strings.HasSuffix(event.Path, sub.suffix) {
			continue
		}
		select {
		case sub.ch <- event:
		case <-ctx.Done():
			slog.Warn("Creation notification dropped", "path", event.Path, "error", ctx.Err())
			return
		}
	}
}

func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("artifact path is empty")
	}
	for _, part := range strings.Split(path, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("artifact path %q contains an invalid component", path)
		}
	}
	return nil
}
