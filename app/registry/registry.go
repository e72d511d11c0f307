package registry

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

// Feed is one entry of the feed source registry.
type Feed struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

type registryFile struct {
	Feeds []Feed `yaml:"feeds"`
}

// Registry holds the ordered list of feed URLs for a poll cycle. It is
// loaded once at startup; a missing or invalid file is a fatal
// configuration error.
type Registry struct {
	feeds []Feed
}

func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read feeds file: %w", err)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse feeds file: %w", err)
	}

	if len(file.Feeds) == 0 {
		return nil, fmt.Errorf("feeds file %s lists no feeds", path)
	}

	for i, feed := range file.Feeds {
		if feed.URL == "" {
			return nil, fmt.Errorf("feed at index %d has no URL", i)
		}
		u, err := url.Parse(feed.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("feed at index %d has invalid URL %q", i, feed.URL)
		}
	}

	slog.Debug("Feed registry loaded", "path", path, "feeds", len(file.Feeds))

	return &Registry{feeds: file.Feeds}, nil
}

// Feeds returns the registered feeds in file order.
func (r *Registry) Feeds() []Feed {
	feeds := make([]Feed, len(r.feeds))
	copy(feeds, r.feeds)
	return feeds
}

func (r *Registry) Count() int {
	return len(r.feeds)
}
